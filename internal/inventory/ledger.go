// Package inventory guards product stock. Every stock mutation made by the
// order lifecycle goes through Ledger so reservations are all-or-nothing.
package inventory

import (
	"context"
	"fmt"
	"sort"

	"storefront/internal/apperrors"
	"storefront/internal/models"
	"storefront/internal/repositories"

	log "github.com/sirupsen/logrus"
)

// Item is a quantity of one product to reserve or release.
type Item struct {
	ProductID string
	Quantity  int
}

// ItemsOf converts order lines into ledger items.
func ItemsOf(lines []models.OrderItem) []Item {
	items := make([]Item, 0, len(lines))
	for _, line := range lines {
		items = append(items, Item{ProductID: line.ProductID, Quantity: line.Quantity})
	}
	return items
}

// aggregate merges duplicate product lines and sorts by product id so
// concurrent reservations touch rows in the same order.
func aggregate(items []Item) []Item {
	totals := make(map[string]int, len(items))
	for _, it := range items {
		totals[it.ProductID] += it.Quantity
	}
	merged := make([]Item, 0, len(totals))
	for id, qty := range totals {
		merged = append(merged, Item{ProductID: id, Quantity: qty})
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].ProductID < merged[j].ProductID })
	return merged
}

// Ledger reserves and releases stock through a transaction-bound ProductRepository.
type Ledger struct {
	logger *log.Entry
}

func NewLedger() *Ledger {
	return &Ledger{logger: log.WithField("component", "inventory")}
}

// Reserve decrements stock for every item or returns an error. It must run
// inside a transaction: on error the caller rolls back any partial decrement.
func (l *Ledger) Reserve(ctx context.Context, products repositories.ProductRepository, items []Item) error {
	var shortfalls []apperrors.Shortfall
	for _, it := range aggregate(items) {
		if it.Quantity <= 0 {
			return apperrors.Validation(fmt.Sprintf("quantity for product %s must be positive", it.ProductID))
		}
		ok, err := products.DecrementStock(ctx, it.ProductID, it.Quantity)
		if err != nil {
			return fmt.Errorf("reserve product %s: %w", it.ProductID, err)
		}
		if ok {
			continue
		}
		product, err := products.GetByID(ctx, it.ProductID)
		if err != nil {
			return err
		}
		shortfalls = append(shortfalls, apperrors.Shortfall{
			ProductID: it.ProductID,
			Requested: it.Quantity,
			Available: product.Stock,
		})
	}
	if len(shortfalls) > 0 {
		return apperrors.InsufficientStock(shortfalls)
	}
	return nil
}

// Release returns reserved stock. Products that no longer exist are skipped
// so a cancellation is never blocked by catalog cleanup.
func (l *Ledger) Release(ctx context.Context, products repositories.ProductRepository, items []Item) error {
	for _, it := range aggregate(items) {
		if it.Quantity <= 0 {
			continue
		}
		err := products.IncrementStock(ctx, it.ProductID, it.Quantity)
		if apperrors.IsNotFound(err) {
			l.logger.WithFields(log.Fields{"product_id": it.ProductID, "quantity": it.Quantity}).
				Warn("product missing, reserved stock not restored")
			continue
		}
		if err != nil {
			return fmt.Errorf("release product %s: %w", it.ProductID, err)
		}
	}
	return nil
}

// Check verifies that current stock covers every item without mutating it.
func (l *Ledger) Check(ctx context.Context, products repositories.ProductRepository, items []Item) error {
	var shortfalls []apperrors.Shortfall
	for _, it := range aggregate(items) {
		product, err := products.GetByID(ctx, it.ProductID)
		if err != nil {
			return err
		}
		if product.Stock < it.Quantity {
			shortfalls = append(shortfalls, apperrors.Shortfall{
				ProductID: it.ProductID,
				Requested: it.Quantity,
				Available: product.Stock,
			})
		}
	}
	if len(shortfalls) > 0 {
		return apperrors.InsufficientStock(shortfalls)
	}
	return nil
}
