package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"storefront/internal/apperrors"
	"storefront/internal/events"
	"storefront/internal/inventory"
	"storefront/internal/models"
	"storefront/internal/pricing"
	"storefront/internal/repositories"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// Caller identifies who is invoking an operation.
type Caller struct {
	UserID string
	Role   models.Role
}

func (c Caller) IsAdmin() bool { return c.Role == models.RoleAdmin }

// ItemRequest is one requested order line.
type ItemRequest struct {
	ProductID string
	Quantity  int
}

// OrderPage is one page of an order listing.
type OrderPage struct {
	Orders     []models.Order `json:"orders"`
	Total      int64          `json:"total"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	TotalPages int            `json:"totalPages"`
}

// ReceiptLine is a priced order line reproduced from the frozen item prices.
type ReceiptLine struct {
	ProductID       string          `json:"product_id"`
	Quantity        int             `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	DiscountPercent int             `json:"discount_percent"`
	FinalUnitPrice  decimal.Decimal `json:"final_unit_price"`
	LineTotal       decimal.Decimal `json:"line_total"`
}

// Receipt is the printable breakdown of an order.
type Receipt struct {
	OrderID            string          `json:"order_id"`
	Status             string          `json:"status"`
	CreatedAt          time.Time       `json:"created_at"`
	Lines              []ReceiptLine   `json:"lines"`
	OriginalSubtotal   decimal.Decimal `json:"original_subtotal"`
	DiscountedSubtotal decimal.Decimal `json:"discounted_subtotal"`
	VAT                decimal.Decimal `json:"vat"`
	DiscountAmount     decimal.Decimal `json:"discount_amount"`
	Shipping           decimal.Decimal `json:"shipping"`
	Total              decimal.Decimal `json:"total"`
}

// OrderService handles the public order operations.
type OrderService struct {
	store     repositories.Store
	machine   *StateMachine
	pricing   *pricing.Calculator
	ledger    *inventory.Ledger
	publisher events.Publisher
	logger    *log.Entry
}

// NewOrderService creates a new OrderService.
func NewOrderService(store repositories.Store, machine *StateMachine, calculator *pricing.Calculator, ledger *inventory.Ledger, publisher events.Publisher) *OrderService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &OrderService{
		store:     store,
		machine:   machine,
		pricing:   calculator,
		ledger:    ledger,
		publisher: publisher,
		logger:    log.WithField("component", "order_service"),
	}
}

func authorize(order *models.Order, caller Caller) error {
	if caller.IsAdmin() || order.IsOwnedBy(caller.UserID) {
		return nil
	}
	return apperrors.Forbidden("you are not allowed to access this order")
}

func validateItems(items []ItemRequest) error {
	if len(items) == 0 {
		return apperrors.Validation("an order needs at least one item")
	}
	for _, it := range items {
		if it.ProductID == "" {
			return apperrors.Validation("every item needs a product id")
		}
		if it.Quantity < 1 {
			return apperrors.Validation(fmt.Sprintf("quantity for product %s must be at least 1", it.ProductID))
		}
	}
	return nil
}

// priceItems freezes catalog prices into order lines and checks that stock covers them.
func (s *OrderService) priceItems(ctx context.Context, products repositories.ProductRepository, reqs []ItemRequest) ([]models.OrderItem, pricing.Breakdown, error) {
	items := make([]models.OrderItem, 0, len(reqs))
	lines := make([]pricing.Line, 0, len(reqs))
	ledgerItems := make([]inventory.Item, 0, len(reqs))
	for _, req := range reqs {
		product, err := products.GetByID(ctx, req.ProductID)
		if err != nil {
			return nil, pricing.Breakdown{}, err
		}
		items = append(items, models.OrderItem{
			ProductID:             product.ID,
			Quantity:              req.Quantity,
			PriceAtTime:           product.Price,
			DiscountPercentAtTime: product.DiscountPercent,
		})
		lines = append(lines, pricing.Line{
			UnitPrice:       product.Price,
			DiscountPercent: product.DiscountPercent,
			Quantity:        req.Quantity,
		})
		ledgerItems = append(ledgerItems, inventory.Item{ProductID: product.ID, Quantity: req.Quantity})
	}
	if err := s.ledger.Check(ctx, products, ledgerItems); err != nil {
		return nil, pricing.Breakdown{}, err
	}
	return items, s.pricing.Calculate(lines), nil
}

func applyBreakdown(order *models.Order, b pricing.Breakdown) {
	order.Subtotal = b.OriginalSubtotal
	order.DiscountedSubtotal = b.DiscountedSubtotal
	order.VatAmount = b.VAT
	order.DiscountAmount = b.DiscountAmount
	order.ShippingAmount = b.Shipping
	order.TotalAmount = b.Total
}

func (s *OrderService) publish(ctx context.Context, evt events.Event) {
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": evt.OrderID,
			"event":    evt.Type,
		}).Warn("Failed to publish order event")
	}
}

func (s *OrderService) publishStatusChange(ctx context.Context, order *models.Order, from models.OrderStatus) {
	evt := events.ForOrder(events.OrderStatusChanged, order)
	evt.PreviousStatus = string(from)
	s.publish(ctx, evt)
}

// CreateOrder prices the requested items and stores a PENDING order. Stock is checked, not reserved.
func (s *OrderService) CreateOrder(ctx context.Context, userID string, reqs []ItemRequest) (*models.Order, error) {
	if err := validateItems(reqs); err != nil {
		return nil, err
	}

	var order *models.Order
	err := s.store.Transaction(ctx, func(repos repositories.Repositories) error {
		if _, err := repos.Users.GetByID(ctx, userID); err != nil {
			return err
		}
		items, breakdown, err := s.priceItems(ctx, repos.Products, reqs)
		if err != nil {
			return err
		}
		order = &models.Order{
			ID:     uuid.New().String(),
			UserID: userID,
			Items:  items,
			Status: models.StatusPending,
		}
		applyBreakdown(order, breakdown)
		return repos.Orders.Create(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(log.Fields{"order_id": order.ID, "user_id": userID, "total": order.TotalAmount.StringFixed(2)}).
		Info("order created")
	s.publish(ctx, events.ForOrder(events.OrderCreated, order))
	return order, nil
}

// UpdateOrder replaces the items of a PENDING order and reprices it. A nil items slice changes nothing.
func (s *OrderService) UpdateOrder(ctx context.Context, orderID string, caller Caller, reqs []ItemRequest) (*models.Order, error) {
	if reqs != nil {
		if err := validateItems(reqs); err != nil {
			return nil, err
		}
	}

	var order *models.Order
	changed := false
	err := s.store.Transaction(ctx, func(repos repositories.Repositories) error {
		var err error
		order, err = repos.Orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := authorize(order, caller); err != nil {
			return err
		}
		if reqs == nil {
			return nil
		}
		if order.Status != models.StatusPending {
			return apperrors.WrongStatus(string(order.Status), string(models.StatusPending))
		}

		items, breakdown, err := s.priceItems(ctx, repos.Products, reqs)
		if err != nil {
			return err
		}
		if err := repos.Orders.ReplaceItems(ctx, order.ID, items); err != nil {
			return err
		}
		order.Items = items
		applyBreakdown(order, breakdown)
		changed = true
		return repos.Orders.Save(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.publish(ctx, events.ForOrder(events.OrderUpdated, order))
	}
	return order, nil
}

// transition locks the order, authorizes the caller and applies target.
func (s *OrderService) transition(ctx context.Context, orderID string, caller Caller, target models.OrderStatus) (*models.Order, error) {
	var (
		order *models.Order
		from  models.OrderStatus
	)
	err := s.store.Transaction(ctx, func(repos repositories.Repositories) error {
		var err error
		order, err = repos.Orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := authorize(order, caller); err != nil {
			return err
		}
		from = order.Status
		return s.machine.Transition(ctx, repos, order, target)
	})
	if err != nil {
		return nil, err
	}

	s.publishStatusChange(ctx, order, from)
	return order, nil
}

// PayOrder moves a PENDING order to PAID, reserving its stock.
func (s *OrderService) PayOrder(ctx context.Context, orderID string, caller Caller) (*models.Order, error) {
	return s.transition(ctx, orderID, caller, models.StatusPaid)
}

// CancelOrder cancels an order, returning reserved stock if the cancellation policy allows it past PENDING.
func (s *OrderService) CancelOrder(ctx context.Context, orderID string, caller Caller) (*models.Order, error) {
	return s.transition(ctx, orderID, caller, models.StatusCancelled)
}

// SetOrderStatus is the administrative transition used for fulfilment progression.
func (s *OrderService) SetOrderStatus(ctx context.Context, orderID string, caller Caller, status models.OrderStatus) (*models.Order, error) {
	if !caller.IsAdmin() {
		return nil, apperrors.Forbidden("only administrators can set order status")
	}
	if !status.Valid() {
		return nil, apperrors.Validation(fmt.Sprintf("unknown order status %q", status))
	}
	return s.transition(ctx, orderID, caller, status)
}

// DeleteOrder removes an order in any status, returning reserved stock first.
func (s *OrderService) DeleteOrder(ctx context.Context, orderID string, caller Caller) error {
	var order *models.Order
	err := s.store.Transaction(ctx, func(repos repositories.Repositories) error {
		var err error
		order, err = repos.Orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := authorize(order, caller); err != nil {
			return err
		}
		if err := s.machine.ReleaseReservation(ctx, repos, order); err != nil {
			return err
		}
		return repos.Orders.Delete(ctx, order.ID)
	})
	if err != nil {
		return err
	}

	s.logger.WithFields(log.Fields{"order_id": order.ID, "status": order.Status}).Info("order deleted")
	s.publish(ctx, events.ForOrder(events.OrderDeleted, order))
	return nil
}

// GetOrder returns an order visible to the caller.
func (s *OrderService) GetOrder(ctx context.Context, orderID string, caller Caller) (*models.Order, error) {
	order, err := s.store.Repositories().Orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := authorize(order, caller); err != nil {
		return nil, err
	}
	return order, nil
}

func newOrderPage(orders []models.Order, total int64, page repositories.Page) *OrderPage {
	if orders == nil {
		orders = []models.Order{}
	}
	return &OrderPage{
		Orders:     orders,
		Total:      total,
		Page:       page.Page,
		Limit:      page.Limit,
		TotalPages: int(math.Ceil(float64(total) / float64(page.Limit))),
	}
}

// ListOrders returns the caller's own orders, newest first.
func (s *OrderService) ListOrders(ctx context.Context, caller Caller, page repositories.Page) (*OrderPage, error) {
	page = page.Normalize()
	orders, total, err := s.store.Repositories().Orders.ListByUser(ctx, caller.UserID, page)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return newOrderPage(orders, total, page), nil
}

// ListAllOrders returns every order, newest first. Administrators only.
func (s *OrderService) ListAllOrders(ctx context.Context, caller Caller, page repositories.Page) (*OrderPage, error) {
	if !caller.IsAdmin() {
		return nil, apperrors.Forbidden("only administrators can list all orders")
	}
	page = page.Normalize()
	orders, total, err := s.store.Repositories().Orders.ListAll(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return newOrderPage(orders, total, page), nil
}

// Receipt recomputes the order's breakdown from the prices frozen on its items.
func (s *OrderService) Receipt(ctx context.Context, orderID string, caller Caller) (*Receipt, error) {
	order, err := s.GetOrder(ctx, orderID, caller)
	if err != nil {
		return nil, err
	}

	lines := make([]pricing.Line, 0, len(order.Items))
	for _, it := range order.Items {
		lines = append(lines, pricing.Line{
			UnitPrice:       it.PriceAtTime,
			DiscountPercent: it.DiscountPercentAtTime,
			Quantity:        it.Quantity,
		})
	}
	b := s.pricing.Calculate(lines)

	receipt := &Receipt{
		OrderID:            order.ID,
		Status:             string(order.Status),
		CreatedAt:          order.CreatedAt,
		Lines:              make([]ReceiptLine, 0, len(order.Items)),
		OriginalSubtotal:   b.OriginalSubtotal,
		DiscountedSubtotal: b.DiscountedSubtotal,
		VAT:                b.VAT,
		DiscountAmount:     b.DiscountAmount,
		Shipping:           b.Shipping,
		Total:              b.Total,
	}
	for i, it := range order.Items {
		receipt.Lines = append(receipt.Lines, ReceiptLine{
			ProductID:       it.ProductID,
			Quantity:        it.Quantity,
			UnitPrice:       it.PriceAtTime,
			DiscountPercent: it.DiscountPercentAtTime,
			FinalUnitPrice:  b.Lines[i].FinalUnitPrice,
			LineTotal:       b.Lines[i].Discounted,
		})
	}
	if !b.Total.Equal(order.TotalAmount) {
		s.logger.WithFields(log.Fields{"order_id": order.ID, "stored": order.TotalAmount, "receipt": b.Total}).
			Warn("receipt total differs from stored total")
	}
	return receipt, nil
}
