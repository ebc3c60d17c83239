package repositories

import (
	"context"

	"storefront/internal/models"
)

// Page selects a window of a listing. Page is 1-based.
type Page struct {
	Page  int
	Limit int
}

// Normalize clamps the page to sane bounds.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = 10
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	return p
}

func (p Page) Offset() int {
	return (p.Page - 1) * p.Limit
}

// OrderRepository defines the interface for order data access.
// Orders are always returned with their items in insertion order.
type OrderRepository interface {
	GetByID(ctx context.Context, id string) (*models.Order, error)
	// GetForUpdate loads the order and holds its row lock until the enclosing transaction ends.
	GetForUpdate(ctx context.Context, id string) (*models.Order, error)
	ListByUser(ctx context.Context, userID string, page Page) ([]models.Order, int64, error)
	ListAll(ctx context.Context, page Page) ([]models.Order, int64, error)
	Create(ctx context.Context, order *models.Order) error
	// Save persists the order's own columns; items are left untouched.
	Save(ctx context.Context, order *models.Order) error
	ReplaceItems(ctx context.Context, orderID string, items []models.OrderItem) error
	Delete(ctx context.Context, id string) error
}
