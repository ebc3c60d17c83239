package repositories

import (
	"context"

	"storefront/internal/models"
)

// ProductRepository defines the interface for product data access.
type ProductRepository interface {
	GetAll(ctx context.Context) ([]models.Product, error)
	GetByID(ctx context.Context, id string) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id string) error
	// DecrementStock subtracts qty only if at least qty units are in stock.
	// It reports false when the product is missing or short.
	DecrementStock(ctx context.Context, id string, qty int) (bool, error)
	// IncrementStock adds qty back, including to soft-deleted products.
	IncrementStock(ctx context.Context, id string, qty int) error
}
