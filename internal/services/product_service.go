package services

import (
	"context"

	"storefront/internal/apperrors"
	"storefront/internal/models"
	"storefront/internal/repositories"

	"github.com/google/uuid"
)

// ProductService handles the catalog.
type ProductService struct {
	repo repositories.ProductRepository
}

// NewProductService creates a new ProductService.
func NewProductService(repo repositories.ProductRepository) *ProductService {
	return &ProductService{repo: repo}
}

func (s *ProductService) GetAllProducts(ctx context.Context) ([]models.Product, error) {
	return s.repo.GetAll(ctx)
}

func (s *ProductService) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	return s.repo.GetByID(ctx, id)
}

// CreateProduct stores a new catalog entry. Price must not be negative.
func (s *ProductService) CreateProduct(ctx context.Context, product *models.Product) error {
	if product.Price.IsNegative() {
		return apperrors.Validation("price must not be negative")
	}
	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	return s.repo.Create(ctx, product)
}

// UpdateProduct changes catalog fields. Stock is left alone; see Restock.
// Existing orders keep the prices frozen on their items.
func (s *ProductService) UpdateProduct(ctx context.Context, product *models.Product) error {
	if product.Price.IsNegative() {
		return apperrors.Validation("price must not be negative")
	}
	if _, err := s.repo.GetByID(ctx, product.ID); err != nil {
		return err
	}
	return s.repo.Update(ctx, product)
}

// Restock adds qty units with the same atomic increment used to release reservations.
func (s *ProductService) Restock(ctx context.Context, id string, qty int) (*models.Product, error) {
	if qty < 1 {
		return nil, apperrors.Validation("restock quantity must be at least 1")
	}
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	if err := s.repo.IncrementStock(ctx, id, qty); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

func (s *ProductService) DeleteProduct(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}
