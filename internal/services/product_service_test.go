package services_test

import (
	"context"
	"fmt"
	"testing"

	"storefront/internal/apperrors"
	"storefront/internal/models"
	"storefront/internal/services"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockProductRepository is a mock implementation of repositories.ProductRepository
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) GetAll(ctx context.Context) ([]models.Product, error) {
	args := m.Called()
	return args.Get(0).([]models.Product), args.Error(1)
}

func (m *MockProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockProductRepository) Create(ctx context.Context, product *models.Product) error {
	args := m.Called(product)
	return args.Error(0)
}

func (m *MockProductRepository) Update(ctx context.Context, product *models.Product) error {
	args := m.Called(product)
	return args.Error(0)
}

func (m *MockProductRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *MockProductRepository) DecrementStock(ctx context.Context, id string, qty int) (bool, error) {
	args := m.Called(id, qty)
	return args.Bool(0), args.Error(1)
}

func (m *MockProductRepository) IncrementStock(ctx context.Context, id string, qty int) error {
	args := m.Called(id, qty)
	return args.Error(0)
}

func price(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestProductService_GetAllProducts(t *testing.T) {
	mockRepo := new(MockProductRepository)
	service := services.NewProductService(mockRepo)

	expectedProducts := []models.Product{
		{ID: "1", Name: "Product A", Price: price("10.00"), Stock: 100},
		{ID: "2", Name: "Product B", Price: price("20.00"), Stock: 50},
	}
	mockRepo.On("GetAll").Return(expectedProducts, nil).Once()

	products, err := service.GetAllProducts(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, expectedProducts, products)
	mockRepo.AssertExpectations(t)
}

func TestProductService_GetProductByID(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockProductRepository)
	service := services.NewProductService(mockRepo)

	expectedProduct := &models.Product{ID: "1", Name: "Product A", Price: price("10.00"), Stock: 100}

	mockRepo.On("GetByID", "1").Return(expectedProduct, nil).Once()
	product, err := service.GetProductByID(ctx, "1")
	assert.NoError(t, err)
	assert.Equal(t, expectedProduct, product)

	mockRepo.On("GetByID", "99").Return(nil, apperrors.NotFound("product", "99")).Once()
	product, err = service.GetProductByID(ctx, "99")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Nil(t, product)
	mockRepo.AssertExpectations(t)
}

func TestProductService_CreateProduct(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockProductRepository)
	service := services.NewProductService(mockRepo)

	newProduct := &models.Product{Name: "New Product", Price: price("50.00"), Stock: 20}

	mockRepo.On("Create", newProduct).Return(nil).Once()
	err := service.CreateProduct(ctx, newProduct)
	assert.NoError(t, err)
	assert.NotEmpty(t, newProduct.ID)

	mockRepo.On("Create", newProduct).Return(fmt.Errorf("database error")).Once()
	err = service.CreateProduct(ctx, newProduct)
	assert.ErrorContains(t, err, "database error")

	err = service.CreateProduct(ctx, &models.Product{Name: "Broken", Price: price("-1")})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	mockRepo.AssertExpectations(t)
}

func TestProductService_UpdateProduct(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockProductRepository)
	service := services.NewProductService(mockRepo)

	updatedProduct := &models.Product{ID: "1", Name: "Product A Updated", Price: price("12.00"), Stock: 95}

	mockRepo.On("GetByID", "1").Return(&models.Product{ID: "1"}, nil).Once()
	mockRepo.On("Update", updatedProduct).Return(nil).Once()
	assert.NoError(t, service.UpdateProduct(ctx, updatedProduct))

	mockRepo.On("GetByID", "99").Return(nil, apperrors.NotFound("product", "99")).Once()
	err := service.UpdateProduct(ctx, &models.Product{ID: "99", Name: "NonExistent", Price: price("1.00")})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	mockRepo.AssertExpectations(t)
}

func TestProductService_Restock(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockProductRepository)
	service := services.NewProductService(mockRepo)

	mockRepo.On("GetByID", "1").Return(&models.Product{ID: "1", Stock: 2}, nil).Once()
	mockRepo.On("IncrementStock", "1", 5).Return(nil).Once()
	mockRepo.On("GetByID", "1").Return(&models.Product{ID: "1", Stock: 7}, nil).Once()

	product, err := service.Restock(ctx, "1", 5)
	assert.NoError(t, err)
	assert.Equal(t, 7, product.Stock)

	_, err = service.Restock(ctx, "1", 0)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	mockRepo.On("GetByID", "99").Return(nil, apperrors.NotFound("product", "99")).Once()
	_, err = service.Restock(ctx, "99", 1)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	mockRepo.AssertExpectations(t)
}

func TestProductService_DeleteProduct(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockProductRepository)
	service := services.NewProductService(mockRepo)

	mockRepo.On("Delete", "1").Return(nil).Once()
	assert.NoError(t, service.DeleteProduct(ctx, "1"))

	mockRepo.On("Delete", "99").Return(apperrors.NotFound("product", "99")).Once()
	assert.ErrorIs(t, service.DeleteProduct(ctx, "99"), apperrors.ErrNotFound)
	mockRepo.AssertExpectations(t)
}
