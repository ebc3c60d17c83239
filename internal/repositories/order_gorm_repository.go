package repositories

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/apperrors"
	"storefront/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GORMOrderRepository is a GORM implementation of OrderRepository.
type GORMOrderRepository struct {
	db *gorm.DB
}

// NewGORMOrderRepository creates a new instance of GORMOrderRepository.
func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{db: db}
}

func itemsInPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

func (r *GORMOrderRepository) load(db *gorm.DB, id string) (*models.Order, error) {
	var order models.Order
	if err := db.Preload("Items", itemsInPosition).First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("order", id)
		}
		return nil, fmt.Errorf("failed to get order by ID %s: %w", id, err)
	}
	return &order, nil
}

func (r *GORMOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	return r.load(r.db.WithContext(ctx), id)
}

// GetForUpdate issues SELECT ... FOR UPDATE. SQLite has no row locks and
// relies on its database-level write lock instead.
func (r *GORMOrderRepository) GetForUpdate(ctx context.Context, id string) (*models.Order, error) {
	return r.load(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *GORMOrderRepository) list(ctx context.Context, page Page, scope func(*gorm.DB) *gorm.DB) ([]models.Order, int64, error) {
	page = page.Normalize()
	var total int64
	if err := scope(r.db.WithContext(ctx).Model(&models.Order{})).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}
	var orders []models.Order
	err := scope(r.db.WithContext(ctx)).
		Preload("Items", itemsInPosition).
		Order("created_at DESC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&orders).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, total, nil
}

func (r *GORMOrderRepository) ListByUser(ctx context.Context, userID string, page Page) ([]models.Order, int64, error) {
	return r.list(ctx, page, func(db *gorm.DB) *gorm.DB { return db.Where("user_id = ?", userID) })
}

func (r *GORMOrderRepository) ListAll(ctx context.Context, page Page) ([]models.Order, int64, error) {
	return r.list(ctx, page, func(db *gorm.DB) *gorm.DB { return db })
}

func prepareItems(orderID string, items []models.OrderItem) {
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = uuid.New().String()
		}
		items[i].OrderID = orderID
		items[i].Position = i
	}
}

// Create inserts the order together with its items.
func (r *GORMOrderRepository) Create(ctx context.Context, order *models.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	prepareItems(order.ID, order.Items)
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

func (r *GORMOrderRepository) Save(ctx context.Context, order *models.Order) error {
	res := r.db.WithContext(ctx).Model(order).
		Select("*").
		Omit(clause.Associations, "CreatedAt").
		Updates(order)
	if res.Error != nil {
		return fmt.Errorf("failed to save order %s: %w", order.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("order", order.ID)
	}
	return nil
}

func (r *GORMOrderRepository) ReplaceItems(ctx context.Context, orderID string, items []models.OrderItem) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("order_id = ?", orderID).Delete(&models.OrderItem{}).Error; err != nil {
		return fmt.Errorf("failed to remove items of order %s: %w", orderID, err)
	}
	if len(items) == 0 {
		return nil
	}
	prepareItems(orderID, items)
	if err := db.Create(&items).Error; err != nil {
		return fmt.Errorf("failed to insert items of order %s: %w", orderID, err)
	}
	return nil
}

func (r *GORMOrderRepository) Delete(ctx context.Context, id string) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("order_id = ?", id).Delete(&models.OrderItem{}).Error; err != nil {
		return fmt.Errorf("failed to delete items of order %s: %w", id, err)
	}
	res := db.Delete(&models.Order{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete order %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("order", id)
	}
	return nil
}
