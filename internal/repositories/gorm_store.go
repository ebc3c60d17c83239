package repositories

import (
	"context"

	"storefront/internal/models"

	"gorm.io/gorm"
)

// GORMStore is the relational Store backed by gorm.
type GORMStore struct {
	db *gorm.DB
}

func NewGORMStore(db *gorm.DB) *GORMStore {
	return &GORMStore{db: db}
}

// AutoMigrate creates or updates the tables for every persisted model.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.User{}, &models.Product{}, &models.Order{}, &models.OrderItem{}, &models.PaymentRecord{})
}

func newGORMRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Users:    NewGORMUserRepository(db),
		Products: NewGORMProductRepository(db),
		Orders:   NewGORMOrderRepository(db),
		Payments: NewGORMPaymentRepository(db),
	}
}

func (s *GORMStore) Repositories() Repositories {
	return newGORMRepositories(s.db)
}

func (s *GORMStore) Transaction(ctx context.Context, fn func(repos Repositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(newGORMRepositories(tx))
	})
}
