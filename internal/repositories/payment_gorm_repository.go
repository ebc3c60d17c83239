package repositories

import (
	"context"
	"errors"
	"fmt"

	"storefront/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMPaymentRepository is a GORM implementation of PaymentRepository.
type GORMPaymentRepository struct {
	db *gorm.DB
}

func NewGORMPaymentRepository(db *gorm.DB) *GORMPaymentRepository {
	return &GORMPaymentRepository{db: db}
}

func (r *GORMPaymentRepository) Create(ctx context.Context, record *models.PaymentRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to create payment record: %w", err)
	}
	return nil
}

func (r *GORMPaymentRepository) Update(ctx context.Context, record *models.PaymentRecord) error {
	if err := r.db.WithContext(ctx).Save(record).Error; err != nil {
		return fmt.Errorf("failed to update payment record %s: %w", record.ID, err)
	}
	return nil
}

func (r *GORMPaymentRepository) Latest(ctx context.Context, orderID, provider string) (*models.PaymentRecord, error) {
	var record models.PaymentRecord
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND provider = ?", orderID, provider).
		Order("created_at DESC").
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest payment for order %s: %w", orderID, err)
	}
	return &record, nil
}

func (r *GORMPaymentRepository) ListByOrder(ctx context.Context, orderID string) ([]models.PaymentRecord, error) {
	var records []models.PaymentRecord
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("created_at ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list payments for order %s: %w", orderID, err)
	}
	return records, nil
}
