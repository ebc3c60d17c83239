package repositories

import (
	"context"

	"storefront/internal/models"
)

// PaymentRepository stores provider transactions. Records are never deleted.
type PaymentRepository interface {
	Create(ctx context.Context, record *models.PaymentRecord) error
	Update(ctx context.Context, record *models.PaymentRecord) error
	// Latest returns the newest record for the order and provider, or nil if there is none.
	Latest(ctx context.Context, orderID, provider string) (*models.PaymentRecord, error)
	ListByOrder(ctx context.Context, orderID string) ([]models.PaymentRecord, error)
}
