package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentOutcome is the normalized result of a provider transaction.
type PaymentOutcome string

const (
	OutcomePending  PaymentOutcome = "PENDING"
	OutcomeApproved PaymentOutcome = "APPROVED"
	OutcomeFailed   PaymentOutcome = "FAILED"
)

// PaymentRecord tracks one provider transaction. Records are never deleted, only superseded.
type PaymentRecord struct {
	ID            string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderID       string          `json:"order_id" gorm:"type:varchar(36);index;not null"`
	Provider      string          `json:"provider" gorm:"type:varchar(20);index;not null"`
	TransactionID string          `json:"transaction_id" gorm:"type:varchar(255);index;not null"`
	Status        PaymentOutcome  `json:"status" gorm:"type:varchar(20);not null"`
	Amount        decimal.Decimal `json:"amount" gorm:"type:decimal(12,2);not null"`
	Currency      string          `json:"currency" gorm:"type:varchar(3)"`
	Payload       string          `json:"-" gorm:"type:text"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
