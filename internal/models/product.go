package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product represents a catalog entry. Stock is only mutated through the inventory ledger.
type Product struct {
	ID              string          `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Name            string          `json:"name" gorm:"type:varchar(100)" validate:"required,min=3,max=100"`
	Description     string          `json:"description" validate:"omitempty,max=500"`
	Price           decimal.Decimal `json:"price" gorm:"type:decimal(10,2);not null"`
	DiscountPercent int             `json:"discount_percent" gorm:"not null;default:0" validate:"gte=0,lte=100"`
	Stock           int             `json:"stock" gorm:"not null;default:0" validate:"gte=0"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	DeletedAt       gorm.DeletedAt  `json:"-" gorm:"index"`
}
