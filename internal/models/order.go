package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	ProviderStripe = "stripe"
	ProviderPayway = "payway"
)

// OrderItem represents a single line of an order with the catalog price frozen at creation.
type OrderItem struct {
	ID                    string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderID               string          `json:"-" gorm:"type:varchar(36);index;not null"`
	Position              int             `json:"-" gorm:"not null"`
	ProductID             string          `json:"product_id" gorm:"type:varchar(36);index;not null"`
	Quantity              int             `json:"quantity" gorm:"not null"`
	PriceAtTime           decimal.Decimal `json:"price_at_time" gorm:"type:decimal(10,2);not null"`
	DiscountPercentAtTime int             `json:"discount_percent_at_time" gorm:"not null;default:0"`
}

// Order represents a customer order. Amounts are fixed at creation or full item replacement.
type Order struct {
	ID                    string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID                string          `json:"user_id" gorm:"type:varchar(36);index;not null"`
	Items                 []OrderItem     `json:"items" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Subtotal              decimal.Decimal `json:"subtotal" gorm:"type:decimal(12,2);not null"`
	DiscountedSubtotal    decimal.Decimal `json:"discounted_subtotal" gorm:"type:decimal(12,2);not null"`
	VatAmount             decimal.Decimal `json:"vat_amount" gorm:"type:decimal(12,2);not null"`
	DiscountAmount        decimal.Decimal `json:"discount_amount" gorm:"type:decimal(12,2);not null"`
	ShippingAmount        decimal.Decimal `json:"shipping_amount" gorm:"type:decimal(12,2);not null"`
	TotalAmount           decimal.Decimal `json:"total_amount" gorm:"type:decimal(12,2);not null"`
	Status                OrderStatus     `json:"status" gorm:"type:varchar(20);index;not null"`
	PaymentProvider       *string         `json:"payment_provider,omitempty" gorm:"type:varchar(20)"`
	StripePaymentIntentID *string         `json:"stripe_payment_intent_id,omitempty" gorm:"type:varchar(255)"`
	PaywayTranID          *string         `json:"payway_tran_id,omitempty" gorm:"type:varchar(32)"`
	CreatedAt             time.Time       `json:"created_at" gorm:"index"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// TransactionID returns the provider transaction stored on the order, or "".
func (o *Order) TransactionID(provider string) string {
	var id *string
	switch provider {
	case ProviderStripe:
		id = o.StripePaymentIntentID
	case ProviderPayway:
		id = o.PaywayTranID
	}
	if id == nil {
		return ""
	}
	return *id
}

// SetTransactionID records the provider transaction and marks the provider as the active one.
func (o *Order) SetTransactionID(provider, id string) {
	switch provider {
	case ProviderStripe:
		o.StripePaymentIntentID = &id
	case ProviderPayway:
		o.PaywayTranID = &id
	}
	o.PaymentProvider = &provider
}

func (o *Order) IsOwnedBy(userID string) bool { return o.UserID == userID }
