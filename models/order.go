package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order mirrors the columns this service reads from the checkout workflow's
// orders table. It is never written here.
type Order struct {
	ID           string            `gorm:"type:varchar(64);primaryKey" json:"id"`
	Total        decimal.Decimal   `gorm:"type:numeric(20,2)" json:"total"`
	CurrencyCode string            `gorm:"type:varchar(3)" json:"currency_code"`
	CreatedAt    time.Time         `json:"created_at"`
	PaymentInfo  *OrderPaymentInfo `gorm:"foreignKey:OrderID;references:ID" json:"order_payment_info,omitempty"`
}

// Cart is the read-only view of a cart used for payment adjustment previews.
type Cart struct {
	ID            string          `gorm:"type:varchar(64);primaryKey" json:"id"`
	Total         decimal.Decimal `gorm:"type:numeric(20,2)" json:"total"`
	Subtotal      decimal.Decimal `gorm:"type:numeric(20,2)" json:"subtotal"`
	ShippingTotal decimal.Decimal `gorm:"type:numeric(20,2)" json:"shipping_total"`
	TaxTotal      decimal.Decimal `gorm:"type:numeric(20,2)" json:"tax_total"`
	CurrencyCode  string          `gorm:"type:varchar(3)" json:"currency_code"`
}
