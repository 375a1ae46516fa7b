package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusAwaiting PaymentStatus = "awaiting"
	PaymentStatusPaid     PaymentStatus = "paid"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusAwaiting, PaymentStatusPaid:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentMethodCOD          PaymentMethod = "cod"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodCOD || m == PaymentMethodBankTransfer
}

// OrderPaymentInfo records how an order is being paid outside the card flow.
// It is linked to the order by OrderID only; the order row itself belongs to
// the checkout workflow.
type OrderPaymentInfo struct {
	ID               string              `gorm:"type:varchar(36);primaryKey" json:"id"`
	OrderID          string              `gorm:"type:varchar(64);uniqueIndex;not null" json:"order_id"`
	TransactionID    *string             `gorm:"type:varchar(64);index" json:"transaction_id"`
	PaymentStatus    PaymentStatus       `gorm:"type:varchar(16);index;not null" json:"payment_status"`
	PaymentMethod    PaymentMethod       `gorm:"type:varchar(16);not null" json:"payment_method"`
	OriginalTotal    decimal.NullDecimal `gorm:"type:numeric(20,2)" json:"original_total"`
	AdjustmentAmount decimal.NullDecimal `gorm:"type:numeric(20,2)" json:"adjustment_amount"`
	AdjustedTotal    decimal.NullDecimal `gorm:"type:numeric(20,2)" json:"adjusted_total"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
	DeletedAt        gorm.DeletedAt      `gorm:"index" json:"-"`
}

func (p *OrderPaymentInfo) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// TotalsConsistent reports whether adjusted_total == original_total + adjustment_amount.
// Records with any of the three unset are considered consistent.
func (p *OrderPaymentInfo) TotalsConsistent() bool {
	if !p.OriginalTotal.Valid || !p.AdjustmentAmount.Valid || !p.AdjustedTotal.Valid {
		return true
	}
	return p.OriginalTotal.Decimal.Add(p.AdjustmentAmount.Decimal).Equal(p.AdjustedTotal.Decimal)
}
