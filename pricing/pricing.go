// Package pricing computes the fee or discount attached to a non-card
// payment method. All amounts are whole PKR.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/arhamfareed106/medusa-payment-backend/models"
)

const (
	DefaultCODFee                      = 350
	DefaultBankTransferDiscountPercent = 5

	codLabel = "COD Fee"
)

var hundred = decimal.NewFromInt(100)

type Adjustment struct {
	PaymentMethod models.PaymentMethod `json:"payment_method,omitempty"`
	OriginalTotal decimal.Decimal      `json:"original_total"`
	Amount        decimal.Decimal      `json:"adjustment_amount"`
	Label         string               `json:"adjustment_label"`
	FinalTotal    decimal.Decimal      `json:"final_total"`
}

type Calculator struct {
	CODFee                      decimal.Decimal
	BankTransferDiscountPercent decimal.Decimal
}

func NewCalculator(codFee, discountPercent decimal.Decimal) Calculator {
	return Calculator{CODFee: codFee, BankTransferDiscountPercent: discountPercent}
}

func DefaultCalculator() Calculator {
	return NewCalculator(decimal.NewFromInt(DefaultCODFee), decimal.NewFromInt(DefaultBankTransferDiscountPercent))
}

// BankTransferDiscount is the whole-unit discount for a bank transfer.
// Halves round away from zero (12.5 -> 13).
func (c Calculator) BankTransferDiscount(originalTotal decimal.Decimal) decimal.Decimal {
	return originalTotal.Mul(c.BankTransferDiscountPercent).Div(hundred).Round(0)
}

// Adjust never fails: an unknown method yields a zero adjustment.
func (c Calculator) Adjust(method models.PaymentMethod, originalTotal decimal.Decimal) Adjustment {
	adj := Adjustment{
		PaymentMethod: method,
		OriginalTotal: originalTotal,
		Amount:        decimal.Zero,
		FinalTotal:    originalTotal,
	}

	switch method {
	case models.PaymentMethodCOD:
		adj.Amount = c.CODFee
		adj.Label = codLabel
		adj.FinalTotal = originalTotal.Add(c.CODFee)
	case models.PaymentMethodBankTransfer:
		discount := c.BankTransferDiscount(originalTotal)
		adj.Amount = discount.Neg()
		adj.Label = fmt.Sprintf("%s%% Discount", c.BankTransferDiscountPercent.String())
		adj.FinalTotal = originalTotal.Sub(discount)
	}
	return adj
}

// Preview returns the adjustment for every supported method.
func (c Calculator) Preview(originalTotal decimal.Decimal) map[models.PaymentMethod]Adjustment {
	return map[models.PaymentMethod]Adjustment{
		models.PaymentMethodCOD:          c.Adjust(models.PaymentMethodCOD, originalTotal),
		models.PaymentMethodBankTransfer: c.Adjust(models.PaymentMethodBankTransfer, originalTotal),
	}
}
