package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/arhamfareed106/medusa-payment-backend/models"
	"github.com/arhamfareed106/medusa-payment-backend/payments"
	"github.com/arhamfareed106/medusa-payment-backend/store"
)

// PaymentAdjustment previews the COD fee and bank transfer discount for a
// cart. With ?payment_method= it returns that method only.
func (h *PaymentHandler) PaymentAdjustment(c *fiber.Ctx) error {
	cart, err := h.Carts.FindCart(c.UserContext(), c.Params("id"))
	if errors.Is(err, store.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Cart not found"})
	}
	if err != nil {
		return h.fail(c, err)
	}

	resp := fiber.Map{
		"cart_id":                        cart.ID,
		"currency_code":                  cart.CurrencyCode,
		"original_total":                 cart.Total,
		"subtotal":                       cart.Subtotal,
		"shipping_total":                 cart.ShippingTotal,
		"tax_total":                      cart.TaxTotal,
		"cod_fee":                        h.Calc.CODFee,
		"bank_transfer_discount_percent": h.Calc.BankTransferDiscountPercent,
	}

	if m := c.Query("payment_method"); m != "" {
		method := models.PaymentMethod(m)
		if !method.Valid() {
			return h.fail(c, payments.ErrInvalidMethod)
		}
		adj := h.Calc.Adjust(method, cart.Total)
		resp["payment_method"] = method
		resp["adjustment_amount"] = adj.Amount
		resp["adjustment_label"] = adj.Label
		resp["final_total"] = adj.FinalTotal
		return c.JSON(resp)
	}

	resp["adjustments"] = h.Calc.Preview(cart.Total)
	return c.JSON(resp)
}

func (h *PaymentHandler) CompleteCOD(c *fiber.Ctx) error {
	return h.complete(c, models.PaymentMethodCOD, "")
}

func (h *PaymentHandler) CompleteBankTransfer(c *fiber.Ctx) error {
	var req models.BankTransferCompleteRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request: " + err.Error()})
	}
	return h.complete(c, models.PaymentMethodBankTransfer, req.TransactionID)
}

func (h *PaymentHandler) complete(c *fiber.Ctx, method models.PaymentMethod, tid string) error {
	orderID := c.Params("id")
	info, err := h.Payments.Complete(c.UserContext(), payments.CompleteInput{
		OrderID:       orderID,
		Method:        method,
		TransactionID: tid,
	})
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(fiber.Map{
		"type":              "order",
		"order_id":          orderID,
		"original_total":    nullable(info.OriginalTotal),
		"adjustment_amount": nullable(info.AdjustmentAmount),
		"adjusted_total":    nullable(info.AdjustedTotal),
		"payment_info":      info,
	})
}

// GetPaymentInfo returns the order's payment info, or null when checkout
// has not recorded one yet.
func (h *PaymentHandler) GetPaymentInfo(c *fiber.Ctx) error {
	info, err := h.Payments.GetByOrder(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"payment_info": info})
}

func nullable(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal
}
