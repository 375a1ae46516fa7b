// payment_handler_db.go contains the admin handlers that read or override stored payment state.
package handlers

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/arhamfareed106/medusa-payment-backend/models"
)

type AttemptLister interface {
	ListRecent(ctx context.Context, outcome models.ReconciliationOutcome, limit int) ([]models.ReconciliationAttempt, error)
}

func (h *PaymentHandler) GetPaymentStatus(c *fiber.Ctx) error {
	info, err := h.Payments.GetByOrder(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"payment_info": info})
}

// UpdatePaymentStatus lets an admin set any status, including moving a paid
// order back to pending.
func (h *PaymentHandler) UpdatePaymentStatus(c *fiber.Ctx) error {
	var req models.PaymentStatusUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request: " + err.Error()})
	}

	info, err := h.Payments.Override(c.UserContext(), c.Params("id"), req.PaymentStatus)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{
		"success":        true,
		"payment_status": info.PaymentStatus,
		"payment_info":   info,
	})
}

func parseLimit(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	if l, err := strconv.Atoi(s); err == nil && l > 0 {
		return l
	}
	return fallback
}
