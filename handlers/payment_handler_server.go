package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/arhamfareed106/medusa-payment-backend/models"
	"github.com/arhamfareed106/medusa-payment-backend/payments"
	"github.com/arhamfareed106/medusa-payment-backend/pricing"
	"github.com/arhamfareed106/medusa-payment-backend/store"
)

type PaymentService interface {
	Complete(ctx context.Context, in payments.CompleteInput) (*models.OrderPaymentInfo, error)
	Override(ctx context.Context, orderID string, status models.PaymentStatus) (*models.OrderPaymentInfo, error)
	GetByOrder(ctx context.Context, orderID string) (*models.OrderPaymentInfo, error)
}

type CartFinder interface {
	FindCart(ctx context.Context, id string) (*models.Cart, error)
}

type PaymentHandler struct {
	Payments PaymentService
	Carts    CartFinder
	Calc     pricing.Calculator
	Logger   *zap.Logger
}

func NewPaymentHandler(svc PaymentService, carts CartFinder, calc pricing.Calculator, logger *zap.Logger) *PaymentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentHandler{Payments: svc, Carts: carts, Calc: calc, Logger: logger.Named("http")}
}

func (h *PaymentHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// fail maps service errors onto HTTP statuses. Anything unrecognised is a 500.
func (h *PaymentHandler) fail(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	msg := err.Error()

	switch {
	case errors.Is(err, payments.ErrOrderNotFound):
		status, msg = fiber.StatusNotFound, "Order not found"
	case errors.Is(err, payments.ErrNoPaymentInfo):
		status, msg = fiber.StatusNotFound, "Payment info not found for this order"
	case errors.Is(err, store.ErrNotFound):
		status, msg = fiber.StatusNotFound, "Not found"
	case errors.Is(err, payments.ErrTransactionIDRequired):
		status, msg = fiber.StatusBadRequest, "Transaction ID is required for bank transfer"
	case errors.Is(err, payments.ErrInvalidStatus):
		status, msg = fiber.StatusBadRequest, "Valid payment_status is required (pending, paid, or awaiting)"
	case errors.Is(err, payments.ErrInvalidMethod):
		status, msg = fiber.StatusBadRequest, "payment_method must be cod or bank_transfer"
	case errors.Is(err, payments.ErrInvalidTotal):
		status = fiber.StatusUnprocessableEntity
	case errors.Is(err, payments.ErrInvalidTransition):
		status, msg = fiber.StatusConflict, "Payment for this order can no longer be changed"
	default:
		h.Logger.Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
	}
	return c.Status(status).JSON(fiber.Map{"error": msg})
}
