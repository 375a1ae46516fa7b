package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/arhamfareed106/medusa-payment-backend/models"
	"github.com/arhamfareed106/medusa-payment-backend/reconcile"
)

type ReconcileJob interface {
	Run(ctx context.Context) (reconcile.Report, error)
	Running() bool
	LastReport() (reconcile.Report, bool)
	Stats() map[string]int64
}

type ReconciliationHandler struct {
	Job      ReconcileJob
	Attempts AttemptLister
	Logger   *zap.Logger
}

func NewReconciliationHandler(job ReconcileJob, attempts AttemptLister, logger *zap.Logger) *ReconciliationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconciliationHandler{Job: job, Attempts: attempts, Logger: logger.Named("http")}
}

// Run triggers a reconciliation pass and waits for its report.
func (h *ReconciliationHandler) Run(c *fiber.Ctx) error {
	rep, err := h.Job.Run(c.UserContext())
	if errors.Is(err, reconcile.ErrAlreadyRunning) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "reconciliation already running"})
	}
	if err != nil {
		h.Logger.Error("manual reconciliation failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error(), "report": rep})
	}
	return c.JSON(fiber.Map{"report": rep})
}

func (h *ReconciliationHandler) Status(c *fiber.Ctx) error {
	resp := fiber.Map{
		"running": h.Job.Running(),
		"stats":   h.Job.Stats(),
	}
	if rep, ok := h.Job.LastReport(); ok {
		resp["last_report"] = rep
	} else {
		resp["last_report"] = nil
	}
	return c.JSON(resp)
}

// ListAttempts lists recent per-email outcomes, newest first. ?outcome= filters,
// ?limit= caps the page (default 50).
func (h *ReconciliationHandler) ListAttempts(c *fiber.Ctx) error {
	outcome := models.ReconciliationOutcome(c.Query("outcome"))
	limit := parseLimit(c.Query("limit"), 50)

	attempts, err := h.Attempts.ListRecent(c.UserContext(), outcome, limit)
	if err != nil {
		h.Logger.Error("list reconciliation attempts failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to retrieve attempts: " + err.Error()})
	}
	return c.JSON(fiber.Map{"attempts": attempts, "limit": limit})
}
