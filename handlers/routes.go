package handlers

import "github.com/gofiber/fiber/v2"

func SetupRoutes(app *fiber.App, ph *PaymentHandler, rh *ReconciliationHandler) {
	app.Get("/health", ph.Health)

	st := app.Group("/store")
	st.Get("/carts/:id/payment-adjustment", ph.PaymentAdjustment)
	st.Post("/orders/:id/cod", ph.CompleteCOD)
	st.Post("/orders/:id/bank-transfer", ph.CompleteBankTransfer)
	st.Get("/orders/:id/payment-info", ph.GetPaymentInfo)

	admin := app.Group("/admin")
	admin.Get("/orders/:id/payment-status", ph.GetPaymentStatus)
	admin.Post("/orders/:id/payment-status", ph.UpdatePaymentStatus)
	admin.Post("/reconciliation/run", rh.Run)
	admin.Get("/reconciliation/status", rh.Status)
	admin.Get("/reconciliation/attempts", rh.ListAttempts)
}
