// Package payments owns the lifecycle of an order's non-card payment record:
// creating it at checkout, the automatic AWAITING to PAID step driven by
// reconciliation, and administrative overrides.
package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/arhamfareed106/medusa-payment-backend/models"
	"github.com/arhamfareed106/medusa-payment-backend/pricing"
	"github.com/arhamfareed106/medusa-payment-backend/store"
)

var (
	ErrInvalidMethod         = errors.New("payments: unsupported payment method")
	ErrInvalidStatus         = errors.New("payments: invalid payment status")
	ErrInvalidTotal          = errors.New("payments: order total is negative")
	ErrTransactionIDRequired = errors.New("payments: transaction id is required for bank transfer")
	ErrInvalidTransition     = errors.New("payments: status transition not allowed")
	ErrNoPaymentInfo         = errors.New("payments: order has no payment info")
	ErrOrderNotFound         = errors.New("payments: order not found")
)

// automatic holds the only transitions the system makes on its own.
// Administrative overrides bypass it.
var automatic = map[models.PaymentStatus][]models.PaymentStatus{
	models.PaymentStatusAwaiting: {models.PaymentStatusPaid},
}

func CanTransition(from, to models.PaymentStatus) bool {
	for _, s := range automatic[from] {
		if s == to {
			return true
		}
	}
	return false
}

// InitialStatus is the status a record gets when checkout completes.
func InitialStatus(method models.PaymentMethod) models.PaymentStatus {
	if method == models.PaymentMethodBankTransfer {
		return models.PaymentStatusAwaiting
	}
	return models.PaymentStatusPending
}

type CompleteInput struct {
	OrderID       string
	Method        models.PaymentMethod
	TransactionID string
}

type Service struct {
	infos  store.PaymentInfoRepository
	orders store.OrderRepository
	calc   pricing.Calculator
	logger *zap.Logger
}

func NewService(infos store.PaymentInfoRepository, orders store.OrderRepository, calc pricing.Calculator, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		infos:  infos,
		orders: orders,
		calc:   calc,
		logger: logger.Named("payments"),
	}
}

// Complete records how an order will be paid. Calling it again re-seeds an
// unpaid record of the same method with fresh totals and transaction id. A
// PAID record or a change of method is refused with ErrInvalidTransition.
func (s *Service) Complete(ctx context.Context, in CompleteInput) (*models.OrderPaymentInfo, error) {
	if !in.Method.Valid() {
		return nil, ErrInvalidMethod
	}

	var tid *string
	if in.Method == models.PaymentMethodBankTransfer {
		trimmed := strings.TrimSpace(in.TransactionID)
		if trimmed == "" {
			return nil, ErrTransactionIDRequired
		}
		tid = &trimmed
	}

	order, err := s.findOrder(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Total.IsNegative() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTotal, order.Total)
	}

	adj := s.calc.Adjust(in.Method, order.Total)
	status := InitialStatus(in.Method)

	if order.PaymentInfo == nil {
		info := &models.OrderPaymentInfo{
			OrderID:          order.ID,
			TransactionID:    tid,
			PaymentStatus:    status,
			PaymentMethod:    in.Method,
			OriginalTotal:    decimal.NewNullDecimal(adj.OriginalTotal),
			AdjustmentAmount: decimal.NewNullDecimal(adj.Amount),
			AdjustedTotal:    decimal.NewNullDecimal(adj.FinalTotal),
		}
		if err := s.infos.Create(ctx, info); err != nil {
			s.logger.Error("create payment info failed", zap.String("order_id", order.ID), zap.Error(err))
			return nil, fmt.Errorf("payments: create payment info for order %s: %w", order.ID, err)
		}
		s.logger.Info("payment info created",
			zap.String("order_id", order.ID),
			zap.String("method", string(in.Method)),
			zap.String("status", string(status)),
			zap.String("adjusted_total", adj.FinalTotal.String()),
		)
		return info, nil
	}

	current := order.PaymentInfo
	if current.PaymentStatus == models.PaymentStatusPaid {
		return nil, fmt.Errorf("%w: order %s is already paid", ErrInvalidTransition, order.ID)
	}
	if current.PaymentMethod != in.Method {
		return nil, fmt.Errorf("%w: order %s was completed with %s, not %s", ErrInvalidTransition, order.ID, current.PaymentMethod, in.Method)
	}

	updated, err := s.infos.Update(ctx, store.Selector{ID: current.ID, PaymentStatus: current.PaymentStatus}, map[string]any{
		"transaction_id":    tid,
		"payment_status":    status,
		"original_total":    decimal.NewNullDecimal(adj.OriginalTotal),
		"adjustment_amount": decimal.NewNullDecimal(adj.Amount),
		"adjusted_total":    decimal.NewNullDecimal(adj.FinalTotal),
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: record %s changed status concurrently", ErrInvalidTransition, current.ID)
	}
	if err != nil {
		s.logger.Error("update payment info failed", zap.String("order_id", order.ID), zap.Error(err))
		return nil, fmt.Errorf("payments: update payment info for order %s: %w", order.ID, err)
	}
	s.logger.Info("payment info updated",
		zap.String("order_id", order.ID),
		zap.String("method", string(in.Method)),
		zap.String("status", string(status)),
	)
	return updated, nil
}

// MarkPaid moves an AWAITING record to PAID. The write is conditional on the
// stored status, so a record changed since rec was read is left untouched.
func (s *Service) MarkPaid(ctx context.Context, rec *models.OrderPaymentInfo) (*models.OrderPaymentInfo, error) {
	if rec == nil {
		return nil, ErrNoPaymentInfo
	}
	if !CanTransition(rec.PaymentStatus, models.PaymentStatusPaid) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, rec.PaymentStatus, models.PaymentStatusPaid)
	}

	updated, err := s.infos.Update(ctx,
		store.Selector{ID: rec.ID, PaymentStatus: models.PaymentStatusAwaiting},
		map[string]any{"payment_status": models.PaymentStatusPaid},
	)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: record %s is no longer awaiting", ErrInvalidTransition, rec.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("payments: mark %s paid: %w", rec.ID, err)
	}
	return updated, nil
}

// Override sets any status on an order's record.
func (s *Service) Override(ctx context.Context, orderID string, status models.PaymentStatus) (*models.OrderPaymentInfo, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	order, err := s.findOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	current := order.PaymentInfo
	if current == nil {
		return nil, ErrNoPaymentInfo
	}

	if current.PaymentStatus == models.PaymentStatusPaid && status != models.PaymentStatusPaid {
		s.logger.Warn("payment status regressed from paid",
			zap.String("order_id", orderID),
			zap.String("payment_info_id", current.ID),
			zap.String("to", string(status)),
		)
	}

	updated, err := s.infos.Update(ctx, store.Selector{ID: current.ID}, map[string]any{"payment_status": status})
	if err != nil {
		return nil, fmt.Errorf("payments: override status for order %s: %w", orderID, err)
	}
	s.logger.Info("payment status overridden",
		zap.String("order_id", orderID),
		zap.String("from", string(current.PaymentStatus)),
		zap.String("to", string(status)),
	)
	return updated, nil
}

// GetByOrder returns the order's payment record, or nil when none exists yet.
func (s *Service) GetByOrder(ctx context.Context, orderID string) (*models.OrderPaymentInfo, error) {
	order, err := s.findOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return order.PaymentInfo, nil
}

func (s *Service) findOrder(ctx context.Context, orderID string) (*models.Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, ErrOrderNotFound
	}
	order, err := s.orders.FindOrder(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("payments: load order %s: %w", orderID, err)
	}
	return order, nil
}
