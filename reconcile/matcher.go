// Package reconcile matches bank alert emails against bank-transfer payment
// records and marks the ones whose amount checks out as paid.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/arhamfareed106/medusa-payment-backend/events"
	"github.com/arhamfareed106/medusa-payment-backend/models"
	"github.com/arhamfareed106/medusa-payment-backend/payments"
	"github.com/arhamfareed106/medusa-payment-backend/store"
)

var DefaultTolerance = decimal.NewFromInt(1)

type RecordLister interface {
	List(ctx context.Context, f store.Filter) ([]models.OrderPaymentInfo, error)
}

type OrderFinder interface {
	FindOrder(ctx context.Context, id string) (*models.Order, error)
}

type PaymentMarker interface {
	MarkPaid(ctx context.Context, rec *models.OrderPaymentInfo) (*models.OrderPaymentInfo, error)
}

type MatchResult struct {
	Outcome       models.ReconciliationOutcome
	TransactionID string
	Amount        decimal.Decimal
	Expected      decimal.Decimal
	Record        *models.OrderPaymentInfo
	Duplicates    []string
}

type Matcher struct {
	infos     RecordLister
	orders    OrderFinder
	marker    PaymentMarker
	publisher events.Publisher
	tolerance decimal.Decimal
	logger    *zap.Logger
	now       func() time.Time
}

// NewMatcher returns a matcher that accepts amounts strictly within tolerance
// of the expected total. A non-positive tolerance falls back to DefaultTolerance.
func NewMatcher(infos RecordLister, orders OrderFinder, marker PaymentMarker, tolerance decimal.Decimal, logger *zap.Logger) *Matcher {
	if !tolerance.IsPositive() {
		tolerance = DefaultTolerance
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{
		infos:     infos,
		orders:    orders,
		marker:    marker,
		tolerance: tolerance,
		logger:    logger.Named("matcher"),
		now:       time.Now,
	}
}

// WithPublisher announces every verified payment. Publish failures are
// logged and never undo the status change.
func (m *Matcher) WithPublisher(p events.Publisher) *Matcher {
	m.publisher = p
	return m
}

// Match looks for an AWAITING record carrying tid and marks it paid when
// amount is close enough to its expected total. Only store failures are
// returned as errors; every other result is reported through the outcome.
func (m *Matcher) Match(ctx context.Context, tid string, amount decimal.Decimal) (MatchResult, error) {
	res := MatchResult{TransactionID: tid, Amount: amount}
	log := m.logger.With(zap.String("tid", tid), zap.String("amount", amount.String()))

	recs, err := m.infos.List(ctx, store.Filter{TransactionID: tid, PaymentStatus: models.PaymentStatusAwaiting})
	if err != nil {
		return res, fmt.Errorf("reconcile: list awaiting records (tid=%s amount=%s): %w", tid, amount, err)
	}
	if len(recs) == 0 {
		res.Outcome = models.OutcomeNoRecord
		log.Info("no matching awaiting record")
		return res, nil
	}
	if len(recs) > 1 {
		for _, r := range recs {
			res.Duplicates = append(res.Duplicates, r.ID)
		}
		log.Warn("multiple awaiting records share a transaction id, using the oldest",
			zap.Strings("payment_info_ids", res.Duplicates))
	}

	rec := recs[0]
	res.Record = &rec

	order, err := m.orders.FindOrder(ctx, rec.OrderID)
	if errors.Is(err, store.ErrNotFound) {
		res.Outcome = models.OutcomeNoOrder
		log.Warn("payment info has no linked order", zap.String("payment_info_id", rec.ID), zap.String("order_id", rec.OrderID))
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("reconcile: load order %s (tid=%s amount=%s): %w", rec.OrderID, tid, amount, err)
	}

	res.Expected = order.Total
	if rec.AdjustedTotal.Valid {
		res.Expected = rec.AdjustedTotal.Decimal
	}

	diff := res.Expected.Sub(amount).Abs()
	if !diff.LessThan(m.tolerance) {
		res.Outcome = models.OutcomeMismatch
		log.Warn("amount mismatch",
			zap.String("order_id", order.ID),
			zap.String("expected", res.Expected.String()),
			zap.String("difference", diff.String()),
		)
		return res, nil
	}

	updated, err := m.marker.MarkPaid(ctx, &rec)
	if errors.Is(err, payments.ErrInvalidTransition) {
		// Paid by a concurrent caller between the list and the update.
		res.Outcome = models.OutcomeNoRecord
		log.Info("record no longer awaiting", zap.String("payment_info_id", rec.ID))
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("reconcile: mark paid (tid=%s amount=%s): %w", tid, amount, err)
	}

	res.Outcome = models.OutcomeMatched
	res.Record = updated
	log.Info("verified and marked as paid", zap.String("order_id", order.ID), zap.String("payment_info_id", rec.ID))

	if m.publisher != nil {
		evt := events.PaymentVerified{
			OrderID:        order.ID,
			PaymentInfoID:  rec.ID,
			TransactionID:  tid,
			ReceivedAmount: amount,
			ExpectedTotal:  res.Expected,
			VerifiedAt:     m.now().UTC(),
		}
		if err := m.publisher.PaymentVerified(ctx, evt); err != nil {
			log.Error("publish payment verified failed", zap.Error(err))
		}
	}
	return res, nil
}
