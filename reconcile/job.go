package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/arhamfareed106/medusa-payment-backend/mailbox"
	"github.com/arhamfareed106/medusa-payment-backend/models"
)

const (
	DefaultJobName      = "verify-bank-transfers"
	DefaultPhaseTimeout = 30 * time.Second

	excerptLen = 500
)

var ErrAlreadyRunning = errors.New("reconcile: run already in progress")

// Session is an open mailbox connection. *mailbox.Session satisfies it.
type Session interface {
	Open(ctx context.Context) error
	SearchUnread(ctx context.Context) ([]uint32, error)
	Fetch(ctx context.Context, seqNum uint32) (mailbox.Message, error)
	Close() error
}

// DialFunc connects and logs in. It returns mailbox.ErrNotConfigured when no
// credentials are set, which makes the run a no-op.
type DialFunc func(ctx context.Context) (Session, error)

func MailboxDialer(cfg mailbox.Config) DialFunc {
	return func(ctx context.Context) (Session, error) {
		s, err := mailbox.Dial(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

type TransactionMatcher interface {
	Match(ctx context.Context, tid string, amount decimal.Decimal) (MatchResult, error)
}

type AttemptRecorder interface {
	Record(ctx context.Context, a *models.ReconciliationAttempt) error
}

type JobConfig struct {
	Name         string
	PhaseTimeout time.Duration
	Currency     string
}

type Report struct {
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Skipped     bool      `json:"skipped"`
	Unread      int       `json:"unread"`
	Matched     []string  `json:"matched"`
	Mismatched  int       `json:"mismatched"`
	NoRecord    int       `json:"no_record"`
	NoOrder     int       `json:"no_order"`
	NoID        int       `json:"no_transaction_id"`
	NoAmount    int       `json:"no_amount"`
	Unparseable int       `json:"unparseable"`
	Failed      int       `json:"failed"`
	Error       string    `json:"error,omitempty"`
}

// Stats accumulates across runs for the lifetime of the process.
type Stats struct {
	Runs        atomic.Int64
	Skipped     atomic.Int64
	Aborted     atomic.Int64
	Messages    atomic.Int64
	Matched     atomic.Int64
	Mismatched  atomic.Int64
	NoRecord    atomic.Int64
	NoOrder     atomic.Int64
	NoID        atomic.Int64
	NoAmount    atomic.Int64
	Unparseable atomic.Int64
	Failed      atomic.Int64
}

func (s *Stats) Snapshot() map[string]int64 {
	return map[string]int64{
		"runs":              s.Runs.Load(),
		"runs_skipped":      s.Skipped.Load(),
		"runs_aborted":      s.Aborted.Load(),
		"messages":          s.Messages.Load(),
		"matched":           s.Matched.Load(),
		"mismatched":        s.Mismatched.Load(),
		"no_record":         s.NoRecord.Load(),
		"no_order":          s.NoOrder.Load(),
		"no_transaction_id": s.NoID.Load(),
		"no_amount":         s.NoAmount.Load(),
		"unparseable":       s.Unparseable.Load(),
		"failed":            s.Failed.Load(),
	}
}

// Job reads unread bank alerts and hands each one to the matcher. At most one
// run is in flight per Job.
type Job struct {
	name         string
	dial         DialFunc
	matcher      TransactionMatcher
	extractor    *mailbox.Extractor
	attempts     AttemptRecorder
	phaseTimeout time.Duration
	logger       *zap.Logger
	now          func() time.Time

	running atomic.Bool
	stats   Stats

	mu   sync.RWMutex
	last *Report
}

func NewJob(cfg JobConfig, dial DialFunc, matcher TransactionMatcher, attempts AttemptRecorder, logger *zap.Logger) *Job {
	if cfg.Name == "" {
		cfg.Name = DefaultJobName
	}
	if cfg.PhaseTimeout <= 0 {
		cfg.PhaseTimeout = DefaultPhaseTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Job{
		name:         cfg.Name,
		dial:         dial,
		matcher:      matcher,
		extractor:    mailbox.NewExtractor(cfg.Currency),
		attempts:     attempts,
		phaseTimeout: cfg.PhaseTimeout,
		logger:       logger.Named("job").With(zap.String("job", cfg.Name)),
		now:          time.Now,
	}
}

func (j *Job) Name() string { return j.name }

func (j *Job) Running() bool { return j.running.Load() }

func (j *Job) Stats() map[string]int64 { return j.stats.Snapshot() }

// LastReport returns the report of the most recent finished run.
func (j *Job) LastReport() (Report, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.last == nil {
		return Report{}, false
	}
	r := *j.last
	r.Matched = append([]string(nil), j.last.Matched...)
	return r, true
}

// Run performs one reconciliation pass. Connection, mailbox and search
// failures abort the pass and are returned. A message that cannot be fetched
// or processed is counted in the report and the batch goes on, unless the
// session itself is lost, which aborts the messages not yet fetched.
func (j *Job) Run(ctx context.Context) (Report, error) {
	if !j.running.CompareAndSwap(false, true) {
		return Report{}, ErrAlreadyRunning
	}
	defer j.running.Store(false)

	rep := &Report{StartedAt: j.now()}
	err := j.run(ctx, rep)
	rep.FinishedAt = j.now()

	j.stats.Runs.Add(1)
	if err != nil {
		rep.Error = err.Error()
		j.stats.Aborted.Add(1)
		j.logger.Error("bank transfer verification aborted", zap.Error(err))
	}

	j.mu.Lock()
	j.last = rep
	j.mu.Unlock()
	return *rep, err
}

func (j *Job) run(ctx context.Context, rep *Report) error {
	var sess Session
	err := j.phase(ctx, func(ctx context.Context) error {
		var err error
		sess, err = j.dial(ctx)
		return err
	})
	if errors.Is(err, mailbox.ErrNotConfigured) {
		rep.Skipped = true
		j.stats.Skipped.Add(1)
		j.logger.Warn("IMAP credentials not configured, skipping bank transfer verification")
		return nil
	}
	if err != nil {
		return fmt.Errorf("reconcile: connect: %w", err)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			j.logger.Debug("close mailbox session", zap.Error(err))
		}
	}()

	j.logger.Info("starting bank transfer verification")

	if err := j.phase(ctx, sess.Open); err != nil {
		return fmt.Errorf("reconcile: open mailbox: %w", err)
	}

	var ids []uint32
	err = j.phase(ctx, func(ctx context.Context) error {
		var err error
		ids, err = sess.SearchUnread(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("reconcile: search unread: %w", err)
	}
	rep.Unread = len(ids)
	if len(ids) == 0 {
		j.logger.Info("no unread emails found")
		return nil
	}
	j.logger.Info("found unread emails", zap.Int("count", len(ids)))

	// A fetched message is flagged \Seen on the server and will not come
	// back, so it is processed even if ctx ends mid-batch.
	detached := context.WithoutCancel(ctx)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("reconcile: fetch: %w", err)
		}

		var msg mailbox.Message
		err := j.phase(ctx, func(ctx context.Context) error {
			var err error
			msg, err = sess.Fetch(ctx, id)
			return err
		})
		if err != nil {
			j.fetchFailed(detached, rep, id, err)
			if errors.Is(err, mailbox.ErrSessionClosed) || ctx.Err() != nil {
				return fmt.Errorf("reconcile: fetch: %w", err)
			}
			continue
		}
		j.process(detached, rep, msg)
	}

	j.logger.Info("email processing complete",
		zap.Strings("verified_tids", rep.Matched),
		zap.Int("mismatched", rep.Mismatched),
		zap.Int("failed", rep.Failed),
	)
	return nil
}

func (j *Job) phase(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, j.phaseTimeout)
	defer cancel()
	return fn(ctx)
}

func (j *Job) process(ctx context.Context, rep *Report, msg mailbox.Message) {
	ctx, cancel := context.WithTimeout(ctx, j.phaseTimeout)
	defer cancel()

	j.stats.Messages.Add(1)
	log := j.logger.With(zap.Uint32("seq", msg.SeqNum), zap.String("from", msg.From))
	att := &models.ReconciliationAttempt{
		RunStartedAt: rep.StartedAt,
		MessageSeq:   msg.SeqNum,
		Sender:       msg.From,
		Subject:      msg.Subject,
	}
	defer j.record(ctx, att)

	body, err := mailbox.DecodeBody(msg.Raw)
	if err != nil {
		j.count(rep, att, models.OutcomeUnparseable, err.Error())
		log.Warn("could not decode email", zap.Error(err))
		return
	}
	att.Snapshot = datatypes.JSONMap{"excerpt": excerpt(body)}

	ext, err := j.extractor.Extract(body)
	att.TransactionID = ext.TransactionID
	switch {
	case errors.Is(err, mailbox.ErrNoTransactionID):
		j.count(rep, att, models.OutcomeNoTransactionID, "")
		log.Debug("no TID found in email")
		return
	case errors.Is(err, mailbox.ErrNoAmount):
		j.count(rep, att, models.OutcomeNoAmount, "")
		log.Info("found TID but no valid amount", zap.String("tid", ext.TransactionID))
		return
	}
	att.Amount = decimal.NewNullDecimal(ext.Amount)
	log.Info("found transaction reference", zap.String("tid", ext.TransactionID), zap.String("amount", ext.Amount.String()))

	res, err := j.matcher.Match(ctx, ext.TransactionID, ext.Amount)
	if res.Record != nil {
		id := res.Record.ID
		att.PaymentInfoID = &id
	}
	if !res.Expected.IsZero() {
		att.Snapshot["expected_total"] = res.Expected.String()
	}
	if len(res.Duplicates) > 0 {
		att.Snapshot["duplicates"] = res.Duplicates
	}
	if err != nil {
		j.count(rep, att, models.OutcomeError, err.Error())
		log.Error("reconciliation failed", zap.String("tid", ext.TransactionID), zap.String("amount", ext.Amount.String()), zap.Error(err))
		return
	}
	j.count(rep, att, res.Outcome, "")
}

func (j *Job) fetchFailed(ctx context.Context, rep *Report, seq uint32, err error) {
	ctx, cancel := context.WithTimeout(ctx, j.phaseTimeout)
	defer cancel()

	j.stats.Messages.Add(1)
	att := &models.ReconciliationAttempt{RunStartedAt: rep.StartedAt, MessageSeq: seq}
	j.count(rep, att, models.OutcomeError, "fetch: "+err.Error())
	j.record(ctx, att)
	j.logger.Warn("could not fetch email", zap.Uint32("seq", seq), zap.Error(err))
}

func (j *Job) count(rep *Report, att *models.ReconciliationAttempt, outcome models.ReconciliationOutcome, detail string) {
	att.Outcome = outcome
	att.Detail = detail

	switch outcome {
	case models.OutcomeMatched:
		rep.Matched = append(rep.Matched, att.TransactionID)
		j.stats.Matched.Add(1)
	case models.OutcomeMismatch:
		rep.Mismatched++
		j.stats.Mismatched.Add(1)
	case models.OutcomeNoRecord:
		rep.NoRecord++
		j.stats.NoRecord.Add(1)
	case models.OutcomeNoOrder:
		rep.NoOrder++
		j.stats.NoOrder.Add(1)
	case models.OutcomeNoTransactionID:
		rep.NoID++
		j.stats.NoID.Add(1)
	case models.OutcomeNoAmount:
		rep.NoAmount++
		j.stats.NoAmount.Add(1)
	case models.OutcomeUnparseable:
		rep.Unparseable++
		j.stats.Unparseable.Add(1)
	default:
		rep.Failed++
		j.stats.Failed.Add(1)
	}
}

func (j *Job) record(ctx context.Context, att *models.ReconciliationAttempt) {
	if j.attempts == nil {
		return
	}
	if err := j.attempts.Record(ctx, att); err != nil {
		j.logger.Warn("record reconciliation attempt failed",
			zap.Uint32("seq", att.MessageSeq),
			zap.String("outcome", string(att.Outcome)),
			zap.Error(err),
		)
	}
}

func excerpt(body string) string {
	r := []rune(body)
	if len(r) <= excerptLen {
		return body
	}
	return string(r[:excerptLen])
}
