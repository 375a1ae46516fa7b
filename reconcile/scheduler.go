package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const DefaultSchedule = "*/2 * * * *"

type Runner interface {
	Run(ctx context.Context) (Report, error)
}

type SchedulerConfig struct {
	Name     string
	Schedule string
}

// Scheduler triggers a Runner on a cron schedule. A tick that fires while the
// previous run is still going is skipped.
type Scheduler struct {
	cron   *cron.Cron
	cancel context.CancelFunc
	logger *zap.Logger
}

func NewScheduler(cfg SchedulerConfig, job Runner, logger *zap.Logger) (*Scheduler, error) {
	if cfg.Name == "" {
		cfg.Name = DefaultJobName
	}
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("scheduler").With(zap.String("job", cfg.Name))

	cl := cronLogger{l: logger.Sugar()}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := c.AddFunc(cfg.Schedule, func() {
		rep, err := job.Run(ctx)
		switch {
		case errors.Is(err, ErrAlreadyRunning):
			logger.Info("previous run still in progress, skipping tick")
		case err != nil:
			logger.Error("scheduled run failed", zap.Error(err))
		case !rep.Skipped:
			logger.Info("scheduled run finished",
				zap.Int("unread", rep.Unread),
				zap.Int("matched", len(rep.Matched)),
				zap.Duration("took", rep.FinishedAt.Sub(rep.StartedAt)),
			)
		}
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("reconcile: invalid schedule %q: %w", cfg.Schedule, err)
	}

	return &Scheduler{cron: c, cancel: cancel, logger: logger}, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started")
}

// Stop cancels an in-flight run and waits for it to return or for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
