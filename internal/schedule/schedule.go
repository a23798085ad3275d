// Package schedule triggers the periodic device polls.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	DefaultInterval        = 15 * time.Second
	DefaultRuntimeSchedule = "0 0 * * * *"
)

type Poller interface {
	PollStatus()
	PollRuntimes()
}

type Config struct {
	// Interval between status polls.
	Interval time.Duration
	// RuntimeSchedule is a cron expression with a seconds field.
	RuntimeSchedule string
}

type Scheduler struct {
	poller Poller
	cron   *cron.Cron
	logger *slog.Logger
}

func New(poller Poller, cfg Config, logger *slog.Logger) (*Scheduler, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.RuntimeSchedule == "" {
		cfg.RuntimeSchedule = DefaultRuntimeSchedule
	}

	l := cronLogger{logger: logger}
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLogger(l),
		cron.WithChain(cron.Recover(l)),
	)
	if _, err := c.AddFunc("@every "+cfg.Interval.String(), poller.PollStatus); err != nil {
		return nil, fmt.Errorf("status schedule: %w", err)
	}
	if _, err := c.AddFunc(cfg.RuntimeSchedule, poller.PollRuntimes); err != nil {
		return nil, fmt.Errorf("runtime schedule %q: %w", cfg.RuntimeSchedule, err)
	}

	return &Scheduler{poller: poller, cron: c, logger: logger}, nil
}

// Run polls once right away, then on schedule until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.poller.PollStatus()
	s.poller.PollRuntimes()

	s.cron.Start()
	s.logger.Debug("scheduler started", slog.Int("entries", len(s.cron.Entries())))

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Debug("scheduler stopped")
	return nil
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "err", err)...)
}
