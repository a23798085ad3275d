package schedule

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePoller struct {
	status   atomic.Int32
	runtimes atomic.Int32
}

func (p *fakePoller) PollStatus()   { p.status.Add(1) }
func (p *fakePoller) PollRuntimes() { p.runtimes.Add(1) }

func TestScheduler_Run(t *testing.T) {
	p := &fakePoller{}
	s, err := New(p, Config{Interval: time.Second, RuntimeSchedule: "0 0 0 1 1 *"}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error)
	go func() { errCh <- s.Run(ctx) }()

	// both polls run once at startup
	assert.Eventually(t, func() bool {
		return p.status.Load() >= 1 && p.runtimes.Load() == 1
	}, time.Second, 10*time.Millisecond)

	// and the status poll repeats on its interval
	assert.Eventually(t, func() bool {
		return p.status.Load() >= 2
	}, 3*time.Second, 50*time.Millisecond)
	assert.Equal(t, int32(1), p.runtimes.Load())

	cancel()
	assert.NoError(t, <-errCh)
}

func TestNew_Defaults(t *testing.T) {
	s, err := New(&fakePoller{}, Config{}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	assert.Len(t, s.cron.Entries(), 2)
}

func TestNew_InvalidRuntimeSchedule(t *testing.T) {
	_, err := New(&fakePoller{}, Config{RuntimeSchedule: "every hour"}, slog.New(slog.DiscardHandler))
	assert.Error(t, err)
}
