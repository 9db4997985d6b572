// Package scheduler runs periodic background jobs.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// WindowSource reports the booking window state and announces changes.
// *service.ModerationService satisfies it.
type WindowSource interface {
	BookingOpen(ctx context.Context) (bool, error)
	AnnounceWindow(ctx context.Context, open bool)
}

// WindowWatcher polls the booking window and broadcasts
// bookingWindowChanged when it opens or closes.  Clients can then refresh
// without waiting for an admin edit.
type WindowWatcher struct {
	src  WindowSource
	spec string
	log  *zap.Logger

	mu   sync.Mutex
	seen bool
	open bool
	cron *cron.Cron
}

// NewWindowWatcher returns a watcher running on the cron spec, e.g.
// "@every 1m".
func NewWindowWatcher(src WindowSource, spec string, log *zap.Logger) *WindowWatcher {
	if spec == "" {
		spec = "@every 1m"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &WindowWatcher{src: src, spec: spec, log: log.Named("window-watcher")}
}

// Check samples the window once.  The first sample only records the state.
func (w *WindowWatcher) Check(ctx context.Context) {
	open, err := w.src.BookingOpen(ctx)
	if err != nil {
		w.log.Warn("window check failed", zap.Error(err))
		return
	}
	w.mu.Lock()
	changed := w.seen && open != w.open
	w.seen, w.open = true, open
	w.mu.Unlock()

	if changed {
		w.log.Info("booking window changed", zap.Bool("open", open))
		w.src.AnnounceWindow(ctx, open)
	}
}

// Start takes an initial sample and schedules the rest.
func (w *WindowWatcher) Start(ctx context.Context) error {
	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddFunc(w.spec, func() {
		cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		w.Check(cctx)
	}); err != nil {
		return err
	}
	w.Check(ctx)
	w.mu.Lock()
	w.cron = c
	w.mu.Unlock()
	c.Start()
	return nil
}

// Stop halts the schedule and waits for a running check to finish.
func (w *WindowWatcher) Stop() {
	w.mu.Lock()
	c := w.cron
	w.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}
