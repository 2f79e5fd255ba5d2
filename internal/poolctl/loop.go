package poolctl

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// ReconcileLoop runs Controller.Reconcile on a ticker, the way
// metadata.LibvirtMetadataStore refreshes its index on a timer. It
// satisfies grace.Grace so it can be supervised alongside the HTTP API.
type ReconcileLoop struct {
	controller *Controller
	interval   time.Duration
	stop       chan struct{}
}

// NewReconcileLoop builds a loop that reconciles every interval. A
// non-positive interval falls back to 60s (spec.md §4.3's default).
func NewReconcileLoop(controller *Controller, interval time.Duration) *ReconcileLoop {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &ReconcileLoop{controller: controller, interval: interval, stop: make(chan struct{})}
}

func (l *ReconcileLoop) Name() string { return "hyperwake-reconciler" }

// Run reconciles once immediately, then on every tick, until ctx is
// canceled or Shutdown is called.
func (l *ReconcileLoop) Run(ctx context.Context) error {
	logger := zerolog.Ctx(ctx)
	if err := l.controller.Reconcile(ctx); err != nil {
		logger.Error().Err(err).Msg("initial reconcile failed")
	}

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := l.controller.Reconcile(ctx); err != nil {
				logger.Error().Err(err).Msg("reconcile failed")
			}
		case <-l.stop:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

func (l *ReconcileLoop) Shutdown(ctx context.Context) error {
	close(l.stop)
	return nil
}
