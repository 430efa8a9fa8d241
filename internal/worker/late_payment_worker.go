package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/aryan0dhankhar/rentledger/internal/featureflags"
	"github.com/aryan0dhankhar/rentledger/internal/observability/metrics"
)

// SweepFlag gates the late payment sweep (FLAG_LATE_PAYMENT_SWEEP)
const SweepFlag = "LATE_PAYMENT_SWEEP"

// OverdueMarker moves pending payments past their grace period to late
type OverdueMarker interface {
	MarkOverdue(ctx context.Context, grace time.Duration) (int, error)
}

// LatePaymentWorker periodically marks overdue payments as late
type LatePaymentWorker struct {
	payments OverdueMarker
	logger   *slog.Logger
	interval time.Duration
	grace    time.Duration
	enabled  func(string) bool
}

// NewLatePaymentWorker creates a new late payment worker
func NewLatePaymentWorker(payments OverdueMarker, logger *slog.Logger, interval, grace time.Duration) *LatePaymentWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &LatePaymentWorker{
		payments: payments,
		logger:   logger,
		interval: interval,
		grace:    grace,
		enabled:  featureflags.Enabled,
	}
}

// Start runs the sweep loop until ctx is cancelled
func (w *LatePaymentWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("late payment worker started",
		slog.Duration("interval", w.interval),
		slog.Duration("grace", w.grace),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("late payment worker stopped")
			return
		case <-ticker.C:
			if !w.enabled(SweepFlag) {
				continue
			}
			w.Sweep(ctx)
		}
	}
}

// Sweep runs a single pass and returns how many payments were marked late
func (w *LatePaymentWorker) Sweep(ctx context.Context) int {
	start := time.Now()
	marked, err := w.payments.MarkOverdue(ctx, w.grace)
	if err != nil {
		metrics.ObserveSweep("error", marked)
		w.logger.Error("late payment sweep failed",
			slog.String("error", err.Error()),
			slog.Int("marked", marked),
		)
		return marked
	}

	metrics.ObserveSweep("ok", marked)
	if marked > 0 {
		w.logger.Info("late payment sweep complete",
			slog.Int("marked", marked),
			slog.Duration("took", time.Since(start)),
		)
	}
	return marked
}
