package audit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aryan0dhankhar/rentledger/internal/observability/metrics"
	"github.com/aryan0dhankhar/rentledger/internal/observability/requestid"
	"github.com/aryan0dhankhar/rentledger/internal/reliability/circuitbreaker"
)

const (
	writeTimeout = 5 * time.Second
	drainTimeout = 10 * time.Second
)

type guardedSink struct {
	sink    Sink
	breaker *circuitbreaker.CircuitBreaker
}

// Dispatcher is the asynchronous Emitter. Records are queued in a bounded
// buffer and delivered to every sink by a single goroutine; a full buffer
// drops the record rather than stalling the request.
type Dispatcher struct {
	queue  chan Entry
	sinks  []guardedSink
	logger *slog.Logger
	now    func() time.Time
	done   chan struct{}
}

// NewDispatcher creates a dispatcher with the given buffer size and sinks
func NewDispatcher(logger *slog.Logger, bufferSize int, sinks ...Sink) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if bufferSize <= 0 {
		bufferSize = 256
	}
	d := &Dispatcher{
		queue:  make(chan Entry, bufferSize),
		logger: logger,
		now:    time.Now,
		done:   make(chan struct{}),
	}
	for _, s := range sinks {
		cb := circuitbreaker.NewCircuitBreaker(5, 1, 30*time.Second)
		name := s.Name()
		cb.SetStateChangeCallback(func(from, to circuitbreaker.State) {
			logger.Warn("audit sink circuit changed",
				slog.String("sink", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		})
		d.sinks = append(d.sinks, guardedSink{sink: s, breaker: cb})
	}
	return d
}

// Emit enqueues e without blocking
func (d *Dispatcher) Emit(ctx context.Context, e Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = d.now().UTC()
	}
	if e.RequestID == "" {
		e.RequestID = requestid.From(ctx)
	}

	select {
	case d.queue <- e:
		metrics.SetAuditQueueDepth(len(d.queue))
	default:
		metrics.ObserveAudit("queue", "dropped")
		d.logger.Error("audit queue full, record dropped",
			slog.String("action", e.Action),
			slog.String("actor_id", e.ActorID),
		)
	}
}

// Start delivers queued records until ctx is cancelled, then drains what is
// left within a bounded time.
func (d *Dispatcher) Start(ctx context.Context) {
	defer close(d.done)
	d.logger.Info("audit dispatcher started", slog.Int("sinks", len(d.sinks)))

	for {
		select {
		case <-ctx.Done():
			d.drain()
			d.logger.Info("audit dispatcher stopped")
			return
		case e := <-d.queue:
			metrics.SetAuditQueueDepth(len(d.queue))
			d.deliver(ctx, e)
		}
	}
}

// Done is closed once Start has returned
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

func (d *Dispatcher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for {
		select {
		case e := <-d.queue:
			d.deliver(ctx, e)
		default:
			metrics.SetAuditQueueDepth(0)
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, e Entry) {
	for _, gs := range d.sinks {
		err := gs.breaker.Execute(func() error {
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			defer cancel()
			return gs.sink.Write(wctx, e)
		})
		switch {
		case err == nil:
			metrics.ObserveAudit(gs.sink.Name(), "ok")
		case errors.Is(err, circuitbreaker.ErrOpen):
			metrics.ObserveAudit(gs.sink.Name(), "skipped")
		default:
			metrics.ObserveAudit(gs.sink.Name(), "error")
			d.logger.Error("audit sink write failed",
				slog.String("sink", gs.sink.Name()),
				slog.String("action", e.Action),
				slog.String("error", err.Error()),
			)
		}
	}
}
