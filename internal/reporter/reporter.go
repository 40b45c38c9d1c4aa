package reporter

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/loykin/sentinel/internal/event"
	"github.com/loykin/sentinel/internal/history"
	"github.com/loykin/sentinel/internal/metrics"
)

// DefaultTimeout bounds every single delivery.
const DefaultTimeout = 3 * time.Second

type target struct {
	name string
	sink history.Sink
}

// Reporter fans records out to every registered sink. Deliveries run in
// their own goroutines with a bounded timeout; failures are logged and
// dropped, never retried and never returned to the caller.
type Reporter struct {
	timeout time.Duration

	mu      sync.RWMutex
	targets []target

	wg sync.WaitGroup
}

func New(timeout time.Duration) *Reporter {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Reporter{timeout: timeout}
}

// Add registers a sink under a name used in logs and failure metrics.
// A nil sink is ignored.
func (r *Reporter) Add(name string, s history.Sink) {
	if s == nil {
		return
	}
	r.mu.Lock()
	r.targets = append(r.targets, target{name: name, sink: s})
	r.mu.Unlock()
}

// Sinks returns the names of the registered sinks.
func (r *Reporter) Sinks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.targets))
	for i, t := range r.targets {
		out[i] = t.name
	}
	return out
}

func (r *Reporter) Emit(ctx context.Context, e event.Event) {
	metrics.IncEvent(e.Type, string(e.Severity))
	slog.Info("event", "type", e.Type, "severity", e.Severity, "summary", e.Summary)
	r.dispatch(ctx, history.EventRecord(e))
}

func (r *Reporter) RecordSample(ctx context.Context, s event.MetricSample) {
	r.dispatch(ctx, history.SampleRecord(s))
}

func (r *Reporter) RecordAnomaly(ctx context.Context, a event.AnomalyRecord) {
	r.dispatch(ctx, history.AnomalyRecord(a))
}

// Wait blocks until all in-flight deliveries have finished.
func (r *Reporter) Wait() { r.wg.Wait() }

func (r *Reporter) dispatch(ctx context.Context, rec history.Record) {
	r.mu.RLock()
	targets := append([]target(nil), r.targets...)
	r.mu.RUnlock()

	// deliveries outlive the request that triggered them
	base := context.WithoutCancel(ctx)
	for _, t := range targets {
		r.wg.Add(1)
		go func(t target) {
			defer r.wg.Done()
			dctx, cancel := context.WithTimeout(base, r.timeout)
			defer cancel()
			if err := t.sink.Send(dctx, rec); err != nil {
				slog.Debug("delivery failed", "sink", t.name, "kind", rec.Kind, "error", err)
				metrics.IncDeliveryFailure(t.name)
			}
		}(t)
	}
}
