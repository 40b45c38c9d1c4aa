package agent

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/loykin/sentinel/internal/event"
	"github.com/loykin/sentinel/internal/integrity"
	"github.com/loykin/sentinel/internal/metrics"
	"github.com/loykin/sentinel/internal/process"
	"github.com/loykin/sentinel/internal/sampler"
	"github.com/loykin/sentinel/internal/scheduler"
	"github.com/loykin/sentinel/internal/service"
)

// Reporter delivers agent events and metric samples downstream.
type Reporter interface {
	Emit(ctx context.Context, e event.Event)
	RecordSample(ctx context.Context, s event.MetricSample)
}

// Options wires an Agent. Nil collaborators fall back to the host
// implementations.
type Options struct {
	Baseline   integrity.Baseline
	BackupDir  string
	Services   []service.Spec
	Thresholds sampler.Thresholds
	Interval   time.Duration

	Lister   process.Lister
	Runner   process.Runner
	Reader   sampler.Reader
	Reporter Reporter
}

// Health is the agent's liveness answer.
type Health struct {
	Status   string `json:"status"`
	Lockdown bool   `json:"lockdown"`
}

// Agent owns the monitors, the scan scheduler and the lockdown flag.
type Agent struct {
	services *service.Monitor
	files    *integrity.Monitor
	sampler  *sampler.Sampler
	sched    *scheduler.Scheduler
	rep      Reporter

	lockdown atomic.Bool
}

func New(o Options) *Agent {
	if o.Lister == nil {
		o.Lister = process.HostLister{}
	}
	if o.Runner == nil {
		o.Runner = process.ShellRunner{}
	}
	if o.Reader == nil {
		o.Reader = sampler.HostReader{}
	}
	if o.Reporter == nil {
		o.Reporter = discard{}
	}
	a := &Agent{rep: o.Reporter}
	a.services = service.NewMonitor(o.Services, o.Lister, o.Runner, o.Reporter)
	a.files = integrity.NewMonitor(o.Baseline, o.BackupDir, o.Reporter)
	a.sampler = sampler.New(o.Reader, o.Thresholds, o.Reporter, o.Reporter)
	a.sched = scheduler.New(a.services, a.files, a.sampler, o.Interval)
	return a
}

// Start launches the background scan cycle.
func (a *Agent) Start(ctx context.Context) error { return a.sched.Start(ctx) }

// Stop halts the background cycle, waiting for a running one.
func (a *Agent) Stop() { a.sched.Stop() }

func (a *Agent) Health() Health {
	return Health{Status: "ok", Lockdown: a.lockdown.Load()}
}

// Scan runs one full check cycle synchronously.
func (a *Agent) Scan(ctx context.Context) { a.sched.RunOnce(ctx) }

// Heal restarts one named service on demand.
func (a *Agent) Heal(ctx context.Context, name string) event.HealOutcome {
	return a.services.HealOne(ctx, name)
}

// SetLockdown stores the flag and always emits a critical lockdown event,
// even when the value did not change.
func (a *Agent) SetLockdown(ctx context.Context, strict bool) bool {
	prev := a.lockdown.Swap(strict)
	metrics.SetLockdown(strict)
	slog.Warn("Lockdown updated", "strict", strict, "previous", prev)
	a.rep.Emit(ctx, event.New(event.TypeLockdown, event.SeverityCritical, event.SourceAgent,
		"Lockdown updated", map[string]any{"strict": strict}))
	return strict
}

func (a *Agent) Lockdown() bool { return a.lockdown.Load() }

// Services returns the last scan's statuses, scanning first when no cycle
// has completed yet.
func (a *Agent) Services(ctx context.Context) []event.ServiceStatus {
	return a.services.StatusesOrCheck(ctx)
}

type discard struct{}

func (discard) Emit(context.Context, event.Event)                {}
func (discard) RecordSample(context.Context, event.MetricSample) {}
