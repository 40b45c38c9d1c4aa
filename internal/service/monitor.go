package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/loykin/sentinel/internal/detector"
	"github.com/loykin/sentinel/internal/event"
	"github.com/loykin/sentinel/internal/metrics"
	"github.com/loykin/sentinel/internal/process"
)

// Spec describes one watched service.
type Spec struct {
	Name           string `json:"name" mapstructure:"name"`
	ProcessPattern string `json:"process_pattern" mapstructure:"process_pattern"`
	RestartCommand string `json:"restart_command" mapstructure:"restart_command"`
}

// DetectorFunc builds the liveness strategy of one service over a process
// listing shared by the whole scan.
type DetectorFunc func(s Spec, l process.Lister) detector.Detector

// PatternDetection matches the service's process pattern as a substring.
func PatternDetection(s Spec, l process.Lister) detector.Detector {
	return detector.PatternDetector{Pattern: s.ProcessPattern, Lister: l}
}

// Emitter receives events produced by the monitor.
type Emitter interface {
	Emit(ctx context.Context, e event.Event)
}

// Monitor checks service liveness and restarts dead services.
// The last scan result is kept as an immutable snapshot replaced wholesale
// after every scan, so readers never see a partially updated list.
type Monitor struct {
	specs  []Spec
	lister process.Lister
	runner process.Runner
	emit   Emitter
	detect DetectorFunc

	// scan serializes scans so a restart command never runs twice at once
	scan     sync.Mutex
	mu       sync.RWMutex
	statuses []event.ServiceStatus
	scanned  bool
}

func NewMonitor(specs []Spec, lister process.Lister, runner process.Runner, emit Emitter) *Monitor {
	return &Monitor{
		specs:  append([]Spec(nil), specs...),
		lister: lister,
		runner: runner,
		emit:   emit,
		detect: PatternDetection,
	}
}

// UseDetector replaces the liveness strategy. It must be called before the
// first scan.
func (m *Monitor) UseDetector(f DetectorFunc) {
	if f != nil {
		m.detect = f
	}
}

// CheckAll scans every configured service, runs restart commands for the
// ones that are down and replaces the status snapshot. Concurrent calls run
// one after another.
func (m *Monitor) CheckAll(ctx context.Context) []event.ServiceStatus {
	m.scan.Lock()
	defer m.scan.Unlock()
	return m.checkAll(ctx)
}

func (m *Monitor) checkAll(ctx context.Context) []event.ServiceStatus {
	lines, err := m.lister.CommandLines(ctx)
	if err != nil {
		slog.Warn("Failed to list processes", "error", err)
		lines = nil
	}
	snap := detector.Snapshot(lines)

	out := make([]event.ServiceStatus, 0, len(m.specs))
	for _, s := range m.specs {
		d := m.detect(s, snap)
		alive, err := d.Alive(ctx)
		if err != nil {
			slog.Warn("Liveness check failed", "service", s.Name, "detector", d.Describe(), "error", err)
		}
		st := event.ServiceDown
		if alive {
			st = event.ServiceUp
		}
		out = append(out, event.ServiceStatus{Name: s.Name, Status: st, Timestamp: time.Now().UTC()})
		metrics.SetServiceUp(s.Name, alive)

		if alive || s.Name == "" || s.RestartCommand == "" {
			continue
		}
		if m.restart(ctx, s) {
			m.report(ctx, event.TypeServiceRecovered, event.SeverityMedium, "Service "+s.Name+" restarted", s.Name)
		} else {
			m.report(ctx, event.TypeServiceFailed, event.SeverityHigh, "Service "+s.Name+" restart failed", s.Name)
		}
	}

	m.mu.Lock()
	m.statuses = out
	m.scanned = true
	m.mu.Unlock()
	return copyStatuses(out)
}

// Statuses returns a copy of the last completed scan.
func (m *Monitor) Statuses() []event.ServiceStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyStatuses(m.statuses)
}

// StatusesOrCheck returns the last snapshot, scanning first if no scan has
// completed yet. A call arriving while the first scan runs waits for it and
// returns its result instead of scanning again.
func (m *Monitor) StatusesOrCheck(ctx context.Context) []event.ServiceStatus {
	m.mu.RLock()
	scanned := m.scanned
	m.mu.RUnlock()
	if scanned {
		return m.Statuses()
	}
	m.scan.Lock()
	defer m.scan.Unlock()
	m.mu.RLock()
	scanned = m.scanned
	m.mu.RUnlock()
	if scanned {
		return m.Statuses()
	}
	return m.checkAll(ctx)
}

// HealOne runs the restart command of the named service on operator request.
// Unknown services and services without a restart command are skipped
// without emitting an event.
func (m *Monitor) HealOne(ctx context.Context, name string) event.HealOutcome {
	if name == "" {
		return event.HealSkipped
	}
	for _, s := range m.specs {
		if s.Name != name || s.RestartCommand == "" {
			continue
		}
		outcome := event.HealFailed
		if m.restart(ctx, s) {
			outcome = event.HealSuccess
		}
		if m.emit != nil {
			m.emit.Emit(ctx, event.New(event.TypeManualHeal, event.SeverityMedium, event.SourceAgent,
				"Heal "+name+" "+string(outcome), map[string]any{"service": name, "status": string(outcome)}))
		}
		return outcome
	}
	return event.HealSkipped
}

func (m *Monitor) restart(ctx context.Context, s Spec) bool {
	code, err := m.runner.Run(ctx, s.RestartCommand)
	ok := err == nil && code == 0
	if ok {
		slog.Info("Service restarted", "service", s.Name)
	} else {
		slog.Warn("Service restart failed", "service", s.Name, "exitCode", code, "error", err)
	}
	metrics.IncServiceRestart(s.Name, ok)
	return ok
}

func (m *Monitor) report(ctx context.Context, typ string, sev event.Severity, summary, name string) {
	if m.emit == nil {
		return
	}
	m.emit.Emit(ctx, event.New(typ, sev, event.SourceAgent, summary, map[string]any{"service": name}))
}

func copyStatuses(in []event.ServiceStatus) []event.ServiceStatus {
	out := make([]event.ServiceStatus, len(in))
	copy(out, in)
	return out
}
