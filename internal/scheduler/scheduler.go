package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/loykin/sentinel/internal/event"
	"github.com/loykin/sentinel/internal/metrics"
)

// DefaultInterval is the scan cadence when none is configured.
const DefaultInterval = 10 * time.Second

// Cycle triggers, used as the metrics label.
const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
)

type ServiceChecker interface {
	CheckAll(ctx context.Context) []event.ServiceStatus
}

type FileChecker interface {
	CheckAll(ctx context.Context) []string
}

type Sampler interface {
	Sample(ctx context.Context) event.MetricSample
}

// Scheduler runs check cycles (services, then files, then metrics) on a
// fixed cadence and on demand. At most one cycle runs at a time.
type Scheduler struct {
	services ServiceChecker
	files    FileChecker
	sampler  Sampler
	interval time.Duration

	cycle sync.Mutex

	mu     sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(services ServiceChecker, files FileChecker, sampler Sampler, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{services: services, files: files, sampler: sampler, interval: interval}
}

func (s *Scheduler) Interval() time.Duration { return s.interval }

// Start schedules the background cycle and runs the first one right away.
// Ticks that arrive while a cycle is still running are skipped.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return errors.New("scheduler already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	c := cron.New(cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger)))
	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := c.AddFunc(spec, func() { s.run(ctx, TriggerSchedule) }); err != nil {
		cancel()
		return fmt.Errorf("schedule %q: %w", spec, err)
	}
	s.cron = c
	s.cancel = cancel
	c.Start()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx, TriggerSchedule)
	}()

	slog.Info("scheduler started", "interval", s.interval)
	return nil
}

// Stop halts the background cycle and waits for a running one to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c, cancel := s.cron, s.cancel
	s.cron, s.cancel = nil, nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
	s.wg.Wait()
	cancel()
	slog.Info("scheduler stopped")
}

// RunOnce runs one full cycle synchronously. If a cycle is already running
// it waits for that one to finish first.
func (s *Scheduler) RunOnce(ctx context.Context) {
	s.run(ctx, TriggerManual)
}

func (s *Scheduler) run(ctx context.Context, trigger string) {
	s.cycle.Lock()
	defer s.cycle.Unlock()

	start := time.Now()
	statuses := s.services.CheckAll(ctx)
	restored := s.files.CheckAll(ctx)
	sample := s.sampler.Sample(ctx)
	elapsed := time.Since(start)

	metrics.ObserveCycle(trigger, elapsed.Seconds())
	slog.Debug("scan cycle complete",
		"trigger", trigger,
		"services", len(statuses),
		"restored", len(restored),
		"cpu", sample.CPU,
		"memory", sample.Memory,
		"duration", elapsed)
}
