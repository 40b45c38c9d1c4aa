package sampler

import (
	"context"
	"log/slog"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/loykin/sentinel/internal/event"
	"github.com/loykin/sentinel/internal/metrics"
)

// DefaultThreshold leaves threshold alerts disabled unless configured lower.
const DefaultThreshold = 1.0

// Thresholds are utilization fractions above which an event is emitted.
type Thresholds struct {
	CPU    float64 `mapstructure:"cpu"`
	Memory float64 `mapstructure:"memory"`
}

// DefaultThresholds returns thresholds that never fire for valid fractions.
func DefaultThresholds() Thresholds {
	return Thresholds{CPU: DefaultThreshold, Memory: DefaultThreshold}
}

// Reader reads instantaneous host utilization as fractions in [0,1].
type Reader interface {
	CPU(ctx context.Context) (float64, error)
	Memory(ctx context.Context) (float64, error)
}

// HostReader reads utilization through gopsutil.
type HostReader struct{}

// CPU returns utilization since the previous call across all cores.
func (HostReader) CPU(ctx context.Context) (float64, error) {
	pct, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, err
	}
	if len(pct) == 0 {
		return 0, nil
	}
	return pct[0] / 100.0, nil
}

func (HostReader) Memory(ctx context.Context) (float64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return vm.UsedPercent / 100.0, nil
}

// Emitter receives threshold events.
type Emitter interface {
	Emit(ctx context.Context, e event.Event)
}

// Recorder forwards samples to the metric sinks.
type Recorder interface {
	RecordSample(ctx context.Context, s event.MetricSample)
}

// Sampler produces metric samples and checks them against thresholds.
type Sampler struct {
	reader     Reader
	thresholds Thresholds
	emit       Emitter
	rec        Recorder
}

func New(reader Reader, th Thresholds, emit Emitter, rec Recorder) *Sampler {
	if th.CPU <= 0 {
		th.CPU = DefaultThreshold
	}
	if th.Memory <= 0 {
		th.Memory = DefaultThreshold
	}
	return &Sampler{reader: reader, thresholds: th, emit: emit, rec: rec}
}

// Sample reads the host, reports the sample and emits threshold events.
// A metric that cannot be read is reported as zero.
func (s *Sampler) Sample(ctx context.Context) event.MetricSample {
	cpuFrac, err := s.reader.CPU(ctx)
	if err != nil {
		slog.Warn("Failed to read CPU utilization", "error", err)
		cpuFrac = 0
	}
	memFrac, err := s.reader.Memory(ctx)
	if err != nil {
		slog.Warn("Failed to read memory utilization", "error", err)
		memFrac = 0
	}
	sample := event.MetricSample{
		CPU:          event.Round(cpuFrac, 4),
		Memory:       event.Round(memFrac, 4),
		FailedLogins: 0,
		Timestamp:    time.Now().UTC(),
	}
	metrics.SetHostUsage(sample.CPU, sample.Memory)
	if s.rec != nil {
		s.rec.RecordSample(ctx, sample)
	}

	// thresholds compare the raw readings, as reported in the event details
	if cpuFrac > s.thresholds.CPU {
		s.report(ctx, event.TypeCPUThreshold, "CPU threshold exceeded", "cpu", cpuFrac)
	}
	if memFrac > s.thresholds.Memory {
		s.report(ctx, event.TypeMemoryThreshold, "Memory threshold exceeded", "memory", memFrac)
	}
	return sample
}

func (s *Sampler) report(ctx context.Context, typ, summary, key string, value float64) {
	slog.Warn(summary, key, value)
	if s.emit == nil {
		return
	}
	s.emit.Emit(ctx, event.New(typ, event.SeverityHigh, event.SourceAgent, summary, map[string]any{key: value}))
}
