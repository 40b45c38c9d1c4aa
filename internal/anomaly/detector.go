package anomaly

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/loykin/sentinel/internal/event"
	"github.com/loykin/sentinel/internal/metrics"
)

const (
	DefaultWindow     = 30
	DefaultMinSamples = 5
	DefaultSigma      = 2.5
)

// Metric names scored for every sample, in reporting order.
const (
	MetricCPU          = "cpu"
	MetricMemory       = "memory"
	MetricFailedLogins = "failedLogins"
)

var sampleMetrics = []string{MetricCPU, MetricMemory, MetricFailedLogins}

// Config tunes the detector. Zero values select the defaults.
type Config struct {
	Window     int     `mapstructure:"window"`
	MinSamples int     `mapstructure:"min_samples"`
	Sigma      float64 `mapstructure:"sigma"`
}

func (c Config) withDefaults() Config {
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.MinSamples <= 0 {
		c.MinSamples = DefaultMinSamples
	}
	if c.Sigma <= 0 {
		c.Sigma = DefaultSigma
	}
	return c
}

// Reporter receives anomaly events and records.
type Reporter interface {
	Emit(ctx context.Context, e event.Event)
	RecordAnomaly(ctx context.Context, a event.AnomalyRecord)
}

// SampleResult is the outcome of scoring one metric sample.
type SampleResult struct {
	Status  event.AnomalyStatus            `json:"status"`
	Score   float64                        `json:"score"`
	Details map[string]event.AnomalyResult `json:"details"`
}

// Detector scores observations against per-metric rolling windows.
type Detector struct {
	cfg Config
	rep Reporter

	mu      sync.RWMutex
	windows map[string]*Window
}

// New builds a detector. rep may be nil when nothing should be reported.
func New(cfg Config, rep Reporter) *Detector {
	return &Detector{cfg: cfg.withDefaults(), rep: rep, windows: make(map[string]*Window)}
}

func (d *Detector) Config() Config { return d.cfg }

func (d *Detector) window(metric string) *Window {
	d.mu.RLock()
	w, ok := d.windows[metric]
	d.mu.RUnlock()
	if ok {
		return w
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if w, ok = d.windows[metric]; !ok {
		w = NewWindow(d.cfg.Window)
		d.windows[metric] = w
	}
	return w
}

// Ingest appends v to the metric's window and scores it.
// Until the window holds MinSamples values the result is always normal.
func (d *Detector) Ingest(metric string, v float64) event.AnomalyResult {
	st := d.window(metric).Push(v)
	if st.N < d.cfg.MinSamples {
		return event.AnomalyResult{Status: event.StatusNormal}
	}
	var score float64
	if st.Std != 0 {
		score = math.Abs(v-st.Mean) / st.Std
	}
	status := event.StatusNormal
	if score >= d.cfg.Sigma {
		status = event.StatusAnomaly
	}
	return event.AnomalyResult{
		Status: status,
		Score:  event.Round(score, 3),
		Mean:   event.Round(st.Mean, 4),
		Std:    event.Round(st.Std, 4),
	}
}

// IngestSample scores cpu, memory and failedLogins independently. When any
// of them is anomalous an anomaly event and an anomaly record are reported.
func (d *Detector) IngestSample(ctx context.Context, s event.MetricSample) SampleResult {
	return d.IngestValues(ctx, s.CPU, s.Memory, float64(s.FailedLogins))
}

// IngestValues is IngestSample for raw values; failedLogins is scored as
// sent, fractions included.
func (d *Detector) IngestValues(ctx context.Context, cpu, memory, failedLogins float64) SampleResult {
	values := map[string]float64{
		MetricCPU:          cpu,
		MetricMemory:       memory,
		MetricFailedLogins: failedLogins,
	}
	res := SampleResult{Status: event.StatusNormal, Details: make(map[string]event.AnomalyResult, len(sampleMetrics))}
	var anomalous []string
	for _, m := range sampleMetrics {
		r := d.Ingest(m, values[m])
		res.Details[m] = r
		if r.Status == event.StatusAnomaly {
			anomalous = append(anomalous, m)
			res.Score = math.Max(res.Score, r.Score)
		}
	}
	if len(anomalous) == 0 {
		return res
	}
	res.Status = event.StatusAnomaly
	for _, m := range anomalous {
		metrics.IncAnomaly(m)
	}
	slog.Warn("anomaly detected", "metrics", strings.Join(anomalous, ","), "score", res.Score)

	if d.rep != nil {
		d.rep.Emit(ctx, event.New(event.TypeAnomaly, event.SeverityHigh, event.SourceML,
			"Anomaly detected", map[string]any{"metrics": res.Details}))
		d.rep.RecordAnomaly(ctx, event.AnomalyRecord{
			ID:        uuid.NewString(),
			Status:    event.StatusAnomaly,
			Score:     res.Score,
			Metric:    strings.Join(anomalous, ","),
			Details:   res.Details,
			Timestamp: time.Now().UTC(),
		})
	}
	return res
}

// Window returns a snapshot of one metric's window, nil if never ingested.
func (d *Detector) Window(metric string) []float64 {
	d.mu.RLock()
	w, ok := d.windows[metric]
	d.mu.RUnlock()
	if !ok {
		return nil
	}
	return w.Values()
}

// Windows returns snapshots of every window keyed by metric name.
func (d *Detector) Windows() map[string][]float64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string][]float64, len(d.windows))
	for name, w := range d.windows {
		out[name] = w.Values()
	}
	return out
}
