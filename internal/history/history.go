package history

import (
	"context"
	"time"

	"github.com/loykin/sentinel/internal/event"
)

// Kind identifies which payload a Record carries.
type Kind string

const (
	KindEvent   Kind = "event"
	KindMetric  Kind = "metric"
	KindAnomaly Kind = "anomaly"
)

// Record is one item exported to external systems. Exactly one of Event,
// Sample or Anomaly is set, matching Kind.
type Record struct {
	Kind       Kind                 `json:"kind"`
	OccurredAt time.Time            `json:"occurred_at"`
	Event      *event.Event         `json:"event,omitempty"`
	Sample     *event.MetricSample  `json:"sample,omitempty"`
	Anomaly    *event.AnomalyRecord `json:"anomaly,omitempty"`
}

// EventRecord wraps an event.
func EventRecord(e event.Event) Record {
	return Record{Kind: KindEvent, OccurredAt: e.Timestamp, Event: &e}
}

// SampleRecord wraps a metric sample.
func SampleRecord(s event.MetricSample) Record {
	return Record{Kind: KindMetric, OccurredAt: s.Timestamp, Sample: &s}
}

// AnomalyRecord wraps an anomaly record.
func AnomalyRecord(a event.AnomalyRecord) Record {
	return Record{Kind: KindAnomaly, OccurredAt: a.Timestamp, Anomaly: &a}
}

// Sink is a destination for history records (backends, databases, search).
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, r Record) error
}
