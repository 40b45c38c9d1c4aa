package event

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Severity ranks how urgently an event needs operator attention.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Event types emitted by the agent and the detector.
const (
	TypeConfigRestored   = "config_restored"
	TypeServiceRecovered = "service_recovered"
	TypeServiceFailed    = "service_failed"
	TypeManualHeal       = "manual_heal"
	TypeLockdown         = "lockdown"
	TypeCPUThreshold     = "cpu_threshold"
	TypeMemoryThreshold  = "memory_threshold"
	TypeAnomaly          = "anomaly"
)

// Event sources.
const (
	SourceAgent = "agent"
	SourceML    = "ml"
)

// Event is an immutable record handed to the reporter.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Severity  Severity       `json:"severity"`
	Source    string         `json:"source"`
	Summary   string         `json:"summary"`
	Details   map[string]any `json:"details"`
	Timestamp time.Time      `json:"timestamp"`
}

// New builds an event stamped with a fresh id and the current UTC time.
func New(typ string, sev Severity, source, summary string, details map[string]any) Event {
	if details == nil {
		details = map[string]any{}
	}
	return Event{
		ID:        uuid.NewString(),
		Type:      typ,
		Severity:  sev,
		Source:    source,
		Summary:   summary,
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
}

// MetricSample is one reading of host utilization.
// FailedLogins is reserved and currently always zero.
type MetricSample struct {
	CPU          float64   `json:"cpu"`
	Memory       float64   `json:"memory"`
	FailedLogins int       `json:"failedLogins"`
	Timestamp    time.Time `json:"timestamp"`
}

// ServiceState is the liveness of a service in the last scan.
type ServiceState string

const (
	ServiceUp   ServiceState = "up"
	ServiceDown ServiceState = "down"
)

// ServiceStatus is the per-service result of one scan.
type ServiceStatus struct {
	Name      string       `json:"name"`
	Status    ServiceState `json:"status"`
	Timestamp time.Time    `json:"timestamp"`
}

// AnomalyStatus classifies a scored observation.
type AnomalyStatus string

const (
	StatusNormal  AnomalyStatus = "normal"
	StatusAnomaly AnomalyStatus = "anomaly"
)

// AnomalyResult is the score of a single observation against its window.
type AnomalyResult struct {
	Status AnomalyStatus `json:"status"`
	Score  float64       `json:"score"`
	Mean   float64       `json:"mean"`
	Std    float64       `json:"std"`
}

// AnomalyRecord summarizes an anomalous sample for the backend.
type AnomalyRecord struct {
	ID        string                   `json:"id"`
	Status    AnomalyStatus            `json:"status"`
	Score     float64                  `json:"score"`
	Metric    string                   `json:"metric"`
	Details   map[string]AnomalyResult `json:"details"`
	Timestamp time.Time                `json:"timestamp"`
}

// HealOutcome is the result of an operator heal request.
type HealOutcome string

const (
	HealSuccess HealOutcome = "success"
	HealFailed  HealOutcome = "failed"
	HealSkipped HealOutcome = "skipped"
)

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
