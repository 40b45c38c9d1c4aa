package sentinel

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/loykin/sentinel/internal/agent"
	"github.com/loykin/sentinel/internal/anomaly"
	cfg "github.com/loykin/sentinel/internal/config"
	"github.com/loykin/sentinel/internal/event"
	"github.com/loykin/sentinel/internal/history"
	"github.com/loykin/sentinel/internal/integrity"
	"github.com/loykin/sentinel/internal/metrics"
	"github.com/loykin/sentinel/internal/sampler"
	iapi "github.com/loykin/sentinel/internal/server"
	"github.com/loykin/sentinel/internal/service"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Event = event.Event

type MetricSample = event.MetricSample

type ServiceStatus = event.ServiceStatus

type ServiceSpec = service.Spec

type Thresholds = sampler.Thresholds

type Baseline = integrity.Baseline

type AgentOptions = agent.Options

type AgentConfig = cfg.AgentConfig

type DetectorConfig = cfg.DetectorConfig

type AnomalyConfig = anomaly.Config

type HistorySink = history.Sink

// Agent is the embeddable monitoring agent.
type Agent = agent.Agent

// Runtime is an agent built from a config file with its reporter and sinks.
type Runtime = agent.Runtime

// Detector is the embeddable anomaly detector.
type Detector = anomaly.Detector

func NewAgent(o AgentOptions) *Agent { return agent.New(o) }

func LoadAgentConfig(path string) (AgentConfig, error)       { return cfg.LoadAgent(path) }
func LoadDetectorConfig(path string) (DetectorConfig, error) { return cfg.LoadDetector(path) }

// FromConfig builds a ready-to-start agent from c. Close the runtime when done.
func FromConfig(c AgentConfig) (*Runtime, error) { return agent.FromConfig(c) }

// CaptureBaseline digests files and stores trusted copies in backupDir.
func CaptureBaseline(files []string, backupDir string) (Baseline, error) {
	return integrity.Capture(files, backupDir)
}

// NewDetector builds a detector that reports nothing.
func NewDetector(c AnomalyConfig) *Detector { return anomaly.New(c, nil) }

// AgentHandler returns the agent HTTP API for mounting in another server.
func AgentHandler(a *Agent, basePath, token string) http.Handler {
	return iapi.NewRouter(a, basePath, token).Handler()
}

// DetectorHandler returns the detector HTTP API for mounting in another server.
func DetectorHandler(d *Detector, token string) http.Handler {
	return iapi.NewDetectorAPI(d, token).Handler()
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// ServeMetrics starts an HTTP server on addr exposing /metrics using the default registry.
// It runs the server in the caller goroutine.
func ServeMetrics(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv.ListenAndServe()
}
