package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	fileRestores = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Subsystem: "integrity",
			Name:      "restores_total",
			Help:      "Number of tracked files restored from backup.",
		}, []string{"file"},
	)
	serviceRestarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Subsystem: "service",
			Name:      "restarts_total",
			Help:      "Number of restart commands run for down services, by result.",
		}, []string{"name", "result"},
	)
	serviceUp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "sentinel",
			Subsystem: "service",
			Name:      "up",
			Help:      "Whether the service was detected running in the last scan (1 = up).",
		}, []string{"name"},
	)
	cycleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sentinel",
			Subsystem: "scan",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a full services/files/metrics check cycle.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"trigger"},
	)
	cycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Subsystem: "scan",
			Name:      "cycles_total",
			Help:      "Number of completed check cycles.",
		}, []string{"trigger"},
	)
	hostUsage = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "sentinel",
			Subsystem: "host",
			Name:      "usage_ratio",
			Help:      "Last sampled host utilization fraction.",
		}, []string{"resource"},
	)
	eventsEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Subsystem: "report",
			Name:      "events_total",
			Help:      "Number of events handed to the reporter.",
		}, []string{"type", "severity"},
	)
	deliveryFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Subsystem: "report",
			Name:      "delivery_failures_total",
			Help:      "Number of dropped deliveries per sink.",
		}, []string{"sink"},
	)
	anomalies = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Subsystem: "anomaly",
			Name:      "detected_total",
			Help:      "Number of anomalous observations per metric.",
		}, []string{"metric"},
	)
	lockdown = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "sentinel",
			Subsystem: "agent",
			Name:      "lockdown",
			Help:      "Current lockdown flag (1 = strict).",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{fileRestores, serviceRestarts, serviceUp, cycleDuration, cycles, hostUsage, eventsEmitted, deliveryFailures, anomalies, lockdown}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// If already registered, ignore (allows double Register with default registry)
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func IncRestore(file string) {
	if regOK.Load() {
		fileRestores.WithLabelValues(file).Inc()
	}
}

func IncServiceRestart(name string, ok bool) {
	if regOK.Load() {
		result := "success"
		if !ok {
			result = "failed"
		}
		serviceRestarts.WithLabelValues(name, result).Inc()
	}
}

func SetServiceUp(name string, up bool) {
	if regOK.Load() {
		var v float64
		if up {
			v = 1
		}
		serviceUp.WithLabelValues(name).Set(v)
	}
}

func ObserveCycle(trigger string, seconds float64) {
	if regOK.Load() {
		cycleDuration.WithLabelValues(trigger).Observe(seconds)
		cycles.WithLabelValues(trigger).Inc()
	}
}

func SetHostUsage(cpu, memory float64) {
	if regOK.Load() {
		hostUsage.WithLabelValues("cpu").Set(cpu)
		hostUsage.WithLabelValues("memory").Set(memory)
	}
}

func IncEvent(typ, severity string) {
	if regOK.Load() {
		eventsEmitted.WithLabelValues(typ, severity).Inc()
	}
}

func IncDeliveryFailure(sink string) {
	if regOK.Load() {
		deliveryFailures.WithLabelValues(sink).Inc()
	}
}

func IncAnomaly(metric string) {
	if regOK.Load() {
		anomalies.WithLabelValues(metric).Inc()
	}
}

func SetLockdown(strict bool) {
	if regOK.Load() {
		var v float64
		if strict {
			v = 1
		}
		lockdown.Set(v)
	}
}
