package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegisterIdempotentAndCountersWork(t *testing.T) {
	regOK.Store(false)
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("first register: %v", err)
	}
	// idempotent: calling again should be no-op
	if err := Register(reg); err != nil {
		t.Fatalf("second register: %v", err)
	}

	IncRestore("/etc/hosts")
	IncServiceRestart("nginx", true)
	IncServiceRestart("nginx", false)
	SetServiceUp("nginx", true)
	ObserveCycle("schedule", 0.25)
	SetHostUsage(0.5, 0.25)
	IncEvent("config_restored", "high")
	IncDeliveryFailure("backend")
	IncAnomaly("cpu")
	SetLockdown(true)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	wantNames := map[string]bool{
		"sentinel_integrity_restores_total":       false,
		"sentinel_service_restarts_total":         false,
		"sentinel_service_up":                     false,
		"sentinel_scan_cycle_duration_seconds":    false,
		"sentinel_scan_cycles_total":              false,
		"sentinel_host_usage_ratio":               false,
		"sentinel_report_events_total":            false,
		"sentinel_report_delivery_failures_total": false,
		"sentinel_anomaly_detected_total":         false,
		"sentinel_agent_lockdown":                 false,
	}
	for _, mf := range mfs {
		n := mf.GetName()
		if _, ok := wantNames[n]; ok {
			wantNames[n] = true
			if len(mf.GetMetric()) == 0 {
				t.Fatalf("metric %s has no samples", n)
			}
		}
		if n == "sentinel_host_usage_ratio" {
			resources := map[string]bool{}
			for _, m := range mf.GetMetric() {
				for _, lp := range m.GetLabel() {
					if lp.GetName() == "resource" {
						resources[lp.GetValue()] = true
					}
				}
			}
			if !resources["cpu"] || !resources["memory"] {
				t.Fatalf("host usage resources: %v", resources)
			}
		}
	}
	for n, ok := range wantNames {
		if !ok {
			t.Fatalf("expected to find metric %s", n)
		}
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	// Reset regOK gate to allow registration in this test regardless of previous tests.
	regOK.Store(false)
	if err := Register(prometheus.DefaultRegisterer); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	IncRestore("/etc/passwd")

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != 200 {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	b, _ := io.ReadAll(resp.Body)
	s := string(b)
	if !strings.Contains(s, "sentinel_integrity_restores_total") {
		t.Fatalf("metrics output missing restores_total: %s", s[:min(200, len(s))])
	}
}

func TestConcurrentIncrements(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatal(err)
	}
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			IncEvent("anomaly", "high")
			IncAnomaly("memory")
			SetHostUsage(0.1, 0.2)
		}()
	}
	wg.Wait()
	if _, err := reg.Gather(); err != nil {
		t.Fatalf("gather: %v", err)
	}
}

func TestMetricsBeforeRegister(t *testing.T) {
	originalState := regOK.Load()
	regOK.Store(false)
	defer regOK.Store(originalState)

	// These should be no-ops and not panic when called before Register
	IncRestore("x")
	IncServiceRestart("x", true)
	SetServiceUp("x", false)
	ObserveCycle("manual", 1)
	SetHostUsage(1, 1)
	IncEvent("lockdown", "critical")
	IncDeliveryFailure("ml")
	IncAnomaly("cpu")
	SetLockdown(false)
}

func TestRegisterError(t *testing.T) {
	errorRegisterer := &errorRegisterer{shouldError: true}

	originalState := regOK.Load()
	regOK.Store(false)
	defer regOK.Store(originalState)

	err := Register(errorRegisterer)
	if err == nil {
		t.Fatal("Register should return error from failing registerer")
	}
	if err.Error() != "test registration error" {
		t.Fatalf("unexpected error: %v", err)
	}
}

// Custom registerer for testing error handling
type errorRegisterer struct {
	shouldError bool
}

func (e *errorRegisterer) Register(prometheus.Collector) error {
	if e.shouldError {
		return errors.New("test registration error")
	}
	return nil
}

func (e *errorRegisterer) MustRegister(...prometheus.Collector) {}
func (e *errorRegisterer) Unregister(prometheus.Collector) bool { return false }
