package reporter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/loykin/sentinel/internal/history"
)

// HTTPSink POSTs records as JSON to a base URL. Only kinds with a route are
// sent; others are accepted and ignored.
type HTTPSink struct {
	baseURL string
	token   string
	routes  map[history.Kind]string
	client  *http.Client
}

// NewBackendSink sends events, samples and anomaly records to the backend's
// /events, /metrics and /anomalies endpoints.
func NewBackendSink(baseURL, token string) *HTTPSink {
	return newHTTPSink(baseURL, token, map[history.Kind]string{
		history.KindEvent:   "/events",
		history.KindMetric:  "/metrics",
		history.KindAnomaly: "/anomalies",
	})
}

// NewMLSink forwards metric samples to the detector's /metrics endpoint.
func NewMLSink(baseURL, token string) *HTTPSink {
	return newHTTPSink(baseURL, token, map[history.Kind]string{
		history.KindMetric: "/metrics",
	})
}

func newHTTPSink(baseURL, token string, routes map[history.Kind]string) *HTTPSink {
	return &HTTPSink{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		routes:  routes,
		// the reporter bounds each call through the request context
		client: &http.Client{},
	}
}

func (s *HTTPSink) Send(ctx context.Context, r history.Record) error {
	path, ok := s.routes[r.Kind]
	if !ok {
		return nil
	}
	var body any
	switch r.Kind {
	case history.KindEvent:
		body = r.Event
	case history.KindMetric:
		body = r.Sample
	case history.KindAnomaly:
		body = r.Anomaly
	}
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", r.Kind, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("POST %s: status %d", path, resp.StatusCode)
	}
	return nil
}
