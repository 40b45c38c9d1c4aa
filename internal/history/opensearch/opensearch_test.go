package opensearch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/loykin/sentinel/internal/event"
	"github.com/loykin/sentinel/internal/history"
)

func TestOpenSearchSink_Send(t *testing.T) {
	var receivedBody []byte
	var receivedURL string
	var receivedMethod string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedMethod = r.Method
		receivedURL = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		receivedBody = body

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"_id":"test","_index":"test-index","result":"created"}`))
	}))
	defer server.Close()

	sink := New(server.URL, "test-index")

	e := event.New(event.TypeServiceFailed, event.SeverityHigh, event.SourceAgent,
		"Failed to recover sshd", map[string]any{"service": "sshd"})
	if err := sink.Send(context.Background(), history.EventRecord(e)); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if receivedMethod != http.MethodPost {
		t.Errorf("Expected POST method, got: %s", receivedMethod)
	}
	if receivedURL != "/test-index/_doc" {
		t.Errorf("Expected URL path /test-index/_doc, got: %s", receivedURL)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(receivedBody, &doc); err != nil {
		t.Fatalf("Failed to parse received JSON: %v", err)
	}
	if doc["kind"] != string(history.KindEvent) {
		t.Errorf("Expected kind %s, got: %v", history.KindEvent, doc["kind"])
	}

	ev, ok := doc["event"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected event in document, got: %v", doc)
	}
	if ev["type"] != event.TypeServiceFailed {
		t.Errorf("Expected event type %s, got: %v", event.TypeServiceFailed, ev["type"])
	}
	if ev["severity"] != string(event.SeverityHigh) {
		t.Errorf("Expected severity high, got: %v", ev["severity"])
	}
	if _, ok := doc["sample"]; ok {
		t.Errorf("sample should be omitted for event records")
	}
}

func TestOpenSearchSink_SendError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad request"}`))
	}))
	defer server.Close()

	sink := New(server.URL, "test-index")

	s := event.MetricSample{CPU: 0.2, Memory: 0.4, Timestamp: time.Now().UTC()}
	err := sink.Send(context.Background(), history.SampleRecord(s))
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if !strings.Contains(err.Error(), "opensearch sink status 400") {
		t.Errorf("Expected status error message, got: %v", err)
	}
}

func TestOpenSearchSink_URLConstruction(t *testing.T) {
	tests := []struct {
		name         string
		baseURL      string
		index        string
		expectedBase string
		expectedPath string
	}{
		{"Basic URL", "http://localhost:9200", "logs", "http://localhost:9200", "/logs/_doc"},
		{"URL with trailing slash", "http://localhost:9200/", "events", "http://localhost:9200", "/events/_doc"},
		{"Default index", "https://opensearch.example.com", "", "https://opensearch.example.com", "/" + DefaultIndex + "/_doc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var receivedURL string

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				receivedURL = r.URL.String()
				w.WriteHeader(http.StatusCreated)
			}))
			defer server.Close()

			sink := New(tt.baseURL, tt.index)
			if sink.baseURL != tt.expectedBase {
				t.Errorf("Expected base URL %s, got: %s", tt.expectedBase, sink.baseURL)
			}

			sink.baseURL = server.URL
			a := event.AnomalyRecord{ID: "x", Status: event.StatusAnomaly, Metric: "cpu", Timestamp: time.Now()}
			_ = sink.Send(context.Background(), history.AnomalyRecord(a))

			if receivedURL != tt.expectedPath {
				t.Errorf("Expected URL path %s, got: %s", tt.expectedPath, receivedURL)
			}
		})
	}
}
