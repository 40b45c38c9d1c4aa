package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/clickhouse"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/loykin/sentinel/internal/event"
	"github.com/loykin/sentinel/internal/history"
)

// setupClickHouseContainer starts a ClickHouse container for testing
func setupClickHouseContainer(ctx context.Context, t *testing.T) (testcontainers.Container, string) {
	t.Helper()

	clickHouseContainer, err := clickhouse.Run(ctx,
		"clickhouse/clickhouse-server:24.3.2.23",
		clickhouse.WithUsername("default"),
		clickhouse.WithPassword(""),
		clickhouse.WithDatabase("default"),
		testcontainers.WithWaitStrategy(
			wait.ForHTTP("/ping").
				WithPort("8123/tcp").
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start ClickHouse container: %v", err)
	}

	host, err := clickHouseContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := clickHouseContainer.MappedPort(ctx, "9000")
	if err != nil {
		t.Fatalf("Failed to get mapped port: %v", err)
	}

	return clickHouseContainer, host + ":" + port.Port()
}

func TestClickHouseSink_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	clickHouseContainer, addr := setupClickHouseContainer(ctx, t)
	defer func() {
		if err := clickHouseContainer.Terminate(ctx); err != nil {
			t.Errorf("Failed to terminate ClickHouse container: %v", err)
		}
	}()

	sink, err := New(addr, "sentinel_test")
	if err != nil {
		t.Fatalf("Failed to create sink: %v", err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			t.Errorf("Failed to close sink: %v", err)
		}
	}()

	e := event.New(event.TypeCPUThreshold, event.SeverityHigh, event.SourceAgent,
		"CPU above threshold", map[string]any{"cpu": 0.97})
	if err := sink.Send(ctx, history.EventRecord(e)); err != nil {
		t.Fatalf("Failed to send event: %v", err)
	}

	for i := 0; i < 2; i++ {
		s := event.MetricSample{CPU: 0.1 * float64(i), Memory: 0.3, Timestamp: time.Now().UTC()}
		if err := sink.Send(ctx, history.SampleRecord(s)); err != nil {
			t.Fatalf("Failed to send sample: %v", err)
		}
	}

	var count uint64
	if err := sink.conn.QueryRow(ctx, "SELECT COUNT(*) FROM sentinel_test_events WHERE id = ?", e.ID).Scan(&count); err != nil {
		t.Fatalf("Failed to query events: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 event, got %d", count)
	}

	if err := sink.conn.QueryRow(ctx, "SELECT COUNT(*) FROM sentinel_test_metrics").Scan(&count); err != nil {
		t.Fatalf("Failed to query metrics: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 samples, got %d", count)
	}
}

func TestClickHouseSink_ConnectionError(t *testing.T) {
	_, err := New("invalid-host:9000", "test_table")
	if err == nil {
		t.Error("Expected error with invalid connection, got nil")
	}
}

func TestClickHouseSink_Send_ContextCancellation(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	clickHouseContainer, addr := setupClickHouseContainer(ctx, t)
	defer func() {
		if err := clickHouseContainer.Terminate(ctx); err != nil {
			t.Errorf("Failed to terminate ClickHouse container: %v", err)
		}
	}()

	sink, err := New(addr, "")
	if err != nil {
		t.Fatalf("Failed to create sink: %v", err)
	}
	defer func() { _ = sink.Close() }()

	cancelCtx, cancel := context.WithCancel(ctx)
	cancel()

	e := event.New(event.TypeLockdown, event.SeverityCritical, event.SourceAgent, "Lockdown updated", nil)
	if err := sink.Send(cancelCtx, history.EventRecord(e)); err != nil {
		t.Logf("Expected error with cancelled context: %v", err)
	}
}
