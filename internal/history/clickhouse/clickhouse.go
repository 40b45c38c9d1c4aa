package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/google/uuid"

	"github.com/loykin/sentinel/internal/history"
)

// DefaultTable is the table prefix used when none is configured.
const DefaultTable = "sentinel"

// Sink sends history records to ClickHouse using the official client.
// Records land in <table>_events, <table>_metrics and <table>_anomalies.
type Sink struct {
	conn  driver.Conn
	table string
}

func New(addr, table string) (*Sink, error) {
	if table == "" {
		table = DefaultTable
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: "default",
			Username: "default",
			Password: "",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	s := &Sink{conn: conn, table: table}
	if err := s.ensureSchema(context.Background()); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *Sink) ensureSchema(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s_events (
			id String,
			type LowCardinality(String),
			severity LowCardinality(String),
			source LowCardinality(String),
			summary String,
			details String,
			timestamp DateTime64(3)
		) ENGINE = MergeTree() ORDER BY (timestamp, id)`, s.table),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s_metrics (
			id String,
			cpu Float64,
			memory Float64,
			failed_logins Int32,
			timestamp DateTime64(3)
		) ENGINE = MergeTree() ORDER BY (timestamp, id)`, s.table),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s_anomalies (
			id String,
			score Float64,
			status LowCardinality(String),
			metric String,
			details String,
			timestamp DateTime64(3)
		) ENGINE = MergeTree() ORDER BY (timestamp, id)`, s.table),
	}
	for _, q := range stmts {
		if err := s.conn.Exec(ctx, q); err != nil {
			return fmt.Errorf("failed to create ClickHouse table: %w", err)
		}
	}
	return nil
}

func (s *Sink) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func (s *Sink) Send(ctx context.Context, r history.Record) error {
	var err error
	switch r.Kind {
	case history.KindEvent:
		e := r.Event
		details, merr := json.Marshal(e.Details)
		if merr != nil {
			return fmt.Errorf("encode event details: %w", merr)
		}
		err = s.conn.Exec(ctx,
			fmt.Sprintf(`INSERT INTO %s_events (id, type, severity, source, summary, details, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?)`, s.table),
			e.ID, e.Type, string(e.Severity), e.Source, e.Summary, string(details), e.Timestamp.UTC())
	case history.KindMetric:
		m := r.Sample
		err = s.conn.Exec(ctx,
			fmt.Sprintf(`INSERT INTO %s_metrics (id, cpu, memory, failed_logins, timestamp) VALUES (?, ?, ?, ?, ?)`, s.table),
			uuid.NewString(), m.CPU, m.Memory, int32(m.FailedLogins), m.Timestamp.UTC())
	case history.KindAnomaly:
		a := r.Anomaly
		details, merr := json.Marshal(a.Details)
		if merr != nil {
			return fmt.Errorf("encode anomaly details: %w", merr)
		}
		err = s.conn.Exec(ctx,
			fmt.Sprintf(`INSERT INTO %s_anomalies (id, score, status, metric, details, timestamp) VALUES (?, ?, ?, ?, ?, ?)`, s.table),
			a.ID, a.Score, string(a.Status), a.Metric, string(details), a.Timestamp.UTC())
	default:
		return fmt.Errorf("unknown record kind %q", r.Kind)
	}
	if err != nil {
		return fmt.Errorf("failed to insert %s into ClickHouse: %w", r.Kind, err)
	}
	return nil
}
