package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/loykin/sentinel/internal/history"
)

// Sink writes history records to a SQLite database using the same tables as
// the backend: events, metrics and anomalies.
type Sink struct {
	db *sql.DB
}

// New creates a new SQLite history sink.
// DSN format:
//   - "sqlite:///path/to/file.db"
//   - "sqlite://:memory:"
//   - "/path/to/file.db" (without prefix)
//   - ":memory:" (in-memory database)
func New(dsn string) (*Sink, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("empty SQLite DSN")
	}

	// Handle sqlite:// prefix
	if strings.HasPrefix(strings.ToLower(dsn), "sqlite://") {
		dsn = dsn[len("sqlite://"):]
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// a single connection keeps :memory: databases shared between statements
	db.SetMaxOpenConns(1)

	sink := &Sink{db: db}
	if err := sink.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return sink, nil
}

func (s *Sink) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS events(
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			severity TEXT NOT NULL,
			source TEXT NOT NULL,
			summary TEXT NOT NULL,
			details TEXT NOT NULL,
			timestamp TIMESTAMP NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS metrics(
			id TEXT PRIMARY KEY,
			cpu REAL NOT NULL,
			memory REAL NOT NULL,
			failed_logins INTEGER NOT NULL,
			timestamp TIMESTAMP NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS anomalies(
			id TEXT PRIMARY KEY,
			score REAL NOT NULL,
			status TEXT NOT NULL,
			metric TEXT NOT NULL,
			details TEXT NOT NULL,
			timestamp TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp);`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sink) Send(ctx context.Context, r history.Record) error {
	switch r.Kind {
	case history.KindEvent:
		e := r.Event
		details, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("encode event details: %w", err)
		}
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO events(id, type, severity, source, summary, details, timestamp)
			VALUES(?, ?, ?, ?, ?, ?, ?);`,
			e.ID, e.Type, string(e.Severity), e.Source, e.Summary, string(details), e.Timestamp.UTC())
		return err
	case history.KindMetric:
		m := r.Sample
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO metrics(id, cpu, memory, failed_logins, timestamp)
			VALUES(?, ?, ?, ?, ?);`,
			uuid.NewString(), m.CPU, m.Memory, m.FailedLogins, m.Timestamp.UTC())
		return err
	case history.KindAnomaly:
		a := r.Anomaly
		details, err := json.Marshal(a.Details)
		if err != nil {
			return fmt.Errorf("encode anomaly details: %w", err)
		}
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO anomalies(id, score, status, metric, details, timestamp)
			VALUES(?, ?, ?, ?, ?, ?);`,
			a.ID, a.Score, string(a.Status), a.Metric, string(details), a.Timestamp.UTC())
		return err
	default:
		return fmt.Errorf("unknown record kind %q", r.Kind)
	}
}

// Count returns the number of rows in one of the history tables.
func (s *Sink) Count(ctx context.Context, table string) (int, error) {
	switch table {
	case "events", "metrics", "anomalies":
	default:
		return 0, fmt.Errorf("unknown table %q", table)
	}
	var n int
	// #nosec G202 -- table is restricted to the fixed set above
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n)
	return n, err
}

func (s *Sink) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
