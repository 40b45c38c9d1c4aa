package integrity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/loykin/sentinel/internal/event"
	"github.com/loykin/sentinel/internal/metrics"
)

// ErrNoBackup is returned by Restore when no trusted copy exists.
var ErrNoBackup = errors.New("no backup copy")

// Emitter receives events produced by the monitor.
type Emitter interface {
	Emit(ctx context.Context, e event.Event)
}

// Monitor compares tracked files against a baseline and restores drifted ones.
type Monitor struct {
	baseline  Baseline
	backupDir string
	emit      Emitter
}

func NewMonitor(b Baseline, backupDir string, emit Emitter) *Monitor {
	return &Monitor{baseline: b, backupDir: backupDir, emit: emit}
}

// CheckAll restores every tracked file whose digest no longer matches the
// baseline and returns the restored paths. A missing file counts as drift.
func (m *Monitor) CheckAll(ctx context.Context) []string {
	var restored []string
	for _, path := range m.baseline.Paths() {
		expected := m.baseline[path]
		if expected == "" {
			continue
		}
		current := FileDigest(path)
		if current == expected {
			continue
		}
		if err := Restore(path, m.backupDir); err != nil {
			if errors.Is(err, ErrNoBackup) {
				slog.Warn("Integrity mismatch without backup", "file", path)
			} else {
				slog.Error("Failed to restore file", "file", path, "error", err)
			}
			continue
		}
		slog.Info("Restored tampered file", "file", path)
		metrics.IncRestore(path)
		restored = append(restored, path)
		if m.emit != nil {
			m.emit.Emit(ctx, event.New(event.TypeConfigRestored, event.SeverityHigh, event.SourceAgent,
				"Restored "+path, map[string]any{"file": path}))
		}
	}
	return restored
}

// Restore overwrites path with its backup copy from backupDir.
func Restore(path, backupDir string) error {
	src := BackupPath(backupDir, path)
	info, err := os.Stat(src)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNoBackup
		}
		return fmt.Errorf("stat backup: %w", err)
	}
	data, err := os.ReadFile(filepath.Clean(src))
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}
	perm := info.Mode().Perm()
	if cur, err := os.Stat(path); err == nil {
		perm = cur.Mode().Perm()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}
	return writeFileAtomic(path, data, perm)
}
