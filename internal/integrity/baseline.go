package integrity

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// BaselineFile is the name of the persisted mapping inside the backup directory.
const BaselineFile = "baseline.json"

// Baseline maps a tracked file path to its expected digest.
// An empty digest means the file was missing or unreadable at capture time.
type Baseline map[string]string

// Paths returns the tracked paths in sorted order.
func (b Baseline) Paths() []string {
	out := make([]string, 0, len(b))
	for p := range b {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// BackupPath returns where the trusted copy of path lives inside backupDir.
func BackupPath(backupDir, path string) string {
	return filepath.Join(backupDir, filepath.Base(path))
}

// Capture digests every existing file, copies it into backupDir and persists
// the resulting baseline. Missing or unreadable files are recorded with an
// empty digest and are not copied.
func Capture(files []string, backupDir string) (Baseline, error) {
	if err := os.MkdirAll(backupDir, 0o750); err != nil {
		return nil, fmt.Errorf("create backup dir %s: %w", backupDir, err)
	}
	b := make(Baseline, len(files))
	for _, p := range files {
		if _, err := os.Stat(p); err != nil {
			b[p] = ""
			continue
		}
		data, err := os.ReadFile(filepath.Clean(p))
		if err != nil {
			slog.Warn("Baseline capture skipped unreadable file", "file", p, "error", err)
			b[p] = ""
			continue
		}
		b[p] = Digest(data)
		if err := writeFileAtomic(BackupPath(backupDir, p), data, 0o600); err != nil {
			slog.Warn("Failed to write backup copy", "file", p, "error", err)
		}
	}
	if err := save(b, backupDir); err != nil {
		return nil, err
	}
	slog.Info("Baseline captured", "files", len(b), "backup_dir", backupDir)
	return b, nil
}

// Load returns the persisted baseline from backupDir, capturing a fresh one
// from files when none exists yet.
func Load(files []string, backupDir string) (Baseline, error) {
	data, err := os.ReadFile(filepath.Join(backupDir, BaselineFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Capture(files, backupDir)
		}
		return nil, fmt.Errorf("read baseline: %w", err)
	}
	b := Baseline{}
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decode baseline: %w", err)
	}
	return b, nil
}

func save(b Baseline, backupDir string) error {
	data, err := yaml.Marshal(map[string]string(b))
	if err != nil {
		return fmt.Errorf("encode baseline: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(backupDir, BaselineFile), data, 0o600); err != nil {
		return fmt.Errorf("write baseline: %w", err)
	}
	return nil
}

// writeFileAtomic writes data to a temp file next to path and renames it over path.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return nil
}
