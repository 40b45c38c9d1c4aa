package detector

import (
	"context"
	"strings"

	"github.com/loykin/sentinel/internal/process"
)

// Detector is a strategy that determines if a service is running.
// It must be safe for concurrent use.
type Detector interface {
	// Alive returns true if the service is detected as running.
	Alive(ctx context.Context) (bool, error)
	// Describe returns a human-readable description of the detection method.
	Describe() string
}

// PatternDetector reports a service alive when any live command line
// contains Pattern as a plain substring. An empty pattern never matches.
type PatternDetector struct {
	Pattern string
	Lister  process.Lister
}

func (d PatternDetector) Alive(ctx context.Context) (bool, error) {
	if d.Pattern == "" {
		return false, nil
	}
	lines, err := d.Lister.CommandLines(ctx)
	if err != nil {
		return false, err
	}
	return Match(lines, d.Pattern), nil
}

func (d PatternDetector) Describe() string { return "pattern:" + d.Pattern }

// Match reports whether any command line contains pattern.
func Match(cmdlines []string, pattern string) bool {
	if pattern == "" {
		return false
	}
	for _, l := range cmdlines {
		if strings.Contains(l, pattern) {
			return true
		}
	}
	return false
}

// Snapshot is a fixed process listing, taken once and shared by every
// detector evaluated in the same scan.
type Snapshot []string

func (s Snapshot) CommandLines(context.Context) ([]string, error) { return s, nil }
