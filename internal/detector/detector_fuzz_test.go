package detector

import (
	"context"
	"strings"
	"testing"
)

// FuzzMatch ensures Match agrees with a plain substring search and never
// reports a match for an empty pattern.
func FuzzMatch(f *testing.F) {
	f.Add("nginx: master process /usr/sbin/nginx", "nginx")
	f.Add("", "")
	f.Add("/usr/bin/python3 app.py", "app.py ")

	f.Fuzz(func(t *testing.T, line, pattern string) {
		got := Match([]string{line}, pattern)
		want := pattern != "" && strings.Contains(line, pattern)
		if got != want {
			t.Fatalf("Match(%q, %q) = %v, want %v", line, pattern, got, want)
		}
		alive, err := PatternDetector{Pattern: pattern, Lister: Snapshot{line}}.Alive(context.Background())
		if err != nil || alive != want {
			t.Fatalf("Alive mismatch: alive=%v err=%v want=%v", alive, err, want)
		}
	})
}
