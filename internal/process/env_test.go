package process

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeEnv(t *testing.T) {
	base := []string{"A=1", "B=2", "bogus", "=x", "A=3"}

	assert.Equal(t, base, MergeEnv(base, nil))

	got := MergeEnv(base, []string{"B=20", "C=30", "noequals", "C=31"})
	assert.Equal(t, []string{"A=3", "B=20", "C=31"}, got)
}

func TestHostListerIncludesSelf(t *testing.T) {
	if testing.Short() {
		t.Skip("reads the live process table")
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	lines, err := HostLister{}.CommandLines(ctx)
	if err != nil {
		t.Skipf("process table unavailable: %v", err)
	}
	assert.NotEmpty(t, lines)
}
