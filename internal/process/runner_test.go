//go:build !windows

package process

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShellRunnerExitCodes(t *testing.T) {
	r := ShellRunner{}
	code, err := r.Run(context.Background(), "true")
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	code, err = r.Run(context.Background(), "exit 3")
	require.NoError(t, err)
	assert.Equal(t, 3, code)
}

func TestShellRunnerEmptyCommand(t *testing.T) {
	code, err := ShellRunner{}.Run(context.Background(), "   ")
	require.Error(t, err)
	assert.Equal(t, -1, code)
}

func TestShellRunnerTimeout(t *testing.T) {
	r := ShellRunner{Timeout: 100 * time.Millisecond}
	start := time.Now()
	code, err := r.Run(context.Background(), "sleep 5")
	require.Error(t, err)
	assert.Equal(t, -1, code)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestShellRunnerEnvOverrides(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out")
	t.Setenv("SENTINEL_RUNNER_BASE", "base")
	r := ShellRunner{Env: []string{"SENTINEL_RUNNER_EXTRA=extra", "SENTINEL_RUNNER_BASE=override"}}

	code, err := r.Run(context.Background(), `printf "%s %s" "$SENTINEL_RUNNER_BASE" "$SENTINEL_RUNNER_EXTRA" > `+out)
	require.NoError(t, err)
	require.Equal(t, 0, code)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "override extra", string(data))
}
