//go:build windows

package process

import (
	"context"
	"os/exec"
)

// shellCommand wraps a restart command line in the platform shell.
func shellCommand(ctx context.Context, script string) *exec.Cmd {
	// #nosec G204
	return exec.CommandContext(ctx, "cmd", "/c", script)
}
