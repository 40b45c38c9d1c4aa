package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// DefaultRunTimeout bounds a single restart command.
const DefaultRunTimeout = 60 * time.Second

// Runner executes shell command lines and reports their exit code.
type Runner interface {
	Run(ctx context.Context, command string) (int, error)
}

// ShellRunner runs commands through the platform shell.
// Env entries ("KEY=VALUE") override the agent's own environment.
type ShellRunner struct {
	Env     []string
	Timeout time.Duration
}

// Run executes command synchronously. A non-zero exit is reported through the
// exit code with a nil error; err is set only when the command could not be
// started or was killed by the timeout.
func (r ShellRunner) Run(ctx context.Context, command string) (int, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return -1, errors.New("empty command")
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultRunTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := shellCommand(ctx, command)
	cmd.Env = MergeEnv(os.Environ(), r.Env)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	configureSysProcAttr(cmd)

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	if ctx.Err() != nil {
		return -1, fmt.Errorf("command timed out after %s: %w", timeout, ctx.Err())
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode(), nil
	}
	return -1, err
}

// MergeEnv applies overrides ("KEY=VALUE") on top of base and returns the
// composed list. Later overrides win.
func MergeEnv(base, overrides []string) []string {
	if len(overrides) == 0 {
		return base
	}
	idx := make(map[string]int, len(base))
	out := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		k, _, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		if i, seen := idx[k]; seen {
			out[i] = kv
			continue
		}
		idx[k] = len(out)
		out = append(out, kv)
	}
	for _, kv := range overrides {
		k, _, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		if i, seen := idx[k]; seen {
			out[i] = kv
			continue
		}
		idx[k] = len(out)
		out = append(out, kv)
	}
	return out
}
