//go:build !windows

package process

import (
	"os/exec"
	"syscall"
)

// configureSysProcAttr starts the command in its own session so services it
// spawns are detached from the agent's terminal and survive an agent restart.
// On context cancellation the whole process group is killed.
func configureSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
