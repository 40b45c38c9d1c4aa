package process

import (
	"context"
	"strings"

	gopsproc "github.com/shirou/gopsutil/v4/process"
)

// Lister enumerates the command lines of live processes.
type Lister interface {
	CommandLines(ctx context.Context) ([]string, error)
}

// HostLister reads the live process table through gopsutil.
type HostLister struct{}

// CommandLines returns one space-joined command line per live process.
// Processes that exit or deny access while being read are skipped.
func (HostLister) CommandLines(ctx context.Context) ([]string, error) {
	procs, err := gopsproc.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(procs))
	for _, p := range procs {
		args, err := p.CmdlineSliceWithContext(ctx)
		if err != nil || len(args) == 0 {
			continue
		}
		out = append(out, strings.Join(args, " "))
	}
	return out, nil
}
