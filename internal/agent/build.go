package agent

import (
	"fmt"
	"log/slog"

	"github.com/loykin/sentinel/internal/config"
	"github.com/loykin/sentinel/internal/history"
	"github.com/loykin/sentinel/internal/history/factory"
	"github.com/loykin/sentinel/internal/integrity"
	"github.com/loykin/sentinel/internal/process"
	"github.com/loykin/sentinel/internal/reporter"
)

// Runtime is an agent built from configuration together with the resources
// it owns.
type Runtime struct {
	*Agent
	Reporter *reporter.Reporter
	sinks    []history.Sink
}

// FromConfig loads (or captures) the baseline, opens the configured sinks
// and wires an Agent. Close releases what it opened.
func FromConfig(c config.AgentConfig) (*Runtime, error) {
	env, err := config.LoadEnv(c.EnvFiles, c.Env)
	if err != nil {
		return nil, err
	}
	baseline, err := integrity.Load(c.CriticalFiles, c.BackupDir)
	if err != nil {
		return nil, fmt.Errorf("load baseline: %w", err)
	}

	rep := reporter.New(c.ReportTimeout)
	if c.BackendURL != "" {
		rep.Add("backend", reporter.NewBackendSink(c.BackendURL, c.APIToken))
	}
	if c.MLURL != "" {
		rep.Add("ml", reporter.NewMLSink(c.MLURL, c.APIToken))
	}
	sinks, err := factory.NewSinks(c.History)
	if err != nil {
		return nil, err
	}
	for i, s := range sinks {
		rep.Add(fmt.Sprintf("history-%d", i), s)
	}
	slog.Info("reporter configured", "sinks", rep.Sinks())

	a := New(Options{
		Baseline:   baseline,
		BackupDir:  c.BackupDir,
		Services:   c.Services,
		Thresholds: c.Thresholds,
		Interval:   c.ScanInterval(),
		Runner:     process.ShellRunner{Env: env},
		Reporter:   rep,
	})
	return &Runtime{Agent: a, Reporter: rep, sinks: sinks}, nil
}

// Close stops the scheduler, drains in-flight deliveries and closes sinks.
func (r *Runtime) Close() error {
	r.Stop()
	r.Reporter.Wait()
	return factory.CloseAll(r.sinks)
}
