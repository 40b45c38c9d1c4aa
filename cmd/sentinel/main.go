package main

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/loykin/sentinel/internal/metrics"
)

func main() {
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "metrics:", err)
	}
	if err := buildRoot().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildRoot assembles the command tree.
func buildRoot() *cobra.Command {
	apiFlags := &APIFlags{}
	detectorFlags := &DetectorFlags{}
	lockdownFlags := &LockdownFlags{}

	root := createRootCommand()
	cmd := &command{api: apiFlags, out: os.Stdout}
	root.PersistentPreRun = func(c *cobra.Command, _ []string) {
		cmd.out = c.OutOrStdout()
	}

	root.AddCommand(
		createAgentCommand(),
		createDetectorCommand(detectorFlags),
		createBaselineCommand(),
		withAPIFlags(createStatusCommand(cmd), apiFlags),
		withAPIFlags(createScanCommand(cmd), apiFlags),
		withAPIFlags(createHealCommand(cmd), apiFlags),
		withAPIFlags(createLockdownCommand(cmd, lockdownFlags), apiFlags),
		withAPIFlags(createServicesCommand(cmd), apiFlags),
	)
	return root
}

func createRootCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sentinel",
		Short: "Host integrity and self-healing agent",
		Long: `Sentinel watches critical files, supervises services and samples host
load. Tampered files are restored from a trusted baseline, dead services are
restarted and every incident is reported to a backend. The detector flags
outliers in the metric stream.

Examples:
  sentinel agent config.yaml          # Run the agent
  sentinel detector --sigma=3         # Run the anomaly detector
  sentinel status                     # Ask a running agent for its health
  sentinel heal nginx --api-url=http://host:5001`,
		SilenceUsage: true,
	}
}

func withAPIFlags(cmd *cobra.Command, f *APIFlags) *cobra.Command {
	addAPIFlags(cmd, f)
	return cmd
}

func createAgentCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "agent [config]",
		Short: "Run the monitoring agent",
		Long: `Run the agent: capture or load the file baseline, start the scan loop and
serve the agent API. The config path defaults to $AGENT_CONFIG, then config.yaml.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(cmd.Context(), firstArg(args))
		},
	}
}

func createDetectorCommand(f *DetectorFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detector",
		Short: "Run the anomaly detector",
		Long: `Run the streaming anomaly detector. Samples posted to /metrics are scored
against a rolling window per metric and anomalies are reported to the backend.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDetector(cmd.Context(), cmd, f)
		},
	}
	cmd.Flags().StringVar(&f.ConfigPath, "config", "", "path to detector config file (optional)")
	cmd.Flags().StringVar(&f.Listen, "listen", "", "listen address (default :5002)")
	cmd.Flags().Float64Var(&f.Sigma, "sigma", 0, "anomaly threshold in standard deviations (env ANOMALY_SIGMA)")
	cmd.Flags().IntVar(&f.Window, "window", 0, "rolling window size")
	cmd.Flags().IntVar(&f.MinSamples, "min-samples", 0, "samples required before scoring")
	return cmd
}

func createBaselineCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "baseline [config]",
		Short: "Re-capture the file integrity baseline",
		Long: `Digest every critical file, refresh the backup copies and overwrite the
stored baseline. Run this after legitimate configuration changes.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBaseline(cmd.OutOrStdout(), firstArg(args))
		},
	}
}

func createStatusCommand(c *command) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show agent health and lockdown state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Status(cmd.Context())
		},
	}
}

func createScanCommand(c *command) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Run one monitoring cycle now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Scan(cmd.Context())
		},
	}
}

func createHealCommand(c *command) *cobra.Command {
	return &cobra.Command{
		Use:   "heal <service>",
		Short: "Restart a monitored service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Heal(cmd.Context(), args[0])
		},
	}
}

func createLockdownCommand(c *command, f *LockdownFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lockdown",
		Short: "Toggle strict lockdown mode",
		Long: `Toggle strict lockdown mode. Without --strict lockdown is turned off.

Examples:
  sentinel lockdown --strict
  sentinel lockdown`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Lockdown(cmd.Context(), *f)
		},
	}
	cmd.Flags().BoolVar(&f.Strict, "strict", false, "enable strict mode")
	return cmd
}

func createServicesCommand(c *command) *cobra.Command {
	return &cobra.Command{
		Use:   "services",
		Short: "List monitored services and their status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Services(cmd.Context())
		},
	}
}

func firstArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}
