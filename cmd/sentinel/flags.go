package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
)

// Environment variables consulted by the client commands.
const (
	EnvURL   = "SENTINEL_URL"
	EnvToken = "SENTINEL_TOKEN"
)

// APIFlags holds the agent connection flags shared by client commands.
type APIFlags struct {
	APIUrl     string
	APITimeout time.Duration
	Token      string
	CACert     string
	Insecure   bool
}

// DetectorFlags overrides detector settings from the command line.
type DetectorFlags struct {
	ConfigPath string
	Listen     string
	Sigma      float64
	Window     int
	MinSamples int
}

// LockdownFlags holds flags for the lockdown command.
type LockdownFlags struct {
	Strict bool
}

func addAPIFlags(cmd *cobra.Command, f *APIFlags) {
	cmd.PersistentFlags().StringVar(&f.APIUrl, "api-url", os.Getenv(EnvURL), "agent URL including base path (env "+EnvURL+")")
	cmd.PersistentFlags().DurationVar(&f.APITimeout, "api-timeout", 30*time.Second, "request timeout")
	cmd.PersistentFlags().StringVar(&f.Token, "token", os.Getenv(EnvToken), "API token (env "+EnvToken+")")
	cmd.PersistentFlags().StringVar(&f.CACert, "ca-cert", "", "PEM CA bundle trusted for https agents")
	cmd.PersistentFlags().BoolVar(&f.Insecure, "insecure", false, "skip TLS verification for https agents")
}
