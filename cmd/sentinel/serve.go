package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/loykin/sentinel/internal/agent"
	"github.com/loykin/sentinel/internal/anomaly"
	"github.com/loykin/sentinel/internal/config"
	"github.com/loykin/sentinel/internal/history/factory"
	"github.com/loykin/sentinel/internal/integrity"
	"github.com/loykin/sentinel/internal/logger"
	"github.com/loykin/sentinel/internal/reporter"
	"github.com/loykin/sentinel/internal/server"
	tlsx "github.com/loykin/sentinel/internal/tls"
)

const shutdownTimeout = 5 * time.Second

func runAgent(ctx context.Context, arg string) error {
	path := config.AgentConfigPath(arg)
	cfg, err := config.LoadAgent(path)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	closer, err := logger.Setup(cfg.Log)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer func() { _ = closer.Close() }()

	rt, err := agent.FromConfig(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			slog.Warn("close agent", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rt.Start(ctx); err != nil {
		return err
	}
	tlsConfig, err := tlsx.Setup(cfg.TLS)
	if err != nil {
		return fmt.Errorf("setup tls: %w", err)
	}
	handler := server.NewRouter(rt.Agent, cfg.BasePath, cfg.APIToken).Handler()
	srv := server.NewServer(cfg.Addr(), handler, tlsConfig)
	slog.Info("agent started", "config", path, "addr", cfg.Addr(), "base_path", cfg.BasePath, "tls", tlsConfig != nil,
		"interval", cfg.ScanInterval(), "files", len(cfg.CriticalFiles), "services", len(cfg.Services))

	<-ctx.Done()
	slog.Info("shutting down agent")
	return shutdown(srv)
}

func runDetector(ctx context.Context, cmd *cobra.Command, f *DetectorFlags) error {
	cfg, err := config.LoadDetector(f.ConfigPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	applyDetectorFlags(cmd, f, &cfg)

	closer, err := logger.Setup(cfg.Log)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer func() { _ = closer.Close() }()

	rep, cleanup, err := detectorReporter(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	det := anomaly.New(cfg.Anomaly, rep)
	srv := server.NewServer(cfg.Listen, server.NewDetectorAPI(det, cfg.APIToken).Handler(), nil)
	dc := det.Config()
	slog.Info("detector started", "addr", cfg.Listen, "window", dc.Window, "min_samples", dc.MinSamples,
		"sigma", dc.Sigma, "backend", cfg.BackendURL)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	slog.Info("shutting down detector")
	return shutdown(srv)
}

// applyDetectorFlags lets explicitly set flags win over file and env values.
func applyDetectorFlags(cmd *cobra.Command, f *DetectorFlags, cfg *config.DetectorConfig) {
	if cmd.Flags().Changed("listen") {
		cfg.Listen = f.Listen
	}
	if cmd.Flags().Changed("sigma") {
		cfg.Anomaly.Sigma = f.Sigma
	}
	if cmd.Flags().Changed("window") {
		cfg.Anomaly.Window = f.Window
	}
	if cmd.Flags().Changed("min-samples") {
		cfg.Anomaly.MinSamples = f.MinSamples
	}
}

func detectorReporter(cfg config.DetectorConfig) (*reporter.Reporter, func(), error) {
	rep := reporter.New(cfg.ReportTimeout)
	if cfg.BackendURL != "" {
		rep.Add("backend", reporter.NewBackendSink(cfg.BackendURL, cfg.APIToken))
	}
	sinks, err := factory.NewSinks(cfg.History)
	if err != nil {
		return nil, nil, err
	}
	for i, s := range sinks {
		rep.Add(fmt.Sprintf("history-%d", i), s)
	}
	return rep, func() {
		rep.Wait()
		if err := factory.CloseAll(sinks); err != nil {
			slog.Warn("close history sinks", "error", err)
		}
	}, nil
}

func runBaseline(out io.Writer, arg string) error {
	path := config.AgentConfigPath(arg)
	cfg, err := config.LoadAgent(path)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	b, err := integrity.Capture(cfg.CriticalFiles, cfg.BackupDir)
	if err != nil {
		return fmt.Errorf("capture baseline: %w", err)
	}
	missing := 0
	for _, digest := range b {
		if digest == "" {
			missing++
		}
	}
	_, err = fmt.Fprintf(out, "baseline captured: %d file(s), %d missing, stored in %s\n", len(b), missing, cfg.BackupDir)
	return err
}

func shutdown(srv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("shutdown server: %w", err)
	}
	return nil
}
