package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/loykin/sentinel/internal/anomaly"
	"github.com/loykin/sentinel/internal/logger"
	"github.com/loykin/sentinel/internal/reporter"
	"github.com/loykin/sentinel/internal/sampler"
	"github.com/loykin/sentinel/internal/service"
	tlsx "github.com/loykin/sentinel/internal/tls"
)

// Environment variables honored on top of the config file.
const (
	EnvAgentConfig = "AGENT_CONFIG"
	EnvBackendURL  = "BACKEND_URL"
	EnvMLURL       = "ML_URL"
	EnvAPIToken    = "API_TOKEN"
	EnvPort        = "PORT"
	EnvSigma       = "ANOMALY_SIGMA"
)

const (
	DefaultAgentConfigPath = "config.yaml"
	DefaultBackupDir       = "./backup"
	DefaultScanIntervalSec = 10
	DefaultHealthPort      = 5001
	DefaultDetectorListen  = ":5002"
	DefaultDetectorBackend = "http://backend:4000"
)

var ErrNoConfig = errors.New("config file not found")

// AgentConfig is the agent's file configuration.
type AgentConfig struct {
	CriticalFiles   []string           `mapstructure:"critical_files"`
	Services        []service.Spec     `mapstructure:"services"`
	BackupDir       string             `mapstructure:"backup_dir"`
	ScanIntervalSec int                `mapstructure:"scan_interval_sec"`
	Thresholds      sampler.Thresholds `mapstructure:"thresholds"`
	BackendURL      string             `mapstructure:"backend_url"`
	MLURL           string             `mapstructure:"ml_url"`
	APIToken        string             `mapstructure:"api_token"`
	HealthPort      int                `mapstructure:"health_port"`
	Listen          string             `mapstructure:"listen"`
	BasePath        string             `mapstructure:"base_path"`
	TLS             tlsx.Config        `mapstructure:"tls"`
	EnvFiles        []string           `mapstructure:"env_files"`
	Env             []string           `mapstructure:"env"`
	Log             logger.Config      `mapstructure:"log"`
	History         []string           `mapstructure:"history"`
	ReportTimeout   time.Duration      `mapstructure:"report_timeout"`
}

// ScanInterval returns the scan cadence.
func (c AgentConfig) ScanInterval() time.Duration {
	return time.Duration(c.ScanIntervalSec) * time.Second
}

// Addr is the agent API listen address. Listen wins over HealthPort.
func (c AgentConfig) Addr() string {
	if c.Listen != "" {
		return c.Listen
	}
	return ":" + strconv.Itoa(c.HealthPort)
}

// DetectorConfig configures the anomaly detector service.
type DetectorConfig struct {
	Listen        string         `mapstructure:"listen"`
	Anomaly       anomaly.Config `mapstructure:",squash"`
	BackendURL    string         `mapstructure:"backend_url"`
	APIToken      string         `mapstructure:"api_token"`
	History       []string       `mapstructure:"history"`
	Log           logger.Config  `mapstructure:"log"`
	ReportTimeout time.Duration  `mapstructure:"report_timeout"`
}

// AgentConfigPath resolves the agent config path: explicit argument, then
// $AGENT_CONFIG, then DefaultAgentConfigPath.
func AgentConfigPath(arg string) string {
	if arg != "" {
		return arg
	}
	if p := os.Getenv(EnvAgentConfig); p != "" {
		return p
	}
	return DefaultAgentConfigPath
}

// LoadAgent reads the agent config at path, applies defaults and
// environment overrides.
func LoadAgent(path string) (AgentConfig, error) {
	v := viper.New()
	v.SetDefault("backup_dir", DefaultBackupDir)
	v.SetDefault("scan_interval_sec", DefaultScanIntervalSec)
	v.SetDefault("thresholds.cpu", sampler.DefaultThreshold)
	v.SetDefault("thresholds.memory", sampler.DefaultThreshold)
	v.SetDefault("health_port", DefaultHealthPort)
	v.SetDefault("report_timeout", reporter.DefaultTimeout)
	_ = v.BindEnv("backend_url", EnvBackendURL)
	_ = v.BindEnv("ml_url", EnvMLURL)
	_ = v.BindEnv("health_port", EnvPort)

	if err := readFile(v, path); err != nil {
		return AgentConfig{}, err
	}
	var c AgentConfig
	if err := v.Unmarshal(&c); err != nil {
		return AgentConfig{}, fmt.Errorf("decode %s: %w", path, err)
	}
	// the file token wins; the environment only fills a gap
	if c.APIToken == "" {
		c.APIToken = os.Getenv(EnvAPIToken)
	}
	if err := c.Validate(); err != nil {
		return AgentConfig{}, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Validate rejects configurations the agent cannot run with.
func (c AgentConfig) Validate() error {
	if c.ScanIntervalSec <= 0 {
		return fmt.Errorf("scan_interval_sec must be > 0, got %d", c.ScanIntervalSec)
	}
	if c.BackupDir == "" {
		return errors.New("backup_dir must not be empty")
	}
	if c.Listen == "" && (c.HealthPort <= 0 || c.HealthPort > 65535) {
		return fmt.Errorf("health_port out of range: %d", c.HealthPort)
	}
	// unnamed services are kept; they are checked but never restarted
	seen := make(map[string]bool, len(c.Services))
	for i, s := range c.Services {
		if s.Name == "" {
			continue
		}
		if seen[s.Name] {
			return fmt.Errorf("services[%d]: duplicate name %q", i, s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}

// LoadDetector reads the detector config. An empty path yields defaults
// plus environment overrides.
func LoadDetector(path string) (DetectorConfig, error) {
	v := viper.New()
	v.SetDefault("listen", DefaultDetectorListen)
	v.SetDefault("window", anomaly.DefaultWindow)
	v.SetDefault("min_samples", anomaly.DefaultMinSamples)
	v.SetDefault("sigma", anomaly.DefaultSigma)
	v.SetDefault("backend_url", DefaultDetectorBackend)
	v.SetDefault("report_timeout", reporter.DefaultTimeout)
	_ = v.BindEnv("sigma", EnvSigma)
	_ = v.BindEnv("backend_url", EnvBackendURL)
	_ = v.BindEnv("api_token", EnvAPIToken)

	if path != "" {
		if err := readFile(v, path); err != nil {
			return DetectorConfig{}, err
		}
	}
	var c DetectorConfig
	if err := v.Unmarshal(&c); err != nil {
		return DetectorConfig{}, fmt.Errorf("decode detector config: %w", err)
	}
	return c, nil
}

func readFile(v *viper.Viper, path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNoConfig, path)
		}
		return err
	}
	v.SetConfigFile(path)
	v.SetConfigType(configType(path))
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}

func configType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	case ".json":
		return "json"
	default:
		return "toml"
	}
}

// LoadEnv merges env_files (dotenv syntax, in order) and then the inline
// env list into KEY=VALUE pairs. Later entries override earlier ones.
func LoadEnv(envFiles, env []string) ([]string, error) {
	m := make(map[string]string)
	var order []string
	set := func(k, v string) {
		if _, ok := m[k]; !ok {
			order = append(order, k)
		}
		m[k] = v
	}
	for _, p := range envFiles {
		pairs, err := godotenv.Read(filepath.Clean(p))
		if err != nil {
			return nil, fmt.Errorf("env file %s: %w", p, err)
		}
		keys := make([]string, 0, len(pairs))
		for k := range pairs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			set(k, pairs[k])
		}
	}
	for _, kv := range env {
		k, val, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid env entry %q (want KEY=VALUE)", kv)
		}
		set(k, val)
	}
	out := make([]string, 0, len(order))
	for _, k := range order {
		out = append(out, k+"="+m[k])
	}
	return out, nil
}
