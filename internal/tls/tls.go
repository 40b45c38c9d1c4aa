package tls

import (
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

const (
	certFileName = "tls.crt"
	keyFileName  = "tls.key"
)

// Config enables HTTPS on the agent API. Either CertFile/KeyFile or Dir must
// be set; with Dir and AutoGenerate a self-signed pair is created on first use.
type Config struct {
	Enabled      bool     `mapstructure:"enabled"`
	CertFile     string   `mapstructure:"cert_file"`
	KeyFile      string   `mapstructure:"key_file"`
	Dir          string   `mapstructure:"dir"`
	AutoGenerate bool     `mapstructure:"auto_generate"`
	MinVersion   string   `mapstructure:"min_version"`
	Hosts        []string `mapstructure:"hosts"`
	ValidDays    int      `mapstructure:"valid_days"`
}

// ErrNoCertificate is returned when TLS is enabled without a usable key pair source.
var ErrNoCertificate = errors.New("tls enabled but no certificate configured")

// parseVersion maps a config string to a crypto/tls version constant.
func parseVersion(v string) (uint16, error) {
	switch v {
	case "", "1.2", "TLS1.2", "tls1.2":
		return tls.VersionTLS12, nil
	case "1.3", "TLS1.3", "tls1.3":
		return tls.VersionTLS13, nil
	default:
		return 0, fmt.Errorf("unsupported tls min_version %q", v)
	}
}

// paths resolves where the key pair lives.
func (c Config) paths() (cert, key string, err error) {
	switch {
	case c.CertFile != "" && c.KeyFile != "":
		return c.CertFile, c.KeyFile, nil
	case c.Dir != "":
		return filepath.Join(c.Dir, certFileName), filepath.Join(c.Dir, keyFileName), nil
	default:
		return "", "", ErrNoCertificate
	}
}

// Setup returns the server TLS configuration, or nil when TLS is disabled.
// Certificates are re-read on every handshake so rotated files take effect
// without a restart.
func Setup(c Config) (*tls.Config, error) {
	if !c.Enabled {
		return nil, nil
	}
	minVer, err := parseVersion(c.MinVersion)
	if err != nil {
		return nil, err
	}
	certPath, keyPath, err := c.paths()
	if err != nil {
		return nil, err
	}
	if c.Dir != "" && c.AutoGenerate && !exists(certPath, keyPath) {
		if err := os.MkdirAll(c.Dir, 0o750); err != nil {
			return nil, fmt.Errorf("create tls dir: %w", err)
		}
		days := c.ValidDays
		if days <= 0 {
			days = 365
		}
		if err := GenerateSelfSigned(SelfSigned{
			Hosts:    c.Hosts,
			NotAfter: time.Now().AddDate(0, 0, days),
			CertPath: certPath,
			KeyPath:  keyPath,
		}); err != nil {
			return nil, fmt.Errorf("generate certificate: %w", err)
		}
		slog.Info("self-signed certificate generated", "cert", certPath)
	}
	// fail at startup rather than on the first handshake
	if _, err := tls.LoadX509KeyPair(certPath, keyPath); err != nil {
		return nil, fmt.Errorf("load key pair: %w", err)
	}
	return &tls.Config{
		MinVersion: minVer,
		GetCertificate: func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
			pair, err := tls.LoadX509KeyPair(certPath, keyPath)
			if err != nil {
				return nil, err
			}
			return &pair, nil
		},
	}, nil
}

func exists(paths ...string) bool {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return true
}
