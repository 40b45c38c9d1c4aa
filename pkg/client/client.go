package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "http://localhost:5001"
	DefaultTimeout = 10 * time.Second
)

// Client talks to a running sentinel agent over its HTTP API.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *slog.Logger
}

// Config holds client configuration
type Config struct {
	BaseURL  string
	Timeout  time.Duration
	Token    string       // Sent as a bearer token when set
	Logger   *slog.Logger // Optional logger for client operations
	CACert   string       // PEM bundle trusted for https agents
	Insecure bool         // Skip TLS verification
}

// DefaultConfig returns default client configuration
func DefaultConfig() Config {
	return Config{BaseURL: DefaultBaseURL, Timeout: DefaultTimeout}
}

// New creates a new agent API client.
func New(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	transport := &http.Transport{}
	if config.Insecure || config.CACert != "" {
		tlsConfig, err := setupClientTLS(config)
		if err != nil {
			config.Logger.Error("TLS setup failed", "error", err)
		} else {
			transport.TLSClientConfig = tlsConfig
		}
	}

	return &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		token:   config.Token,
		logger:  config.Logger,
		client: &http.Client{
			Timeout:   config.Timeout,
			Transport: transport,
		},
	}
}

// IsReachable checks if the agent is running and reachable
func (c *Client) IsReachable(ctx context.Context) bool {
	_, err := c.Health(ctx)
	if err != nil {
		c.logger.Debug("Agent unreachable", "error", err)
		return false
	}
	return true
}

// Health returns the agent liveness and lockdown state.
func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	var out HealthResponse
	err := c.doJSONRequest(ctx, http.MethodGet, "/agent/health", nil, &out)
	return out, err
}

// Scan runs one full monitoring cycle on the agent and waits for it.
func (c *Client) Scan(ctx context.Context) error {
	c.logger.Debug("Requesting scan")
	return c.doJSONRequest(ctx, http.MethodPost, "/agent/scan", nil, nil)
}

// Heal asks the agent to restart one service and returns the outcome.
func (c *Client) Heal(ctx context.Context, service string) (string, error) {
	c.logger.Debug("Requesting heal", "service", service)
	var out StatusResponse
	if err := c.doJSONRequest(ctx, http.MethodPost, "/agent/heal", HealRequest{Service: service}, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

// SetLockdown updates strict mode and returns the resulting state.
func (c *Client) SetLockdown(ctx context.Context, strict bool) (bool, error) {
	var out LockdownResponse
	if err := c.doJSONRequest(ctx, http.MethodPost, "/agent/lockdown", LockdownRequest{Strict: strict}, &out); err != nil {
		return false, err
	}
	return out.Strict, nil
}

// Services returns the status of every monitored service.
func (c *Client) Services(ctx context.Context) ([]ServiceStatus, error) {
	var out servicesResponse
	if err := c.doJSONRequest(ctx, http.MethodGet, "/agent/services", nil, &out); err != nil {
		return nil, err
	}
	return out.Services, nil
}

// setupClientTLS configures TLS settings for HTTP client
func setupClientTLS(config Config) (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if config.Insecure {
		tlsConfig.InsecureSkipVerify = true
		return tlsConfig, nil
	}
	caCert, err := os.ReadFile(config.CACert)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("failed to parse CA certificate")
	}
	tlsConfig.RootCAs = pool
	return tlsConfig, nil
}

// doJSONRequest sends in as JSON (when non-nil) and decodes the reply into out (when non-nil).
func (c *Client) doJSONRequest(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("HTTP request failed", "error", err, "url", url)
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := c.handleErrorResponse(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// handleErrorResponse handles HTTP error responses
func (c *Client) handleErrorResponse(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}

	var errorResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errorResp); err != nil || errorResp.Error == "" {
		c.logger.Error("Failed to decode error response", "status", resp.StatusCode)
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	c.logger.Error("API request failed", "error", errorResp.Error, "status", resp.StatusCode)
	if errorResp.Message != "" {
		return fmt.Errorf("API error: %s: %s", errorResp.Error, errorResp.Message)
	}
	return fmt.Errorf("API error: %s", errorResp.Error)
}
