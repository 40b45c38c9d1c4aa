package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/loykin/sentinel/pkg/client"
)

type command struct {
	api *APIFlags
	out io.Writer
}

func (c *command) client() *client.Client {
	return client.New(client.Config{
		BaseURL:  c.api.APIUrl,
		Timeout:  c.api.APITimeout,
		Token:    c.api.Token,
		CACert:   c.api.CACert,
		Insecure: c.api.Insecure,
	})
}

// reachable returns a client for a running agent, failing fast otherwise.
func (c *command) reachable(ctx context.Context) (*client.Client, error) {
	cl := c.client()
	if !cl.IsReachable(ctx) {
		url := c.api.APIUrl
		if url == "" {
			url = client.DefaultBaseURL
		}
		return nil, fmt.Errorf("agent not reachable at %s - please start it first with 'sentinel agent'", url)
	}
	return cl, nil
}

// Status prints the agent health.
func (c *command) Status(ctx context.Context) error {
	cl, err := c.reachable(ctx)
	if err != nil {
		return err
	}
	h, err := cl.Health(ctx)
	if err != nil {
		return err
	}
	return c.printJSON(h)
}

// Scan triggers one monitoring cycle and prints the refreshed service list.
func (c *command) Scan(ctx context.Context) error {
	cl, err := c.reachable(ctx)
	if err != nil {
		return err
	}
	if err := cl.Scan(ctx); err != nil {
		return err
	}
	services, err := cl.Services(ctx)
	if err != nil {
		return err
	}
	return c.printJSON(map[string]any{"status": "ok", "services": services})
}

// Heal restarts one service.
func (c *command) Heal(ctx context.Context, service string) error {
	cl, err := c.reachable(ctx)
	if err != nil {
		return err
	}
	outcome, err := cl.Heal(ctx, service)
	if err != nil {
		return err
	}
	return c.printJSON(client.StatusResponse{Status: outcome})
}

// Lockdown sets strict mode on or off.
func (c *command) Lockdown(ctx context.Context, f LockdownFlags) error {
	cl, err := c.reachable(ctx)
	if err != nil {
		return err
	}
	strict, err := cl.SetLockdown(ctx, f.Strict)
	if err != nil {
		return err
	}
	return c.printJSON(client.LockdownResponse{Status: "ok", Strict: strict})
}

// Services prints the last known service statuses.
func (c *command) Services(ctx context.Context) error {
	cl, err := c.reachable(ctx)
	if err != nil {
		return err
	}
	services, err := cl.Services(ctx)
	if err != nil {
		return err
	}
	if services == nil {
		services = []client.ServiceStatus{}
	}
	return c.printJSON(services)
}

func (c *command) printJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
