package client

import "time"

// HealthResponse is returned by GET /agent/health.
type HealthResponse struct {
	Status   string `json:"status"`
	Lockdown bool   `json:"lockdown"`
}

// StatusResponse is returned by scan and heal. For heal, Status is one of
// "success", "failed" or "skipped".
type StatusResponse struct {
	Status string `json:"status"`
}

// HealRequest names the service to restart.
type HealRequest struct {
	Service string `json:"service"`
}

// LockdownRequest toggles strict lockdown mode.
type LockdownRequest struct {
	Strict bool `json:"strict"`
}

// LockdownResponse echoes the lockdown state after the update.
type LockdownResponse struct {
	Status string `json:"status"`
	Strict bool   `json:"strict"`
}

// ServiceStatus is the liveness of one monitored service.
type ServiceStatus struct {
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type servicesResponse struct {
	Services []ServiceStatus `json:"services"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
