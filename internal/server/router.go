package server

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/sentinel/internal/agent"
	"github.com/loykin/sentinel/internal/auth"
	"github.com/loykin/sentinel/internal/event"
	"github.com/loykin/sentinel/internal/metrics"
)

// Agent is the subset of the agent the HTTP API drives.
type Agent interface {
	Health() agent.Health
	Scan(ctx context.Context)
	Heal(ctx context.Context, name string) event.HealOutcome
	SetLockdown(ctx context.Context, strict bool) bool
	Services(ctx context.Context) []event.ServiceStatus
}

// Router provides embeddable HTTP handlers for the agent.
// Endpoints:
//
//	GET  {basePath}/agent/health
//	POST {basePath}/agent/scan
//	POST {basePath}/agent/heal       body: {"service": name}
//	POST {basePath}/agent/lockdown   body: {"strict": bool}
//	GET  {basePath}/agent/services
//	GET  {basePath}/metrics          Prometheus exposition
//
// Mutating routes require the API token when one is configured.
type Router struct {
	agent    Agent
	basePath string
	auth     *auth.Middleware
}

// NewRouter constructs a new Router with configurable basePath.
// Example basePath: "/api" results in /api/agent/health and so on.
func NewRouter(a Agent, basePath, token string) *Router {
	return &Router{agent: a, basePath: sanitizeBase(basePath), auth: auth.NewMiddleware(token)}
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	base := g.Group(r.basePath)
	base.GET("/metrics", gin.WrapH(metrics.Handler()))

	group := base.Group("/agent")
	group.GET("/health", r.handleHealth)
	group.GET("/services", r.handleServices)

	guarded := group.Group("", r.auth.GinAuth())
	guarded.POST("/scan", r.handleScan)
	guarded.POST("/heal", r.handleHeal)
	guarded.POST("/lockdown", r.handleLockdown)
	return g
}

// NewServer wraps h in an http.Server with sane timeouts and starts serving
// on addr in the background, over HTTPS when tlsConfig is non-nil. Use
// Shutdown to stop it.
func NewServer(addr string, h http.Handler, tlsConfig *tls.Config) *http.Server {
	server := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// scans and heals run synchronously inside the request
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
		TLSConfig:    tlsConfig,
	}
	go func() {
		var err error
		if tlsConfig != nil {
			err = server.ListenAndServeTLS("", "")
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failed", "addr", addr, "error", err)
		}
	}()
	return server
}

// --- Handlers ---

type statusResp struct {
	Status string `json:"status"`
}

type healRequest struct {
	Service string `json:"service"`
}

type lockdownRequest struct {
	Strict bool `json:"strict"`
}

type lockdownResp struct {
	Status string `json:"status"`
	Strict bool   `json:"strict"`
}

type servicesResp struct {
	Services []event.ServiceStatus `json:"services"`
}

func (r *Router) handleHealth(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.agent.Health())
}

func (r *Router) handleScan(c *gin.Context) {
	r.agent.Scan(c.Request.Context())
	writeJSON(c, http.StatusOK, statusResp{Status: "ok"})
}

func (r *Router) handleHeal(c *gin.Context) {
	var req healRequest
	bindOptionalJSON(c, &req)
	outcome := r.agent.Heal(c.Request.Context(), req.Service)
	writeJSON(c, http.StatusOK, statusResp{Status: string(outcome)})
}

func (r *Router) handleLockdown(c *gin.Context) {
	var req lockdownRequest
	bindOptionalJSON(c, &req)
	strict := r.agent.SetLockdown(c.Request.Context(), req.Strict)
	writeJSON(c, http.StatusOK, lockdownResp{Status: "ok", Strict: strict})
}

func (r *Router) handleServices(c *gin.Context) {
	services := r.agent.Services(c.Request.Context())
	if services == nil {
		services = []event.ServiceStatus{}
	}
	writeJSON(c, http.StatusOK, servicesResp{Services: services})
}
