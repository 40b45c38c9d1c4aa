package server

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/loykin/sentinel/internal/anomaly"
	"github.com/loykin/sentinel/internal/auth"
)

// DetectorAPI exposes the anomaly detector over HTTP.
// Endpoints:
//
//	GET  /health
//	POST /metrics   body: {"cpu":..,"memory":..,"failedLogins":..}
//	GET  /windows
type DetectorAPI struct {
	det  *anomaly.Detector
	auth *auth.Middleware
}

func NewDetectorAPI(det *anomaly.Detector, token string) *DetectorAPI {
	return &DetectorAPI{det: det, auth: auth.NewMiddleware(token)}
}

// samplePayload accepts fractional failedLogins; they are scored as sent.
type samplePayload struct {
	CPU          float64 `json:"cpu"`
	Memory       float64 `json:"memory"`
	FailedLogins float64 `json:"failedLogins"`
}

type windowsResp struct {
	Windows map[string][]float64 `json:"windows"`
	Window  int                  `json:"window"`
	Sigma   float64              `json:"sigma"`
}

// Handler returns the echo instance serving the detector routes.
func (a *DetectorAPI) Handler() http.Handler {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	e.GET("/health", a.handleHealth)
	e.GET("/windows", a.handleWindows)
	e.POST("/metrics", a.handleMetrics, a.auth.EchoAuth())
	return e
}

func (a *DetectorAPI) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, statusResp{Status: "ok"})
}

func (a *DetectorAPI) handleMetrics(c echo.Context) error {
	var p samplePayload
	if body := c.Request().Body; body != nil {
		// missing or malformed fields score as zero
		_ = json.NewDecoder(body).Decode(&p)
	}
	res := a.det.IngestValues(c.Request().Context(), p.CPU, p.Memory, p.FailedLogins)
	return c.JSON(http.StatusOK, res)
}

func (a *DetectorAPI) handleWindows(c echo.Context) error {
	cfg := a.det.Config()
	return c.JSON(http.StatusOK, windowsResp{Windows: a.det.Windows(), Window: cfg.Window, Sigma: cfg.Sigma})
}
