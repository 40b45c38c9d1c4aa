package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/labstack/echo/v4"
)

// HeaderToken is the alternate header accepted instead of a bearer token.
const HeaderToken = "X-API-Token"

var (
	ErrMissingToken = errors.New("missing API token")
	ErrInvalidToken = errors.New("invalid API token")
)

// Middleware guards routes with a single static API token.
// With an empty token every request is allowed.
type Middleware struct {
	token string
}

func NewMiddleware(token string) *Middleware {
	return &Middleware{token: strings.TrimSpace(token)}
}

func (m *Middleware) Enabled() bool { return m.token != "" }

// Check validates the token carried by r.
func (m *Middleware) Check(r *http.Request) error {
	if !m.Enabled() {
		return nil
	}
	got := TokenFromRequest(r)
	if got == "" {
		return ErrMissingToken
	}
	if subtle.ConstantTimeCompare([]byte(got), []byte(m.token)) != 1 {
		return ErrInvalidToken
	}
	return nil
}

// TokenFromRequest extracts a bearer token from Authorization, falling back
// to the X-API-Token header.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return strings.TrimSpace(r.Header.Get(HeaderToken))
}

// GinAuth returns a Gin middleware function enforcing the token.
func (m *Middleware) GinAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := m.Check(c.Request); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "authentication_failed",
				"message": err.Error(),
			})
			return
		}
		c.Next()
	}
}

// EchoAuth returns the equivalent Echo middleware.
func (m *Middleware) EchoAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := m.Check(c.Request()); err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error":   "authentication_failed",
					"message": err.Error(),
				})
			}
			return next(c)
		}
	}
}
