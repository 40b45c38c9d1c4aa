package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestCheck(t *testing.T) {
	m := NewMiddleware("s3cret")
	tests := []struct {
		name   string
		header map[string]string
		want   error
	}{
		{"no token", nil, ErrMissingToken},
		{"bearer", map[string]string{"Authorization": "Bearer s3cret"}, nil},
		{"bearer lowercase", map[string]string{"Authorization": "bearer s3cret"}, nil},
		{"wrong bearer", map[string]string{"Authorization": "Bearer nope"}, ErrInvalidToken},
		{"basic scheme ignored", map[string]string{"Authorization": "Basic s3cret"}, ErrMissingToken},
		{"api token header", map[string]string{HeaderToken: "s3cret"}, nil},
		{"wrong api token", map[string]string{HeaderToken: "x"}, ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", nil)
			for k, v := range tt.header {
				r.Header.Set(k, v)
			}
			assert.ErrorIs(t, m.Check(r), tt.want)
			if tt.want == nil {
				assert.NoError(t, m.Check(r))
			}
		})
	}
}

func TestDisabledAllowsAll(t *testing.T) {
	m := NewMiddleware("  ")
	assert.False(t, m.Enabled())
	assert.NoError(t, m.Check(httptest.NewRequest(http.MethodGet, "/", nil)))
}

func TestGinAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/x", NewMiddleware("tok").GinAuth(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/x", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "authentication_failed")

	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	req.Header.Set("Authorization", "Bearer tok")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestEchoAuth(t *testing.T) {
	e := echo.New()
	e.POST("/x", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, NewMiddleware("tok").EchoAuth())

	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/x", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	req.Header.Set(HeaderToken, "tok")
	w = httptest.NewRecorder()
	e.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}
