package server

import (
	"encoding/json"
	"strings"

	"github.com/gin-gonic/gin"
)

func sanitizeBase(bp string) string {
	bp = strings.TrimSpace(bp)
	if bp == "" || bp == "/" {
		return ""
	}
	if !strings.HasPrefix(bp, "/") {
		bp = "/" + bp
	}
	bp = strings.TrimRight(bp, "/")
	return bp
}

// bindOptionalJSON decodes the request body into v. An empty or malformed
// body leaves v at its zero value, matching the lenient agent API.
func bindOptionalJSON(c *gin.Context, v any) {
	if c.Request.Body == nil {
		return
	}
	_ = json.NewDecoder(c.Request.Body).Decode(v)
}

func writeJSON(c *gin.Context, code int, v any) {
	c.Header("Content-Type", "application/json")
	c.Status(code)
	_ = json.NewEncoder(c.Writer).Encode(v)
}
