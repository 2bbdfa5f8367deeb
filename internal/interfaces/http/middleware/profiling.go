package middleware

import (
	"context"
	"strings"

	"github.com/erp/invoicing/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
)

var profilingSkipPaths = map[string]bool{
	"/health": true,
}

// Profiling attaches route, method, resource and terminal labels to CPU
// samples taken while a request is handled. Unmatched routes and health
// checks are left unlabelled.
func Profiling() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" || profilingSkipPaths[route] {
			c.Next()
			return
		}

		labels := map[string]string{
			"method":   c.Request.Method,
			"route":    route,
			"resource": resourceFromRoute(route),
			"terminal": GetTerminalID(c),
		}
		telemetry.WithProfilingLabels(c.Request.Context(), labels, func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}

// resourceFromRoute returns the first segment after /api/{version},
// e.g. "/api/v1/invoices/:id/payments" -> "invoices"
func resourceFromRoute(route string) string {
	parts := strings.Split(strings.Trim(route, "/"), "/")
	if len(parts) >= 3 && parts[0] == "api" {
		return parts[2]
	}
	if len(parts) > 0 && !strings.HasPrefix(parts[0], ":") {
		return parts[0]
	}
	return ""
}
