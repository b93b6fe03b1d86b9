package endpoint

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/primepos-supervisor/component"
	"github.com/kbukum/primepos-supervisor/observability"
)

// HealthChecker returns health status for registered components.
type HealthChecker func(ctx context.Context) []component.Health

// Health reports service health with every component's status. It answers
// 200 only when everything is up and 503 otherwise.
func Health(serviceName, version string, checker HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		sh := observability.NewServiceHealth(serviceName, version)
		if checker != nil {
			for _, h := range checker(c.Request.Context()) {
				sh.AddComponent(observability.FromComponent(h))
			}
		}

		status := http.StatusOK
		if !sh.IsUp() {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, sh)
	}
}
