package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/primepos-supervisor/observability"
)

// Observe returns a Gin middleware that wraps each request in a span and
// records request metrics under the matched route pattern.
func Observe(serviceName string, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		oc := observability.NewOperationContext(serviceName, c.Request.Method+" "+route, c.GetHeader(HeaderRequestID), metrics)
		ctx := observability.WithOperationContext(c.Request.Context(), oc)
		ctx, span := oc.StartSpanForOperation(ctx, observability.SpanHTTPRequest)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		var err error
		if len(c.Errors) > 0 {
			err = c.Errors.Last()
		}
		oc.EndOperation(ctx, span, strconv.Itoa(c.Writer.Status()), err)
	}
}
