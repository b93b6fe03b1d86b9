package endpoint

import (
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
)

// Liveness answers as long as the supervisor can serve HTTP. It never
// consults the supervised apps, so a crash-looping app does not get the
// supervisor itself restarted.
func Liveness(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "alive",
			"service":   serviceName,
			"pid":       os.Getpid(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}
