package endpoint

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

// Metrics reports a runtime snapshot of the supervisor process itself.
// Child process metrics go through OpenTelemetry.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		var lastPause time.Duration
		if m.NumGC > 0 {
			lastPause = time.Duration(m.PauseNs[(m.NumGC+255)%256])
		}

		c.JSON(http.StatusOK, gin.H{
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
			"uptime":     time.Since(startTime).Round(time.Second).String(),
			"goroutines": runtime.NumGoroutine(),
			"cpus":       runtime.NumCPU(),
			"memory": gin.H{
				"heap_alloc_bytes": m.HeapAlloc,
				"heap_objects":     m.HeapObjects,
				"sys_bytes":        m.Sys,
			},
			"gc": gin.H{
				"runs":       m.NumGC,
				"last_pause": lastPause.String(),
			},
		})
	}
}
