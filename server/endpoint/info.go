package endpoint

import (
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/primepos-supervisor/version"
)

// startTime records when the process started for uptime calculation.
var startTime = time.Now()

// Info reports version and build information of the running supervisor.
func Info(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		v := version.GetVersionInfo()
		c.JSON(http.StatusOK, gin.H{
			"service":    serviceName,
			"version":    v.Version,
			"git_commit": v.GitCommit,
			"git_branch": v.GitBranch,
			"build_time": v.BuildTime,
			"go_version": v.GoVersion,
			"is_release": v.IsRelease,
			"is_dirty":   v.IsDirty,
			"pid":        os.Getpid(),
			"uptime":     time.Since(startTime).Round(time.Second).String(),
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
		})
	}
}
