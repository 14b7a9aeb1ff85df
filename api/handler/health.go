package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/webtrawl/trawl/models"
)

// SnapshotSource yields the current run snapshot. The extraction driver
// satisfies it; tests substitute a fixed snapshot.
type SnapshotSource interface {
	Snapshot() models.ProgressSnapshot
}

// Health returns a handler for GET /api/v1/health.
//
// Reports "draining" once shutdown has begun so probes can distinguish a
// deliberate stop from a hung process.
func Health(src SnapshotSource, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap := src.Snapshot()

		status := "running"
		if snap.State == models.RunStateShuttingDown || snap.State == models.RunStateStopped {
			status = "draining"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			State:   snap.State,
			Version: "0.1.0",
		})
	}
}
