package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Progress returns a handler for GET /api/v1/progress.
//
// Serves the driver's latest published snapshot verbatim. The snapshot is
// a value copy, so a slow client can never observe a half-updated run.
func Progress(src SnapshotSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, src.Snapshot())
	}
}
