package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/webtrawl/trawl/api/handler"
	"github.com/webtrawl/trawl/config"
)

// NewRouter creates the Gin engine for the monitor endpoints.
//
// The monitor is a read-only side channel into a running extraction job:
// it never mutates driver state, so it carries no auth and no rate limit.
// Bind it to localhost unless the host is otherwise locked down.
func NewRouter(src handler.SnapshotSource, cfg config.MonitorConfig, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Mode)

	r := gin.New()
	r.Use(gin.Recovery())

	v1 := r.Group("/api/v1")
	v1.GET("/health", handler.Health(src, startTime))
	v1.GET("/progress", handler.Progress(src))

	return r
}
