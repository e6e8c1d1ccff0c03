package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter configures the status API routes
func SetupRouter(h *Handler) *gin.Engine {
	r := gin.Default()

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 group
	v1 := r.Group("/api/v1")
	{
		v1.GET("/crates", h.ListCrates)
		v1.GET("/crates/:name", h.GetCrate)
		v1.GET("/summary", h.GetSummary)
	}

	return r
}
