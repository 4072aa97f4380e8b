// Package router wires the comparison service routes.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/revdiff/internal/diff/handler"
	"github.com/kart-io/revdiff/pkg/server"
)

// Register registers all service routes on the server manager.
func Register(mgr *server.Manager, cmpHandler *handler.ComparisonHandler, usageHandler *handler.UsageHandler) {
	engine := mgr.Engine()

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := engine.Group("/v1")
	{
		comparisons := v1.Group("/comparisons")
		{
			comparisons.POST("", cmpHandler.Compare)
			comparisons.GET("/:id", cmpHandler.Get)
			comparisons.DELETE("/:id", cmpHandler.Delete)
		}

		documents := v1.Group("/documents")
		{
			documents.GET("/:id/comparisons", cmpHandler.ListByDocument)
			documents.POST("/:id/regenerate", cmpHandler.Regenerate)
		}

		usage := v1.Group("/usage")
		{
			usage.GET("/:user/limits", usageHandler.Limits)
			usage.GET("/:user/stats", usageHandler.UserStats)
		}

		stats := v1.Group("/stats")
		{
			stats.GET("", usageHandler.SystemStats)
			stats.GET("/trends", usageHandler.Trends)
			stats.GET("/expensive", usageHandler.MostExpensive)
		}

		v1.GET("/metrics", usageHandler.Metrics)
	}

	logger.Infow("Routes registered")
}
