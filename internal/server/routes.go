package server

import (
	"github.com/labstack/echo/v4"

	"github.com/peakfunnel/intentgraph/internal/server/middleware"
	"github.com/peakfunnel/intentgraph/internal/server/routes"
)

func RegisterRoutes(e *echo.Echo) {
	// Liveness probe, no auth.
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Graph routes
	apiRoutes.POST("/nodes", routes.CreateNodeHandler)
	apiRoutes.GET("/nodes/:id", routes.GetNodeHandler)
	apiRoutes.GET("/nodes/:id/similar", routes.GetSimilarNodesHandler)
	apiRoutes.POST("/edges", routes.CreateEdgeHandler)
	apiRoutes.POST("/edges/:id/click", routes.EdgeClickHandler)
	apiRoutes.GET("/path", routes.FindPathHandler)

	// Search and personalization routes
	apiRoutes.POST("/search", routes.SearchHandler)
	apiRoutes.POST("/intent", routes.AnalyzeIntentHandler)
	apiRoutes.POST("/recommend", routes.RecommendHandler)

	// Maintenance routes
	apiRoutes.GET("/health", routes.HealthHandler)
	apiRoutes.POST("/optimize", routes.OptimizeHandler)
	apiRoutes.POST("/backup", routes.BackupHandler)
}
