package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/cwaweather/backend/internal/service"
)

// SetupRoutes configures all HTTP routes
func SetupRoutes(app *fiber.App, dashboardSvc *service.DashboardService, pipeline *service.Pipeline) {
	handler := NewHandler(dashboardSvc, pipeline)

	// Health check
	app.Get("/health", handler.HealthCheck)

	// API v1 routes
	api := app.Group("/api/v1")
	{
		api.Get("/stats", handler.GetStats)
		api.Get("/trend", handler.GetTrend)

		// Batch endpoints; latest is registered before the id route
		api.Get("/batches", handler.ListBatches)
		api.Get("/batches/latest", handler.GetLatestBatch)
		api.Get("/batches/:batchID", handler.GetBatch)
		api.Get("/batches/:batchID/export.csv", handler.ExportBatch)

		// Runs the fetch pipeline now (rate limited)
		api.Post("/fetch", handler.TriggerFetch)
	}
}
