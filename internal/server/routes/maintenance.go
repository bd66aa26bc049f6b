package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/peakfunnel/intentgraph/internal/queue"
	"github.com/peakfunnel/intentgraph/internal/server/middleware"
	"github.com/peakfunnel/intentgraph/pkg/resilience"
)

// HealthHandler reports the graph's operational status.
func HealthHandler(c echo.Context) error {
	type healthResponse struct {
		Message string                   `json:"message"`
		Report  *resilience.HealthReport `json:"report"`
	}

	app := c.(*middleware.AppContext).App
	report := app.Resilience.HealthCheck(c.Request().Context())

	status := http.StatusOK
	if report.Mode == resilience.ModeFallback {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, healthResponse{Message: string(report.Mode), Report: report})
}

// OptimizeHandler schedules the daily optimization sweep. The sweep runs
// on the worker; the request returns as soon as the job is queued.
func OptimizeHandler(c echo.Context) error {
	type optimizeResponse struct {
		Message string `json:"message"`
	}

	app := c.(*middleware.AppContext).App
	if err := app.Publisher.ScheduleReconcile(c.Request().Context(), queue.ReconcileOptimize); err != nil {
		return respondError(c, "Optimize", err)
	}
	return c.JSON(http.StatusAccepted, optimizeResponse{Message: "Optimization scheduled"})
}

// BackupHandler schedules a backup snapshot.
func BackupHandler(c echo.Context) error {
	type backupResponse struct {
		Message string `json:"message"`
	}

	app := c.(*middleware.AppContext).App
	if err := app.Publisher.ScheduleReconcile(c.Request().Context(), queue.ReconcileBackup); err != nil {
		return respondError(c, "Backup", err)
	}
	return c.JSON(http.StatusAccepted, backupResponse{Message: "Backup scheduled"})
}
