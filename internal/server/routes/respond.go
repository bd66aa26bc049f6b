package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/peakfunnel/intentgraph/pkg/graph"
	"github.com/peakfunnel/intentgraph/pkg/logger"
)

type errorResponse struct {
	Message string `json:"message"`
}

// respondError maps the engine error taxonomy onto HTTP statuses.
// Validation problems and unknown ids are the caller's fault; everything
// else is logged and reported as an internal error.
func respondError(c echo.Context, op string, err error) error {
	switch {
	case graph.IsValidation(err):
		return c.JSON(http.StatusBadRequest, errorResponse{Message: err.Error()})
	case graph.IsNotFound(err):
		return c.JSON(http.StatusNotFound, errorResponse{Message: err.Error()})
	}
	logger.Error("[Server]["+op+"] Request failed", "err", err)
	return c.JSON(http.StatusInternalServerError, errorResponse{Message: "Internal server error"})
}
