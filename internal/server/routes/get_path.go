package routes

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/peakfunnel/intentgraph/internal/server/middleware"
)

// FindPathHandler returns the shortest active-edge path between two nodes.
func FindPathHandler(c echo.Context) error {
	type pathResponse struct {
		Message string  `json:"message"`
		Path    []int64 `json:"path"`
	}

	from, err := strconv.ParseInt(c.QueryParam("from"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, pathResponse{Message: "Invalid from id"})
	}
	to, err := strconv.ParseInt(c.QueryParam("to"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, pathResponse{Message: "Invalid to id"})
	}
	maxDepth, _ := strconv.Atoi(c.QueryParam("max_depth"))
	if maxDepth <= 0 {
		maxDepth = 6
	}

	app := c.(*middleware.AppContext).App
	path, err := app.Semantic.FindShortestPath(c.Request().Context(), from, to, maxDepth)
	if err != nil {
		return respondError(c, "FindPath", err)
	}
	return c.JSON(http.StatusOK, pathResponse{Message: "OK", Path: path})
}
