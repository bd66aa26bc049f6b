package routes

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/peakfunnel/intentgraph/internal/server/middleware"
	"github.com/peakfunnel/intentgraph/pkg/graph"
)

// CreateEdgeHandler creates a manual edge between two nodes. The edge
// type is inferred from the endpoints when omitted.
func CreateEdgeHandler(c echo.Context) error {
	type createEdgeBody struct {
		FromNodeID int64   `json:"from_node_id" validate:"required"`
		ToNodeID   int64   `json:"to_node_id" validate:"required"`
		EdgeType   string  `json:"edge_type,omitempty"`
		Weight     float64 `json:"weight,omitempty"`
		Confidence float64 `json:"confidence,omitempty"`
	}

	type createEdgeResponse struct {
		Message string      `json:"message"`
		Edge    *graph.Edge `json:"edge,omitempty"`
	}

	data := new(createEdgeBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, createEdgeResponse{Message: "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, createEdgeResponse{Message: "Invalid request body"})
	}

	app := c.(*middleware.AppContext).App
	edge, err := app.Semantic.CreateEdge(c.Request().Context(), &graph.Edge{
		FromNodeID: data.FromNodeID,
		ToNodeID:   data.ToNodeID,
		Type:       graph.EdgeType(data.EdgeType),
		Weight:     data.Weight,
		Confidence: data.Confidence,
		IsActive:   true,
		CreatedBy:  graph.OriginManual,
	})
	if err != nil {
		return respondError(c, "CreateEdge", err)
	}

	return c.JSON(http.StatusCreated, createEdgeResponse{Message: "Edge created", Edge: edge})
}

// EdgeClickHandler records click (and optionally conversion) evidence on
// an edge.
func EdgeClickHandler(c echo.Context) error {
	type clickBody struct {
		Converted bool `json:"converted"`
	}
	type clickResponse struct {
		Message string `json:"message"`
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, clickResponse{Message: "Invalid edge id"})
	}

	data := new(clickBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, clickResponse{Message: "Invalid request body"})
	}

	app := c.(*middleware.AppContext).App
	if err := app.Propagation.RecordEdgeClick(c.Request().Context(), id, data.Converted); err != nil {
		return respondError(c, "EdgeClick", err)
	}
	return c.JSON(http.StatusOK, clickResponse{Message: "Recorded"})
}
