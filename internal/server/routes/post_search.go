package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/peakfunnel/intentgraph/internal/server/middleware"
	"github.com/peakfunnel/intentgraph/pkg/graph"
	"github.com/peakfunnel/intentgraph/pkg/semantic"
)

// SearchHandler runs a semantic search over active nodes.
func SearchHandler(c echo.Context) error {
	type searchBody struct {
		Query     string   `json:"query" validate:"required"`
		NodeTypes []string `json:"node_types,omitempty"`
		Verticals []string `json:"verticals,omitempty"`
		TopK      int      `json:"top_k,omitempty"`
		Threshold float64  `json:"threshold,omitempty"`
	}

	type searchResult struct {
		Node       *graph.Node `json:"node"`
		Similarity float64     `json:"similarity"`
	}

	type searchResponse struct {
		Message string         `json:"message"`
		Results []searchResult `json:"results,omitempty"`
	}

	data := new(searchBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, searchResponse{Message: "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, searchResponse{Message: "Invalid request body"})
	}

	types := make([]graph.NodeType, 0, len(data.NodeTypes))
	for _, t := range data.NodeTypes {
		types = append(types, graph.NodeType(t))
	}

	app := c.(*middleware.AppContext).App
	if data.TopK <= 0 {
		data.TopK = app.Tuning.TopK
	}
	results, err := app.Semantic.SemanticSearch(c.Request().Context(), data.Query, semantic.SearchOptions{
		NodeTypes: types,
		Verticals: data.Verticals,
		TopK:      data.TopK,
		Threshold: data.Threshold,
	})
	if err != nil {
		return respondError(c, "Search", err)
	}

	out := make([]searchResult, 0, len(results))
	for _, r := range results {
		out = append(out, searchResult{Node: r.Node, Similarity: r.Similarity})
	}
	return c.JSON(http.StatusOK, searchResponse{Message: "OK", Results: out})
}
