package routes

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/peakfunnel/intentgraph/internal/server/middleware"
	"github.com/peakfunnel/intentgraph/pkg/graph"
)

// CreateNodeHandler creates (or upserts by slug) a content node.
func CreateNodeHandler(c echo.Context) error {
	type createNodeBody struct {
		Slug        string   `json:"slug" validate:"required"`
		Title       string   `json:"title" validate:"required"`
		Description string   `json:"description,omitempty"`
		NodeType    string   `json:"node_type" validate:"required"`
		VerticalID  string   `json:"vertical_id,omitempty"`
		Tags        []string `json:"intent_profile_tags,omitempty"`
	}

	type createNodeResponse struct {
		Message string      `json:"message"`
		Node    *graph.Node `json:"node,omitempty"`
	}

	data := new(createNodeBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, createNodeResponse{Message: "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, createNodeResponse{Message: "Invalid request body"})
	}

	app := c.(*middleware.AppContext).App
	node, err := app.Semantic.CreateNode(c.Request().Context(), &graph.Node{
		Slug:              data.Slug,
		Title:             data.Title,
		Description:       data.Description,
		Type:              graph.NodeType(data.NodeType),
		VerticalID:        data.VerticalID,
		Status:            graph.NodeStatusActive,
		IntentProfileTags: data.Tags,
	})
	if err != nil {
		return respondError(c, "CreateNode", err)
	}

	return c.JSON(http.StatusCreated, createNodeResponse{Message: "Node created", Node: node})
}

// GetNodeHandler returns one node by id.
func GetNodeHandler(c echo.Context) error {
	type getNodeResponse struct {
		Message string      `json:"message"`
		Node    *graph.Node `json:"node,omitempty"`
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, getNodeResponse{Message: "Invalid node id"})
	}

	app := c.(*middleware.AppContext).App
	node, err := app.Resilience.GetNode(c.Request().Context(), id)
	if err != nil {
		return respondError(c, "GetNode", err)
	}
	return c.JSON(http.StatusOK, getNodeResponse{Message: "OK", Node: node})
}

// GetSimilarNodesHandler lists the nodes most similar to one node.
func GetSimilarNodesHandler(c echo.Context) error {
	type similarResult struct {
		Node       *graph.Node `json:"node"`
		Similarity float64     `json:"similarity"`
	}
	type similarResponse struct {
		Message string          `json:"message"`
		Results []similarResult `json:"results,omitempty"`
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, similarResponse{Message: "Invalid node id"})
	}
	topK, _ := strconv.Atoi(c.QueryParam("top_k"))

	app := c.(*middleware.AppContext).App
	if topK <= 0 {
		topK = app.Tuning.TopK
	}
	results, err := app.Semantic.FindSimilarNodes(c.Request().Context(), id, topK)
	if err != nil {
		return respondError(c, "FindSimilarNodes", err)
	}

	out := make([]similarResult, 0, len(results))
	for _, r := range results {
		out = append(out, similarResult{Node: r.Node, Similarity: r.Similarity})
	}
	return c.JSON(http.StatusOK, similarResponse{Message: "OK", Results: out})
}
