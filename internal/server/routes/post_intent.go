package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/peakfunnel/intentgraph/internal/server/middleware"
	"github.com/peakfunnel/intentgraph/pkg/graph"
	"github.com/peakfunnel/intentgraph/pkg/intent"
)

// AnalyzeIntentHandler ingests one interaction signal and returns the
// updated intent state with predictions and related content.
func AnalyzeIntentHandler(c echo.Context) error {
	type analyzeBody struct {
		UserID      string `json:"user_id,omitempty"`
		SessionID   string `json:"session_id,omitempty"`
		Fingerprint string `json:"fingerprint,omitempty"`
		Content     string `json:"content" validate:"required"`
		NodeID      int64  `json:"node_id,omitempty"`
	}

	type analyzeResponse struct {
		Message  string           `json:"message"`
		Analysis *intent.Analysis `json:"analysis,omitempty"`
	}

	data := new(analyzeBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, analyzeResponse{Message: "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, analyzeResponse{Message: "Invalid request body"})
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	params := intent.AnalyzeParams{
		Identity: graph.Identity{
			UserID:      data.UserID,
			SessionID:   data.SessionID,
			Fingerprint: data.Fingerprint,
		},
		Content: data.Content,
	}
	if data.NodeID != 0 {
		node, err := app.Resilience.GetNode(ctx, data.NodeID)
		if err != nil {
			return respondError(c, "AnalyzeIntent", err)
		}
		params.Node = node
	}

	analysis, err := app.Intent.AnalyzeUserIntent(ctx, params)
	if err != nil {
		return respondError(c, "AnalyzeIntent", err)
	}
	return c.JSON(http.StatusOK, analyzeResponse{Message: "OK", Analysis: analysis})
}
