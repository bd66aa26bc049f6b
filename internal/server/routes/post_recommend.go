package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/peakfunnel/intentgraph/internal/server/middleware"
	"github.com/peakfunnel/intentgraph/pkg/graph"
)

// RecommendHandler scores the outgoing edges of the visited node against
// the caller's intent state and returns ranked recommendations.
func RecommendHandler(c echo.Context) error {
	type recommendBody struct {
		UserID      string `json:"user_id,omitempty"`
		SessionID   string `json:"session_id,omitempty"`
		Fingerprint string `json:"fingerprint,omitempty"`
		NodeID      int64  `json:"node_id" validate:"required"`

		// Optional override; when absent the strength is derived from
		// the identity's intent profile.
		IntentStrength *float64 `json:"intent_strength,omitempty"`
	}

	type recommendResponse struct {
		Message         string                 `json:"message"`
		Recommendations []graph.Recommendation `json:"recommendations,omitempty"`
	}

	data := new(recommendBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, recommendResponse{Message: "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, recommendResponse{Message: "Invalid request body"})
	}

	app := c.(*middleware.AppContext).App
	identity := graph.Identity{
		UserID:      data.UserID,
		SessionID:   data.SessionID,
		Fingerprint: data.Fingerprint,
	}

	var (
		recommendations []graph.Recommendation
		err             error
	)
	if data.IntentStrength != nil {
		recommendations, err = app.Propagation.PropagateWithStrength(
			c.Request().Context(), identity, data.NodeID, *data.IntentStrength)
	} else {
		recommendations, err = app.Propagation.PropagateUserIntent(
			c.Request().Context(), identity, data.NodeID)
	}
	if err != nil {
		return respondError(c, "Recommend", err)
	}

	return c.JSON(http.StatusOK, recommendResponse{
		Message:         "OK",
		Recommendations: recommendations,
	})
}
