// Package propagation turns graph structure and intent state into ranked
// recommendations, and runs the maintenance heuristics that keep edge
// scores honest: reinforcement from click evidence, decay without it,
// automatic connection discovery and the daily optimization sweep.
package propagation

import (
	"context"
	"fmt"
	"sort"

	"github.com/peakfunnel/intentgraph/pkg/graph"
	"github.com/peakfunnel/intentgraph/pkg/intent"
	"github.com/peakfunnel/intentgraph/pkg/logger"
	"github.com/peakfunnel/intentgraph/pkg/semantic"
	"github.com/peakfunnel/intentgraph/pkg/store"
)

// Engine computes recommendations and maintains edge scores.
type Engine struct {
	semantic *semantic.Engine
	intents  *intent.Engine
	store    store.GraphStore
	tuning   graph.Tuning
}

func New(sem *semantic.Engine, intents *intent.Engine, tuning graph.Tuning) *Engine {
	return &Engine{
		semantic: sem,
		intents:  intents,
		store:    sem.Store(),
		tuning:   tuning,
	}
}

// edgeTypeBoost favors edge types that historically convert better.
func edgeTypeBoost(t graph.EdgeType) float64 {
	switch t {
	case graph.EdgeLeadsTo:
		return 1.2
	case graph.EdgeSolves:
		return 1.15
	case graph.EdgeUpsellFrom:
		return 1.1
	}
	return 1.0
}

// PropagateUserIntent folds the visit into the identity's intent state and
// scores every active outgoing edge of the visited node:
//
//	score = weight * confidence * strength
//	      + 0.2 * engagement + 0.3 * conversion_rate, boosted per edge
//	      type and clipped to 1.0
//
// where strength is the identity's coherence with its current intent
// cluster. Candidates at or below the propagation floor are dropped and
// the survivors returned best first.
func (e *Engine) PropagateUserIntent(ctx context.Context, id graph.Identity, nodeID int64) ([]graph.Recommendation, error) {
	return e.propagate(ctx, id, nodeID, -1)
}

// PropagateWithStrength is PropagateUserIntent with the strength
// multiplier supplied by the caller instead of derived from the
// identity's profile. Strength is clamped to [0, 1].
func (e *Engine) PropagateWithStrength(ctx context.Context, id graph.Identity, nodeID int64, strength float64) ([]graph.Recommendation, error) {
	if strength < 0 {
		strength = 0
	}
	if strength > 1 {
		strength = 1
	}
	return e.propagate(ctx, id, nodeID, strength)
}

func (e *Engine) propagate(ctx context.Context, id graph.Identity, nodeID int64, strength float64) ([]graph.Recommendation, error) {
	key := id.Key()
	if key == "" {
		return nil, graph.Validationf("identity", "at least one of user_id, session_id, fingerprint is required")
	}

	node, err := e.store.GetNode(ctx, nodeID)
	if err != nil {
		return nil, fmt.Errorf("[Propagation][PropagateUserIntent] load node %d: %w", nodeID, err)
	}

	profile := e.intents.RecordVisit(ctx, key, node)
	if strength < 0 {
		strength = intentStrength(profile)
	}

	edges, err := e.store.OutgoingEdges(ctx, nodeID, true)
	if err != nil {
		return nil, fmt.Errorf("[Propagation][PropagateUserIntent] load edges of node %d: %w", nodeID, err)
	}

	recommendations := make([]graph.Recommendation, 0, len(edges))
	for _, edge := range edges {
		target, err := e.store.GetNode(ctx, edge.ToNodeID)
		if err != nil || !target.Active() {
			continue
		}

		score := edge.Weight*edge.Confidence*strength +
			0.2*target.Engagement +
			0.3*target.ConversionRate
		score *= edgeTypeBoost(edge.Type)
		if score > 1 {
			score = 1
		}
		if score <= e.tuning.PropagationFloor {
			continue
		}

		recommendations = append(recommendations, graph.Recommendation{
			Node:      target,
			EdgeType:  edge.Type,
			Score:     score,
			Reasoning: reasoning(score, edge.Type),
		})
	}

	sort.Slice(recommendations, func(i, j int) bool {
		if recommendations[i].Score != recommendations[j].Score {
			return recommendations[i].Score > recommendations[j].Score
		}
		return recommendations[i].Node.ID < recommendations[j].Node.ID
	})
	if len(recommendations) > e.tuning.TopK {
		recommendations = recommendations[:e.tuning.TopK]
	}

	logger.Debug("[Propagation][PropagateUserIntent] Scored recommendations",
		"identity", key, "node", nodeID, "count", len(recommendations))
	return recommendations, nil
}

// intentStrength measures how coherently an identity tracks its current
// intent cluster. A fresh identity whose vector equals the cluster
// centroid scores 1.0; wandering behavior scores lower.
func intentStrength(profile *graph.UserIntentVector) float64 {
	if profile == nil || profile.CurrentIntent == "" {
		return 1.0
	}
	confidence, ok := profile.ClusterConfidence[profile.CurrentIntent]
	if !ok {
		return 1.0
	}
	if confidence < 0 {
		return 0
	}
	return confidence
}

func reasoning(score float64, edgeType graph.EdgeType) string {
	switch {
	case score > 0.8:
		return "High confidence match based on your journey"
	case score > 0.6:
		return "Good match for your current intent"
	case edgeType == graph.EdgeUpsellFrom:
		return "Often chosen as a next step"
	}
	return "Related to your recent activity"
}
