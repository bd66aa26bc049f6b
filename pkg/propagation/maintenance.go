package propagation

import (
	"context"
	"fmt"
	"math"

	"github.com/peakfunnel/intentgraph/pkg/graph"
	"github.com/peakfunnel/intentgraph/pkg/logger"
	"github.com/peakfunnel/intentgraph/pkg/store"
	"github.com/peakfunnel/intentgraph/pkg/vectormath"
)

// Performance thresholds for the daily sweep. A node counts as a low
// performer only once it has traffic; fresh nodes with no evidence are
// left alone.
const (
	lowCTRThreshold        = 0.02
	lowEngagementThreshold = 0.1
	lowConversionThreshold = 0.005

	// confidenceEvidenceClicks is the click count at which an edge is
	// considered statistically trustworthy.
	confidenceEvidenceClicks = 10
	confidenceEvidenceFloor  = 0.8
)

// UpdateEdgeWeights recomputes weight and confidence for every active edge
// from its click and conversion evidence. Edges without clicks decay;
// edges with sustained evidence converge toward high confidence. Returns
// the number of edges updated.
func (e *Engine) UpdateEdgeWeights(ctx context.Context) (int, error) {
	edges, err := e.store.ListActiveEdges(ctx, 0)
	if err != nil {
		return 0, fmt.Errorf("[Propagation][UpdateEdgeWeights] list edges: %w", err)
	}

	updated := 0
	for _, edge := range edges {
		weight, confidence := rescoreEdge(edge, e.tuning)
		if weight == edge.Weight && confidence == edge.Confidence {
			continue
		}
		if err := e.store.UpdateEdgeScores(ctx, edge.ID, weight, confidence); err != nil {
			logger.Warn("[Propagation][UpdateEdgeWeights] Could not persist scores", "edge", edge.ID, "err", err)
			continue
		}
		updated++
	}

	logger.Info("[Propagation][UpdateEdgeWeights] Pass complete", "edges", len(edges), "updated", updated)
	return updated, nil
}

// rescoreEdge derives an edge's next weight and confidence.
func rescoreEdge(edge *graph.Edge, tuning graph.Tuning) (weight, confidence float64) {
	if edge.ClickCount == 0 {
		weight = edge.Weight * tuning.WeightDecay
	} else {
		// Log-scaled so the tenth click matters less than the first.
		weight = math.Log10(1+float64(edge.ClickCount)) / 2
		if edge.ClickCount > 0 && edge.ConversionCount > 0 {
			conversionRate := float64(edge.ConversionCount) / float64(edge.ClickCount)
			weight += 0.3 * conversionRate
		}
		if weight > 1 {
			weight = 1
		}
	}

	confidence = edge.Confidence
	if edge.ClickCount >= confidenceEvidenceClicks {
		if confidence < confidenceEvidenceFloor {
			confidence = confidenceEvidenceFloor
		}
	} else {
		confidence *= tuning.ConfidenceDecay
	}
	return weight, confidence
}

// AutoGenerateConnections discovers missing edges for one node: candidates
// sharing its vertical or type whose embeddings clear the similarity
// threshold get an edge with an inferred type and similarity-derived
// initial scores. Existing pairs are never touched. Returns created edges.
func (e *Engine) AutoGenerateConnections(ctx context.Context, nodeID int64) ([]*graph.Edge, error) {
	node, err := e.store.GetNode(ctx, nodeID)
	if err != nil {
		return nil, fmt.Errorf("[Propagation][AutoGenerateConnections] load node %d: %w", nodeID, err)
	}
	if len(node.Embedding) == 0 {
		return nil, nil
	}

	existing, err := e.store.OutgoingEdges(ctx, nodeID, false)
	if err != nil {
		return nil, fmt.Errorf("[Propagation][AutoGenerateConnections] load edges of node %d: %w", nodeID, err)
	}
	connected := make(map[int64]bool, len(existing))
	for _, edge := range existing {
		connected[edge.ToNodeID] = true
	}

	candidates, err := e.connectionCandidates(ctx, node)
	if err != nil {
		return nil, err
	}

	var created []*graph.Edge
	for _, candidate := range candidates {
		if candidate.ID == node.ID || connected[candidate.ID] || len(candidate.Embedding) == 0 {
			continue
		}
		similarity := vectormath.CosineSimilarity(node.Embedding, candidate.Embedding)
		if similarity < e.tuning.ClusterThreshold {
			continue
		}

		weight, confidence := graph.InitialEdgeScores(similarity, e.tuning.ConfidenceDampening)
		edge, err := e.store.UpsertEdge(ctx, &graph.Edge{
			FromNodeID: node.ID,
			ToNodeID:   candidate.ID,
			Type:       graph.InferEdgeType(node, candidate),
			Weight:     weight,
			Confidence: confidence,
			IsActive:   true,
			CreatedBy:  graph.OriginAuto,
		})
		if err != nil {
			logger.Warn("[Propagation][AutoGenerateConnections] Could not create edge",
				"from", node.ID, "to", candidate.ID, "err", err)
			continue
		}
		connected[candidate.ID] = true
		created = append(created, edge)
	}

	if len(created) > 0 {
		logger.Info("[Propagation][AutoGenerateConnections] Created edges", "node", nodeID, "count", len(created))
	}
	return created, nil
}

// connectionCandidates gathers active nodes sharing the vertical or type.
func (e *Engine) connectionCandidates(ctx context.Context, node *graph.Node) ([]*graph.Node, error) {
	byVertical, err := e.store.ListNodes(ctx, store.NodeFilter{
		Verticals: []string{node.VerticalID},
		Status:    graph.NodeStatusActive,
	})
	if err != nil {
		return nil, fmt.Errorf("[Propagation][AutoGenerateConnections] list vertical peers: %w", err)
	}
	byType, err := e.store.ListNodes(ctx, store.NodeFilter{
		Types:  []graph.NodeType{node.Type},
		Status: graph.NodeStatusActive,
	})
	if err != nil {
		return nil, fmt.Errorf("[Propagation][AutoGenerateConnections] list type peers: %w", err)
	}

	seen := make(map[int64]bool, len(byVertical)+len(byType))
	var out []*graph.Node
	for _, n := range append(byVertical, byType...) {
		if seen[n.ID] {
			continue
		}
		seen[n.ID] = true
		out = append(out, n)
	}
	return out, nil
}

// OptimizationReport summarizes one daily optimization sweep.
type OptimizationReport struct {
	OrphanedEdgesDeactivated int      `json:"orphaned_edges_deactivated"`
	LowPerformersFlagged     []string `json:"low_performers_flagged,omitempty"`
	EdgesRescored            int      `json:"edges_rescored"`
	ConnectionsCreated       int      `json:"connections_created"`
	OrphanConnectionsCreated int      `json:"orphan_connections_created"`
}

// RunDailyOptimization runs the full maintenance sweep: deactivate edges
// whose endpoints are gone or inactive, flag nodes with traffic but weak
// performance for content review, rescore all edge weights, grow
// connections around the top click-through performers, and connect nodes
// that have no edges at all. Individual failures are logged and the
// sweep continues.
func (e *Engine) RunDailyOptimization(ctx context.Context) (*OptimizationReport, error) {
	report := &OptimizationReport{}

	orphans, err := e.store.OrphanedEdges(ctx)
	if err != nil {
		return nil, fmt.Errorf("[Propagation][RunDailyOptimization] list orphaned edges: %w", err)
	}
	for _, edge := range orphans {
		if err := e.store.DeactivateEdge(ctx, edge.ID); err != nil {
			logger.Warn("[Propagation][RunDailyOptimization] Could not deactivate edge", "edge", edge.ID, "err", err)
			continue
		}
		report.OrphanedEdgesDeactivated++
	}

	active, err := e.store.ListNodes(ctx, store.NodeFilter{Status: graph.NodeStatusActive})
	if err != nil {
		return nil, fmt.Errorf("[Propagation][RunDailyOptimization] list active nodes: %w", err)
	}
	for _, node := range active {
		if !lowPerformer(node) {
			continue
		}
		logger.Info("[Propagation][RunDailyOptimization] Flagged low performer for review",
			"node", node.ID, "slug", node.Slug,
			"ctr", node.ClickThroughRate, "engagement", node.Engagement, "conversion", node.ConversionRate)
		report.LowPerformersFlagged = append(report.LowPerformersFlagged, node.Slug)
	}

	rescored, err := e.UpdateEdgeWeights(ctx)
	if err != nil {
		return nil, err
	}
	report.EdgesRescored = rescored

	top, err := e.store.TopNodesByClickThrough(ctx, e.tuning.TopK)
	if err != nil {
		return nil, fmt.Errorf("[Propagation][RunDailyOptimization] list top performers: %w", err)
	}
	for _, node := range top {
		created, err := e.AutoGenerateConnections(ctx, node.ID)
		if err != nil {
			logger.Warn("[Propagation][RunDailyOptimization] Connection discovery failed", "node", node.ID, "err", err)
			continue
		}
		report.ConnectionsCreated += len(created)
	}

	// Nodes with no edges at all are unreachable by propagation; try to
	// fold them into the graph.
	orphanNodes, err := e.store.OrphanedNodeIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("[Propagation][RunDailyOptimization] list orphaned nodes: %w", err)
	}
	for _, id := range orphanNodes {
		created, err := e.AutoGenerateConnections(ctx, id)
		if err != nil {
			logger.Warn("[Propagation][RunDailyOptimization] Orphan connection discovery failed", "node", id, "err", err)
			continue
		}
		report.OrphanConnectionsCreated += len(created)
	}

	logger.Info("[Propagation][RunDailyOptimization] Sweep complete",
		"orphaned_edges", report.OrphanedEdgesDeactivated,
		"flagged", len(report.LowPerformersFlagged),
		"rescored", report.EdgesRescored,
		"connections", report.ConnectionsCreated,
		"orphan_connections", report.OrphanConnectionsCreated)
	return report, nil
}

// lowPerformer reports whether a node has traffic but performs below any
// threshold, marking it for content review.
func lowPerformer(n *graph.Node) bool {
	hasTraffic := n.ClickThroughRate > 0 || n.Engagement > 0 || n.ConversionRate > 0
	return hasTraffic &&
		(n.ClickThroughRate < lowCTRThreshold ||
			n.Engagement < lowEngagementThreshold ||
			n.ConversionRate < lowConversionThreshold)
}

// RecordEdgeClick reinforces an edge after a user follows it. Conversions
// additionally bump the conversion counter.
func (e *Engine) RecordEdgeClick(ctx context.Context, edgeID int64, converted bool) error {
	var conversions int64
	if converted {
		conversions = 1
	}
	if err := e.store.RecordEdgeInteraction(ctx, edgeID, 1, conversions); err != nil {
		return fmt.Errorf("[Propagation][RecordEdgeClick] edge %d: %w", edgeID, err)
	}
	return nil
}
