package propagation

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/peakfunnel/intentgraph/pkg/embed"
	"github.com/peakfunnel/intentgraph/pkg/graph"
	"github.com/peakfunnel/intentgraph/pkg/intent"
	"github.com/peakfunnel/intentgraph/pkg/semantic"
	"github.com/peakfunnel/intentgraph/pkg/store/memory"
)

func testTuning() graph.Tuning {
	tuning := graph.DefaultTuning()
	tuning.EmbedDim = 8
	return tuning
}

func newTestEngine(t *testing.T) (*Engine, *memory.Store) {
	t.Helper()
	st := memory.New()
	sem := semantic.New(st, embed.NewHashProvider(8), testTuning())
	intents := intent.New(sem, testTuning())
	return New(sem, intents, testTuning()), st
}

func unitVec(axis int) []float32 {
	v := make([]float32, 8)
	v[axis] = 1
	return v
}

func activeNode(id int64, slug string, nodeType graph.NodeType, axis int) *graph.Node {
	return &graph.Node{
		ID:         id,
		Slug:       slug,
		Title:      slug,
		Type:       nodeType,
		VerticalID: "finance",
		Status:     graph.NodeStatusActive,
		Embedding:  unitVec(axis),
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
}

func TestPropagateUserIntent_HighConfidenceClip(t *testing.T) {
	e, st := newTestEngine(t)
	ctx := context.Background()

	quiz := activeNode(1, "retirement-quiz", graph.NodeTypeQuiz, 0)
	offer := activeNode(2, "advisor-offer", graph.NodeTypeOffer, 0)
	offer.Engagement = 0.5
	offer.ConversionRate = 0.1
	st.Seed([]*graph.Node{quiz, offer}, []*graph.Edge{{
		ID: 1, FromNodeID: 1, ToNodeID: 2, Type: graph.EdgeLeadsTo,
		Weight: 0.9, Confidence: 0.9, IsActive: true,
	}})

	recs, err := e.PropagateUserIntent(ctx, graph.Identity{UserID: "u1"}, 1)
	if err != nil {
		t.Fatalf("PropagateUserIntent: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("recommendations = %d, want 1", len(recs))
	}

	// 0.9*0.9*1.0 + 0.2*0.5 + 0.3*0.1 = 0.94, boosted past 1 and clipped.
	if recs[0].Score != 1 {
		t.Errorf("score = %v, want 1.0", recs[0].Score)
	}
	if recs[0].Reasoning != "High confidence match based on your journey" {
		t.Errorf("reasoning = %q", recs[0].Reasoning)
	}
	if recs[0].Node.ID != 2 {
		t.Errorf("recommended node = %d, want 2", recs[0].Node.ID)
	}
}

func TestPropagateUserIntent_FloorAndOrdering(t *testing.T) {
	e, st := newTestEngine(t)
	ctx := context.Background()

	nodes := []*graph.Node{
		activeNode(1, "start", graph.NodeTypePage, 0),
		activeNode(2, "strong", graph.NodeTypePage, 1),
		activeNode(3, "weak", graph.NodeTypePage, 2),
		activeNode(4, "medium", graph.NodeTypePage, 3),
		activeNode(5, "borderline", graph.NodeTypePage, 4),
	}
	edges := []*graph.Edge{
		{ID: 1, FromNodeID: 1, ToNodeID: 2, Type: graph.EdgeRelatedTo, Weight: 0.9, Confidence: 0.8, IsActive: true},
		{ID: 2, FromNodeID: 1, ToNodeID: 3, Type: graph.EdgeRelatedTo, Weight: 0.2, Confidence: 0.5, IsActive: true},
		// Scores exactly at the floor are excluded: 0.5 * 0.6 = 0.3.
		{ID: 4, FromNodeID: 1, ToNodeID: 5, Type: graph.EdgeRelatedTo, Weight: 0.5, Confidence: 0.6, IsActive: true},
		{ID: 3, FromNodeID: 1, ToNodeID: 4, Type: graph.EdgeRelatedTo, Weight: 0.7, Confidence: 0.7, IsActive: true},
	}
	st.Seed(nodes, edges)

	recs, err := e.PropagateUserIntent(ctx, graph.Identity{SessionID: "s1"}, 1)
	if err != nil {
		t.Fatalf("PropagateUserIntent: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("recommendations = %d, want 2 (weak and at-floor edges excluded)", len(recs))
	}
	if recs[0].Node.ID != 2 || recs[1].Node.ID != 4 {
		t.Errorf("order = [%d %d], want [2 4]", recs[0].Node.ID, recs[1].Node.ID)
	}
	if recs[0].Score <= recs[1].Score {
		t.Errorf("scores not descending: %v, %v", recs[0].Score, recs[1].Score)
	}
}

func TestPropagateWithStrength_OverridesProfile(t *testing.T) {
	e, st := newTestEngine(t)
	ctx := context.Background()

	quiz := activeNode(1, "retirement-quiz", graph.NodeTypeQuiz, 0)
	offer := activeNode(2, "advisor-offer", graph.NodeTypeOffer, 0)
	st.Seed([]*graph.Node{quiz, offer}, []*graph.Edge{{
		ID: 1, FromNodeID: 1, ToNodeID: 2, Type: graph.EdgeRelatedTo,
		Weight: 0.8, Confidence: 0.9, IsActive: true,
	}})

	recs, err := e.PropagateWithStrength(ctx, graph.Identity{UserID: "u1"}, 1, 0.7)
	if err != nil {
		t.Fatalf("PropagateWithStrength: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("recommendations = %d, want 1", len(recs))
	}
	want := 0.8 * 0.9 * 0.7
	if math.Abs(recs[0].Score-want) > 1e-9 {
		t.Errorf("score = %v, want %v", recs[0].Score, want)
	}

	// Out-of-range strengths clamp: 2.0 behaves like 1.0.
	recs, err = e.PropagateWithStrength(ctx, graph.Identity{UserID: "u1"}, 1, 2.0)
	if err != nil {
		t.Fatalf("PropagateWithStrength: %v", err)
	}
	want = 0.8 * 0.9
	if math.Abs(recs[0].Score-want) > 1e-9 {
		t.Errorf("clamped score = %v, want %v", recs[0].Score, want)
	}
}

func TestPropagateUserIntent_SkipsInactiveTargets(t *testing.T) {
	e, st := newTestEngine(t)
	ctx := context.Background()

	start := activeNode(1, "start", graph.NodeTypePage, 0)
	archived := activeNode(2, "archived", graph.NodeTypePage, 1)
	archived.Status = graph.NodeStatusArchived
	st.Seed([]*graph.Node{start, archived}, []*graph.Edge{{
		ID: 1, FromNodeID: 1, ToNodeID: 2, Type: graph.EdgeRelatedTo,
		Weight: 0.9, Confidence: 0.9, IsActive: true,
	}})

	recs, err := e.PropagateUserIntent(ctx, graph.Identity{UserID: "u1"}, 1)
	if err != nil {
		t.Fatalf("PropagateUserIntent: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("recommendations = %d, want 0 (target archived)", len(recs))
	}
}

func TestPropagateUserIntent_Validation(t *testing.T) {
	e, st := newTestEngine(t)
	ctx := context.Background()
	st.Seed([]*graph.Node{activeNode(1, "start", graph.NodeTypePage, 0)}, nil)

	if _, err := e.PropagateUserIntent(ctx, graph.Identity{}, 1); !graph.IsValidation(err) {
		t.Errorf("empty identity: expected validation error, got %v", err)
	}
	if _, err := e.PropagateUserIntent(ctx, graph.Identity{UserID: "u1"}, 999); !graph.IsNotFound(err) {
		t.Errorf("unknown node: expected not-found error, got %v", err)
	}
}

func TestRescoreEdge(t *testing.T) {
	tuning := testTuning()
	tests := []struct {
		name           string
		edge           graph.Edge
		wantWeight     float64
		wantConfidence float64
	}{
		{
			name:           "no clicks decays weight and confidence",
			edge:           graph.Edge{Weight: 0.8, Confidence: 0.5},
			wantWeight:     0.8 * 0.95,
			wantConfidence: 0.5 * 0.98,
		},
		{
			name:           "clicks set log-scaled weight",
			edge:           graph.Edge{Weight: 0.1, Confidence: 0.5, ClickCount: 9},
			wantWeight:     math.Log10(10) / 2,
			wantConfidence: 0.5 * 0.98,
		},
		{
			name:           "conversions add bonus",
			edge:           graph.Edge{Weight: 0.1, Confidence: 0.5, ClickCount: 9, ConversionCount: 3},
			wantWeight:     math.Log10(10)/2 + 0.3*(3.0/9.0),
			wantConfidence: 0.5 * 0.98,
		},
		{
			name:           "evidence threshold floors confidence",
			edge:           graph.Edge{Weight: 0.5, Confidence: 0.4, ClickCount: 10},
			wantWeight:     math.Log10(11) / 2,
			wantConfidence: 0.8,
		},
		{
			name:           "high confidence survives evidence threshold",
			edge:           graph.Edge{Weight: 0.5, Confidence: 0.95, ClickCount: 50},
			wantWeight:     math.Log10(51) / 2,
			wantConfidence: 0.95,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			weight, confidence := rescoreEdge(&tt.edge, tuning)
			if math.Abs(weight-tt.wantWeight) > 1e-9 {
				t.Errorf("weight = %v, want %v", weight, tt.wantWeight)
			}
			if math.Abs(confidence-tt.wantConfidence) > 1e-9 {
				t.Errorf("confidence = %v, want %v", confidence, tt.wantConfidence)
			}
		})
	}
}

func TestAutoGenerateConnections(t *testing.T) {
	e, st := newTestEngine(t)
	ctx := context.Background()

	quiz := activeNode(1, "retirement-quiz", graph.NodeTypeQuiz, 0)
	offer := activeNode(2, "advisor-offer", graph.NodeTypeOffer, 0)
	unrelated := activeNode(3, "pasta-recipe", graph.NodeTypeBlogPost, 5)
	unrelated.VerticalID = "food"
	st.Seed([]*graph.Node{quiz, offer, unrelated}, nil)

	created, err := e.AutoGenerateConnections(ctx, 1)
	if err != nil {
		t.Fatalf("AutoGenerateConnections: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("created = %d edges, want 1", len(created))
	}
	edge := created[0]
	if edge.ToNodeID != 2 {
		t.Errorf("edge target = %d, want 2", edge.ToNodeID)
	}
	if edge.Type != graph.EdgeLeadsTo {
		t.Errorf("edge type = %q, want %q (quiz to offer)", edge.Type, graph.EdgeLeadsTo)
	}
	if edge.CreatedBy != graph.OriginAuto {
		t.Errorf("created_by = %q, want %q", edge.CreatedBy, graph.OriginAuto)
	}
	if edge.Weight != 1 {
		t.Errorf("weight = %v, want 1 (identical embeddings)", edge.Weight)
	}
	if math.Abs(edge.Confidence-0.8) > 1e-9 {
		t.Errorf("confidence = %v, want 0.8 (dampened similarity)", edge.Confidence)
	}

	// A second pass must not duplicate the edge.
	again, err := e.AutoGenerateConnections(ctx, 1)
	if err != nil {
		t.Fatalf("AutoGenerateConnections second pass: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("second pass created %d edges, want 0 (pair already connected)", len(again))
	}
	count, _ := st.CountEdges(ctx)
	if count != 1 {
		t.Errorf("edge count after second pass = %d, want 1", count)
	}
}

func TestAutoGenerateConnections_SkipsExistingPairs(t *testing.T) {
	e, st := newTestEngine(t)
	ctx := context.Background()

	a := activeNode(1, "a", graph.NodeTypePage, 0)
	b := activeNode(2, "b", graph.NodeTypePage, 0)
	st.Seed([]*graph.Node{a, b}, []*graph.Edge{{
		ID: 1, FromNodeID: 1, ToNodeID: 2, Type: graph.EdgeRelatedTo,
		Weight: 0.4, Confidence: 0.4, IsActive: true, CreatedBy: graph.OriginManual,
	}})

	created, err := e.AutoGenerateConnections(ctx, 1)
	if err != nil {
		t.Fatalf("AutoGenerateConnections: %v", err)
	}
	if len(created) != 0 {
		t.Errorf("created = %d edges, want 0 (pair already connected)", len(created))
	}
}

func TestRunDailyOptimization(t *testing.T) {
	e, st := newTestEngine(t)
	ctx := context.Background()

	healthy := activeNode(1, "healthy", graph.NodeTypePage, 0)
	healthy.ClickThroughRate = 0.2
	healthy.Engagement = 0.5
	healthy.ConversionRate = 0.05
	low := activeNode(2, "low-performer", graph.NodeTypePage, 1)
	low.ClickThroughRate = 0.01
	low.Engagement = 0.05
	low.ConversionRate = 0.001
	fresh := activeNode(3, "fresh", graph.NodeTypePage, 2)
	fresh.ClickThroughRate = 0
	fresh.Engagement = 0
	fresh.ConversionRate = 0

	edges := []*graph.Edge{
		// References a node that no longer exists.
		{ID: 1, FromNodeID: 1, ToNodeID: 99, Type: graph.EdgeRelatedTo, Weight: 0.5, Confidence: 0.5, IsActive: true},
		{ID: 2, FromNodeID: 1, ToNodeID: 2, Type: graph.EdgeRelatedTo, Weight: 0.5, Confidence: 0.5, IsActive: true},
	}
	st.Seed([]*graph.Node{healthy, low, fresh}, edges)

	report, err := e.RunDailyOptimization(ctx)
	if err != nil {
		t.Fatalf("RunDailyOptimization: %v", err)
	}

	if report.OrphanedEdgesDeactivated != 1 {
		t.Errorf("orphaned edges deactivated = %d, want 1", report.OrphanedEdgesDeactivated)
	}
	if len(report.LowPerformersFlagged) != 1 || report.LowPerformersFlagged[0] != "low-performer" {
		t.Errorf("flagged = %v, want [low-performer]", report.LowPerformersFlagged)
	}
	if report.EdgesRescored == 0 {
		t.Error("expected at least one edge rescored")
	}

	// Flagging is for review, not removal: the node stays active.
	flagged, err := st.GetNode(ctx, 2)
	if err != nil {
		t.Fatalf("GetNode(2): %v", err)
	}
	if flagged.Status != graph.NodeStatusActive {
		t.Errorf("flagged node status = %q, want active", flagged.Status)
	}
	untouched, err := st.GetNode(ctx, 3)
	if err != nil {
		t.Fatalf("GetNode(3): %v", err)
	}
	if untouched.Status != graph.NodeStatusActive {
		t.Errorf("fresh node status = %q, want active (no traffic yet)", untouched.Status)
	}
}

func TestRunDailyOptimization_ConnectsOrphanedNodes(t *testing.T) {
	e, st := newTestEngine(t)
	ctx := context.Background()

	// Five popular connected nodes on distinct axes, a connected peer on
	// axis 5, and an orphan sharing the peer's embedding.
	nodes := make([]*graph.Node, 0, 7)
	for i := int64(1); i <= 5; i++ {
		n := activeNode(i, fmt.Sprintf("popular-%d", i), graph.NodeTypePage, int(i-1))
		n.ClickThroughRate = 0.6 - float64(i)*0.1
		n.Engagement = 0.5
		n.ConversionRate = 0.05
		nodes = append(nodes, n)
	}
	peer := activeNode(6, "peer", graph.NodeTypePage, 5)
	orphan := activeNode(7, "orphan", graph.NodeTypePage, 5)
	nodes = append(nodes, peer, orphan)

	edges := []*graph.Edge{
		{ID: 1, FromNodeID: 1, ToNodeID: 2, Type: graph.EdgeRelatedTo, Weight: 0.5, Confidence: 0.5, IsActive: true},
		{ID: 2, FromNodeID: 2, ToNodeID: 3, Type: graph.EdgeRelatedTo, Weight: 0.5, Confidence: 0.5, IsActive: true},
		{ID: 3, FromNodeID: 3, ToNodeID: 4, Type: graph.EdgeRelatedTo, Weight: 0.5, Confidence: 0.5, IsActive: true},
		{ID: 4, FromNodeID: 4, ToNodeID: 5, Type: graph.EdgeRelatedTo, Weight: 0.5, Confidence: 0.5, IsActive: true},
		{ID: 5, FromNodeID: 1, ToNodeID: 6, Type: graph.EdgeRelatedTo, Weight: 0.5, Confidence: 0.5, IsActive: true},
	}
	st.Seed(nodes, edges)

	report, err := e.RunDailyOptimization(ctx)
	if err != nil {
		t.Fatalf("RunDailyOptimization: %v", err)
	}
	if report.OrphanConnectionsCreated != 1 {
		t.Errorf("orphan connections created = %d, want 1", report.OrphanConnectionsCreated)
	}

	out, err := st.OutgoingEdges(ctx, 7, true)
	if err != nil {
		t.Fatalf("OutgoingEdges(7): %v", err)
	}
	if len(out) != 1 || out[0].ToNodeID != 6 {
		t.Fatalf("orphan edges = %+v, want one edge to the identical peer", out)
	}
}

func TestRecordEdgeClick(t *testing.T) {
	e, st := newTestEngine(t)
	ctx := context.Background()

	st.Seed(
		[]*graph.Node{activeNode(1, "a", graph.NodeTypePage, 0), activeNode(2, "b", graph.NodeTypePage, 1)},
		[]*graph.Edge{{ID: 1, FromNodeID: 1, ToNodeID: 2, Type: graph.EdgeRelatedTo, Weight: 0.5, Confidence: 0.5, IsActive: true}},
	)

	if err := e.RecordEdgeClick(ctx, 1, false); err != nil {
		t.Fatalf("RecordEdgeClick: %v", err)
	}
	if err := e.RecordEdgeClick(ctx, 1, true); err != nil {
		t.Fatalf("RecordEdgeClick converted: %v", err)
	}

	edges, err := st.OutgoingEdges(ctx, 1, true)
	if err != nil {
		t.Fatalf("OutgoingEdges: %v", err)
	}
	if edges[0].ClickCount != 2 {
		t.Errorf("click count = %d, want 2", edges[0].ClickCount)
	}
	if edges[0].ConversionCount != 1 {
		t.Errorf("conversion count = %d, want 1", edges[0].ConversionCount)
	}
}
