package memory

import (
	"context"
	"testing"

	"github.com/peakfunnel/intentgraph/pkg/graph"
	"github.com/peakfunnel/intentgraph/pkg/store"
)

func TestCreateNode_UpsertBySlug(t *testing.T) {
	s := New()
	ctx := context.Background()

	first, err := s.CreateNode(ctx, &graph.Node{Slug: "quiz-1", Title: "Quiz", Type: graph.NodeTypeQuiz})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Status != graph.NodeStatusActive {
		t.Fatalf("expected active status, got %s", first.Status)
	}

	second, err := s.CreateNode(ctx, &graph.Node{Slug: "quiz-1", Title: "Quiz v2", Type: graph.NodeTypeQuiz})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected upsert to keep id %d, got %d", first.ID, second.ID)
	}
	if second.Title != "Quiz v2" {
		t.Fatalf("expected updated title, got %q", second.Title)
	}

	count, _ := s.CountNodes(ctx)
	if count != 1 {
		t.Fatalf("expected 1 node after repeated create, got %d", count)
	}
}

func TestUpsertEdge_Idempotent(t *testing.T) {
	s := New()
	ctx := context.Background()

	a, _ := s.CreateNode(ctx, &graph.Node{Slug: "a", Title: "A", Type: graph.NodeTypePage})
	b, _ := s.CreateNode(ctx, &graph.Node{Slug: "b", Title: "B", Type: graph.NodeTypeOffer})

	edge := &graph.Edge{FromNodeID: a.ID, ToNodeID: b.ID, Type: graph.EdgeLeadsTo, Weight: 0.5, Confidence: 0.4}
	first, err := s.UpsertEdge(ctx, edge)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	edge.Weight = 0.7
	second, err := s.UpsertEdge(ctx, edge)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected same edge id, got %d and %d", first.ID, second.ID)
	}
	if second.Weight != 0.7 {
		t.Fatalf("expected updated weight 0.7, got %v", second.Weight)
	}

	count, _ := s.CountEdges(ctx)
	if count != 1 {
		t.Fatalf("expected 1 edge after repeated upsert, got %d", count)
	}
}

func TestUpsertEdge_ReactivatesDeactivated(t *testing.T) {
	s := New()
	ctx := context.Background()

	a, _ := s.CreateNode(ctx, &graph.Node{Slug: "a", Title: "A", Type: graph.NodeTypePage})
	b, _ := s.CreateNode(ctx, &graph.Node{Slug: "b", Title: "B", Type: graph.NodeTypePage})

	created, _ := s.UpsertEdge(ctx, &graph.Edge{FromNodeID: a.ID, ToNodeID: b.ID, Type: graph.EdgeRelatedTo, Weight: 0.5})
	if err := s.DeactivateEdge(ctx, created.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	revived, _ := s.UpsertEdge(ctx, &graph.Edge{FromNodeID: a.ID, ToNodeID: b.ID, Type: graph.EdgeRelatedTo, Weight: 0.6})
	if revived.ID != created.ID {
		t.Fatalf("expected reactivation of edge %d, got new id %d", created.ID, revived.ID)
	}
	if !revived.IsActive {
		t.Fatal("expected edge to be active after upsert")
	}
}

func TestNearestNodes_SortedAndFiltered(t *testing.T) {
	s := New()
	ctx := context.Background()

	mk := func(slug string, vertical string, vec []float32) *graph.Node {
		n, err := s.CreateNode(ctx, &graph.Node{
			Slug: slug, Title: slug, Type: graph.NodeTypePage,
			VerticalID: vertical, Embedding: vec,
		})
		if err != nil {
			t.Fatalf("create %s: %v", slug, err)
		}
		return n
	}

	mk("close", "finance", []float32{1, 0, 0})
	mk("mid", "finance", []float32{0.7, 0.7, 0})
	mk("far", "travel", []float32{0, 0, 1})

	got, err := s.NearestNodes(ctx, []float32{1, 0, 0}, 10, store.NodeFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 results, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Similarity > got[i-1].Similarity {
			t.Fatalf("results not sorted descending at %d", i)
		}
	}
	if got[0].Node.Slug != "close" {
		t.Fatalf("expected close first, got %s", got[0].Node.Slug)
	}

	filtered, err := s.NearestNodes(ctx, []float32{1, 0, 0}, 10, store.NodeFilter{Verticals: []string{"travel"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(filtered) != 1 || filtered[0].Node.Slug != "far" {
		t.Fatalf("expected only travel node, got %v", filtered)
	}
}

func TestOrphanDetection(t *testing.T) {
	s := New()
	ctx := context.Background()

	a, _ := s.CreateNode(ctx, &graph.Node{Slug: "a", Title: "A", Type: graph.NodeTypePage})
	b, _ := s.CreateNode(ctx, &graph.Node{Slug: "b", Title: "B", Type: graph.NodeTypePage})
	c, _ := s.CreateNode(ctx, &graph.Node{Slug: "c", Title: "C", Type: graph.NodeTypePage})

	s.UpsertEdge(ctx, &graph.Edge{FromNodeID: a.ID, ToNodeID: b.ID, Type: graph.EdgeRelatedTo, Weight: 0.5})

	orphans, err := s.OrphanedNodeIDs(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(orphans) != 1 || orphans[0] != c.ID {
		t.Fatalf("expected only node c orphaned, got %v", orphans)
	}

	// An edge pointing at a missing node is reported for reconciliation.
	s.UpsertEdge(ctx, &graph.Edge{FromNodeID: b.ID, ToNodeID: 999, Type: graph.EdgeLeadsTo, Weight: 0.5})
	broken, err := s.OrphanedEdges(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(broken) != 1 || broken[0].ToNodeID != 999 {
		t.Fatalf("expected one orphaned edge to 999, got %v", broken)
	}
}

func TestSeedPreservesIDs(t *testing.T) {
	s := New()
	ctx := context.Background()

	s.Seed(
		[]*graph.Node{
			{ID: 10, Slug: "a", Title: "A", Type: graph.NodeTypePage, Status: graph.NodeStatusActive},
			{ID: 20, Slug: "b", Title: "B", Type: graph.NodeTypePage, Status: graph.NodeStatusActive},
		},
		[]*graph.Edge{
			{ID: 5, FromNodeID: 10, ToNodeID: 20, Type: graph.EdgeRelatedTo, Weight: 0.4, IsActive: true},
		},
	)

	node, err := s.GetNode(ctx, 10)
	if err != nil || node.Slug != "a" {
		t.Fatalf("expected seeded node 10, got %v err %v", node, err)
	}

	// New nodes continue after the highest seeded id.
	created, _ := s.CreateNode(ctx, &graph.Node{Slug: "c", Title: "C", Type: graph.NodeTypePage})
	if created.ID <= 20 {
		t.Fatalf("expected id above 20, got %d", created.ID)
	}
}
