package intent

import (
	"context"
	"testing"

	"github.com/peakfunnel/intentgraph/pkg/embed"
	"github.com/peakfunnel/intentgraph/pkg/graph"
	"github.com/peakfunnel/intentgraph/pkg/semantic"
	"github.com/peakfunnel/intentgraph/pkg/store/memory"
)

func testTuning() graph.Tuning {
	tuning := graph.DefaultTuning()
	tuning.EmbedDim = 64
	return tuning
}

func newTestEngine(t *testing.T) (*Engine, *memory.Store) {
	t.Helper()
	st := memory.New()
	sem := semantic.New(st, embed.NewHashProvider(64), testTuning())
	return New(sem, testTuning()), st
}

func identity(user string) graph.Identity {
	return graph.Identity{UserID: user}
}

func TestClassifyIntent_ReusesClusterForSameSignal(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	vec := e.semantic.EmbedQuery(ctx, "best travel credit card rewards")
	first := e.ClassifyIntent(ctx, vec, "best travel credit card rewards")
	second := e.ClassifyIntent(ctx, vec, "best travel credit card rewards")
	if first == "" {
		t.Fatal("expected a cluster id")
	}
	if first != second {
		t.Errorf("identical vector split clusters: %q vs %q", first, second)
	}

	other := e.semantic.EmbedQuery(ctx, "homemade pasta carbonara recipe")
	third := e.ClassifyIntent(ctx, other, "homemade pasta carbonara recipe")
	if third == first {
		t.Error("unrelated vector joined the existing cluster")
	}
}

func TestAnalyzeUserIntent_Validation(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		params AnalyzeParams
	}{
		{"missing identity", AnalyzeParams{Content: "travel cards"}},
		{"missing content", AnalyzeParams{Identity: identity("u1")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.AnalyzeUserIntent(ctx, tt.params)
			if !graph.IsValidation(err) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestAnalyzeUserIntent_BuildsProfile(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	contents := []string{
		"compare travel credit cards",
		"airline miles signup bonus",
		"compare travel credit cards",
		"best hotel rewards program",
	}
	var last *Analysis
	for _, c := range contents {
		analysis, err := e.AnalyzeUserIntent(ctx, AnalyzeParams{Identity: identity("u1"), Content: c})
		if err != nil {
			t.Fatalf("AnalyzeUserIntent(%q): %v", c, err)
		}
		last = analysis
	}

	if last.Identity != "user:u1" {
		t.Errorf("identity key = %q", last.Identity)
	}
	if last.Intent == "" {
		t.Error("expected a current intent")
	}
	if last.Strength != 4 {
		t.Errorf("strength = %v, want 4", last.Strength)
	}
	if last.Archetype != graph.DefaultArchetype {
		t.Errorf("archetype = %q, want %q", last.Archetype, graph.DefaultArchetype)
	}

	profile := e.Profile("user:u1")
	if profile == nil {
		t.Fatal("expected a stored profile")
	}
	if len(profile.History) != 4 {
		t.Errorf("history length = %d, want 4", len(profile.History))
	}
	if len(profile.IntentVector) != 64 {
		t.Errorf("intent vector dim = %d, want 64", len(profile.IntentVector))
	}
	if profile.ClusterConfidence[last.Intent] <= 0 {
		t.Errorf("confidence for current intent = %v, want > 0", profile.ClusterConfidence[last.Intent])
	}
}

func TestAnalyzeUserIntent_HistoryCap(t *testing.T) {
	st := memory.New()
	tuning := testTuning()
	tuning.HistoryLimit = 3
	sem := semantic.New(st, embed.NewHashProvider(64), tuning)
	e := New(sem, tuning)
	ctx := context.Background()

	contents := []string{"alpha topic", "beta topic", "gamma topic", "delta topic", "epsilon topic"}
	for _, c := range contents {
		if _, err := e.AnalyzeUserIntent(ctx, AnalyzeParams{Identity: identity("u1"), Content: c}); err != nil {
			t.Fatalf("AnalyzeUserIntent: %v", err)
		}
	}

	profile := e.Profile("user:u1")
	if len(profile.History) != 3 {
		t.Fatalf("history length = %d, want 3", len(profile.History))
	}
	// Oldest entries drop first.
	lastIntent := profile.History[len(profile.History)-1].Intent
	if lastIntent != profile.CurrentIntent {
		t.Errorf("newest history intent %q != current intent %q", lastIntent, profile.CurrentIntent)
	}
}

func TestPredictNextIntents(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	// Two identities walk research -> offer, one walks research -> support.
	walk := func(user string, contents ...string) {
		for _, c := range contents {
			if _, err := e.AnalyzeUserIntent(ctx, AnalyzeParams{Identity: identity(user), Content: c}); err != nil {
				t.Fatalf("AnalyzeUserIntent: %v", err)
			}
		}
	}
	walk("u1", "compare insurance quotes online", "cheap car insurance offer")
	walk("u2", "compare insurance quotes online", "cheap car insurance offer")
	walk("u3", "compare insurance quotes online", "cancel my insurance policy help")

	profile := e.Profile("user:u3")
	research := profile.History[0].Intent

	predictions := e.PredictNextIntents([]graph.Interaction{
		{Intent: "earlier"},
		{Intent: research},
	})
	if len(predictions) != 2 {
		t.Fatalf("predictions = %d, want 2", len(predictions))
	}
	if predictions[0].Probability <= predictions[1].Probability {
		t.Errorf("predictions not sorted: %+v", predictions)
	}
	want := 2.0 / 3.0
	if diff := predictions[0].Probability - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("top probability = %v, want %v", predictions[0].Probability, want)
	}
}

func TestPredictNextIntents_ShortHistory(t *testing.T) {
	e, _ := newTestEngine(t)
	if got := e.PredictNextIntents([]graph.Interaction{{Intent: "only-one"}}); got != nil {
		t.Errorf("expected no predictions for single-entry history, got %+v", got)
	}
	if got := e.PredictNextIntents(nil); got != nil {
		t.Errorf("expected no predictions for empty history, got %+v", got)
	}
}

func TestTrackJourney_SelfTransition(t *testing.T) {
	e, _ := newTestEngine(t)

	history := []graph.Interaction{{Intent: "research"}, {Intent: "research"}}
	e.journeys.track(history)
	e.journeys.track(append(history, graph.Interaction{Intent: "research"}))

	path := e.journeys.paths[journeyKey("research", "research")]
	if path == nil {
		t.Fatal("expected a self-transition path to be recorded")
	}
	if path.Frequency != 2 {
		t.Errorf("self-transition frequency = %d, want 2", path.Frequency)
	}
}

func TestUpdateJourneyMetrics(t *testing.T) {
	e, _ := newTestEngine(t)

	e.UpdateJourneyMetrics("research", "purchase", true, 4000)
	path := e.journeys.paths[journeyKey("research", "purchase")]
	if path.ConversionRate != 1 {
		t.Errorf("conversion rate after one conversion = %v, want 1", path.ConversionRate)
	}
	if path.AverageTimeMs != 4000 {
		t.Errorf("average time = %v, want 4000", path.AverageTimeMs)
	}

	e.UpdateJourneyMetrics("research", "purchase", false, 2000)
	if path.AverageTimeMs >= 4000 || path.AverageTimeMs <= 2000 {
		t.Errorf("average time = %v, want blended between 2000 and 4000", path.AverageTimeMs)
	}
}

func TestClusterSnapshotRoundTrip(t *testing.T) {
	e, st := newTestEngine(t)
	ctx := context.Background()

	vec := e.semantic.EmbedQuery(ctx, "mortgage refinance rates")
	clusterID := e.ClassifyIntent(ctx, vec, "mortgage refinance rates")
	if err := e.SaveSnapshot(ctx); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	sem := semantic.New(st, embed.NewHashProvider(64), testTuning())
	restored := New(sem, testTuning())
	if err := restored.LoadSnapshot(ctx); err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}

	if got := restored.ClassifyIntent(ctx, vec, "mortgage refinance rates"); got != clusterID {
		t.Errorf("restored engine classified into %q, want %q", got, clusterID)
	}
}

func TestRecomputeCentroids(t *testing.T) {
	e, st := newTestEngine(t)
	ctx := context.Background()

	node, err := e.semantic.CreateNode(ctx, &graph.Node{
		Slug:       "travel-cards-guide",
		Title:      "Travel credit card guide",
		Type:       graph.NodeTypeBlogPost,
		VerticalID: "finance",
		Status:     graph.NodeStatusActive,
	})
	if err != nil {
		t.Fatalf("CreateNode: %v", err)
	}

	if _, err := e.AnalyzeUserIntent(ctx, AnalyzeParams{
		Identity: identity("u1"),
		Content:  "travel credit card comparison",
		Node:     node,
	}); err != nil {
		t.Fatalf("AnalyzeUserIntent: %v", err)
	}

	if err := e.RecomputeCentroids(ctx); err != nil {
		t.Fatalf("RecomputeCentroids: %v", err)
	}

	clusters, err := st.LoadClusters(ctx)
	if err != nil {
		t.Fatalf("LoadClusters: %v", err)
	}
	if len(clusters) == 0 {
		t.Fatal("expected a persisted cluster")
	}
	found := false
	for _, c := range clusters {
		for _, slug := range c.Nodes {
			if slug == node.Slug {
				found = true
			}
		}
	}
	if !found {
		t.Errorf("node %q not a member of any persisted cluster", node.Slug)
	}
}

func TestDeriveArchetype(t *testing.T) {
	quiz := graph.Interaction{NodeType: graph.NodeTypeQuiz}
	offer := graph.Interaction{NodeType: graph.NodeTypeOffer}
	blog := graph.Interaction{NodeType: graph.NodeTypeBlogPost}
	page := graph.Interaction{NodeType: graph.NodeTypePage}

	tests := []struct {
		name    string
		history []graph.Interaction
		want    string
	}{
		{"empty", nil, graph.DefaultArchetype},
		{"quiz heavy", []graph.Interaction{quiz, quiz, quiz, page}, "researcher"},
		{"offer heavy", []graph.Interaction{offer, offer, offer}, "buyer"},
		{"blog heavy", []graph.Interaction{blog, blog, blog, page}, "reader"},
		{"mixed", []graph.Interaction{quiz, offer, blog, page}, graph.DefaultArchetype},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := deriveArchetype(tt.history); got != tt.want {
				t.Errorf("deriveArchetype() = %q, want %q", got, tt.want)
			}
		})
	}
}
