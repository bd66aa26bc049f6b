package resilience

import "github.com/peakfunnel/intentgraph/pkg/graph"

// DefaultSeedNodes is the starter content created when initialization
// finds a clean database, so search and propagation have something to
// serve before real content arrives. IDs are placeholders referenced by
// DefaultSeedEdges and remapped during seeding.
func DefaultSeedNodes() []*graph.Node {
	return []*graph.Node{
		{
			ID:          1,
			Slug:        "getting-started",
			Title:       "Getting started",
			Description: "Introduction to the platform and how recommendations work",
			Type:        graph.NodeTypeBlogPost,
			VerticalID:  "general",
			Status:      graph.NodeStatusActive,
		},
		{
			ID:          2,
			Slug:        "discovery-quiz",
			Title:       "Discovery quiz",
			Description: "A short quiz that matches visitors with relevant content",
			Type:        graph.NodeTypeQuiz,
			VerticalID:  "general",
			Status:      graph.NodeStatusActive,
		},
		{
			ID:          3,
			Slug:        "starter-offer",
			Title:       "Starter offer",
			Description: "The default offer shown to new visitors",
			Type:        graph.NodeTypeOffer,
			VerticalID:  "general",
			Status:      graph.NodeStatusActive,
		},
	}
}

// DefaultSeedEdges connects the default seed nodes. Endpoints use the
// placeholder IDs declared in DefaultSeedNodes.
func DefaultSeedEdges() []*graph.Edge {
	return []*graph.Edge{
		{
			FromNodeID: 1,
			ToNodeID:   2,
			Type:       graph.EdgeRelatedTo,
			Weight:     0.5,
			Confidence: 0.5,
			IsActive:   true,
			CreatedBy:  graph.OriginSystem,
		},
		{
			FromNodeID: 2,
			ToNodeID:   3,
			Type:       graph.EdgeLeadsTo,
			Weight:     0.6,
			Confidence: 0.5,
			IsActive:   true,
			CreatedBy:  graph.OriginSystem,
		},
	}
}
