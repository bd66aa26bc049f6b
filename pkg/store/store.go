// Package store defines the persistence contract for the semantic intent
// graph. The pgx subpackage implements it against PostgreSQL with
// pgvector; the memory subpackage provides the in-memory implementation
// used for fallback mode and tests.
package store

import (
	"context"

	"github.com/peakfunnel/intentgraph/pkg/graph"
)

// NodeFilter narrows node queries. Zero values match everything.
type NodeFilter struct {
	Types     []graph.NodeType
	Verticals []string
	Status    graph.NodeStatus
	Limit     int
}

// Matches reports whether node passes the filter. Helper for in-memory
// scans; SQL implementations express the same conditions in the query.
func (f NodeFilter) Matches(node *graph.Node) bool {
	if node == nil {
		return false
	}
	if f.Status != "" && node.Status != f.Status {
		return false
	}
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if node.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.Verticals) > 0 {
		found := false
		for _, v := range f.Verticals {
			if node.VerticalID == v {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// NodeSimilarity pairs a node with its similarity to a query vector.
type NodeSimilarity struct {
	Node       *graph.Node
	Similarity float64
}

// GraphStore is the CRUD and search surface over nodes, edges and the
// cluster snapshot.
//
// All writes are idempotent upserts keyed by natural uniqueness
// constraints (node slug, edge (from, to, type) triple) so concurrent
// duplicate attempts converge. Implementations wrap connectivity failures
// in graph.ErrStoreUnavailable and unknown ids in graph.NotFoundError.
type GraphStore interface {
	// CreateNode upserts a node by slug and returns the stored row.
	CreateNode(ctx context.Context, node *graph.Node) (*graph.Node, error)
	GetNode(ctx context.Context, id int64) (*graph.Node, error)
	GetNodeBySlug(ctx context.Context, slug string) (*graph.Node, error)
	ListNodes(ctx context.Context, filter NodeFilter) ([]*graph.Node, error)
	UpdateNodeEmbedding(ctx context.Context, id int64, embedding []float32) error
	UpdateNodeStatus(ctx context.Context, id int64, status graph.NodeStatus) error

	// NodesMissingEmbedding lists active nodes whose vector has not been
	// computed yet, bounded by limit.
	NodesMissingEmbedding(ctx context.Context, limit int) ([]*graph.Node, error)
	// OrphanedNodeIDs lists nodes with no edges in either direction.
	OrphanedNodeIDs(ctx context.Context) ([]int64, error)
	// TopNodesByClickThrough lists active nodes ranked by click-through
	// rate, bounded by limit. Used for backup snapshots and optimization.
	TopNodesByClickThrough(ctx context.Context, limit int) ([]*graph.Node, error)

	// UpsertEdge inserts an edge or, when the (from, to, type) triple
	// already exists, updates the existing row in place (reactivating it
	// if needed) and returns the stored row.
	UpsertEdge(ctx context.Context, edge *graph.Edge) (*graph.Edge, error)
	OutgoingEdges(ctx context.Context, fromNodeID int64, activeOnly bool) ([]*graph.Edge, error)
	ListActiveEdges(ctx context.Context, limit int) ([]*graph.Edge, error)
	UpdateEdgeScores(ctx context.Context, id int64, weight, confidence float64) error
	RecordEdgeInteraction(ctx context.Context, id int64, clicks, conversions int64) error
	DeactivateEdge(ctx context.Context, id int64) error
	// OrphanedEdges lists active edges referencing nodes that no longer
	// exist; they are scheduled for deactivation, never deleted.
	OrphanedEdges(ctx context.Context) ([]*graph.Edge, error)

	// NearestNodes returns up to topK active nodes ranked by cosine
	// similarity to the query vector, filtered by filter.
	NearestNodes(ctx context.Context, embedding []float32, topK int, filter NodeFilter) ([]NodeSimilarity, error)

	// SaveClusters / LoadClusters persist the intent-cluster snapshot.
	SaveClusters(ctx context.Context, clusters []*graph.IntentCluster) error
	LoadClusters(ctx context.Context) ([]*graph.IntentCluster, error)

	CountNodes(ctx context.Context) (int64, error)
	CountEdges(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}
