// Package semantic implements the semantic graph engine: node and edge
// lifecycle, embedding-backed search, similar-node lookup and shortest
// path traversal.
package semantic

import (
	"context"
	"errors"

	"github.com/peakfunnel/intentgraph/pkg/embed"
	"github.com/peakfunnel/intentgraph/pkg/graph"
	"github.com/peakfunnel/intentgraph/pkg/logger"
	"github.com/peakfunnel/intentgraph/pkg/store"
)

// ReembedScheduler enqueues a node for background re-embedding. The queue
// publisher implements it; a nil scheduler drops requests.
type ReembedScheduler interface {
	ScheduleReembed(ctx context.Context, nodeID int64) error
}

// Engine owns node/edge lifecycle and semantic queries against one
// GraphStore.
type Engine struct {
	store    store.GraphStore
	provider embed.Provider
	fallback embed.Provider
	tuning   graph.Tuning
	reembed  ReembedScheduler
}

// Option configures an Engine.
type Option func(*Engine)

// WithReembedScheduler wires the background re-embedding queue.
func WithReembedScheduler(s ReembedScheduler) Option {
	return func(e *Engine) {
		e.reembed = s
	}
}

// WithFallbackProvider overrides the local fallback embedding provider.
func WithFallbackProvider(p embed.Provider) Option {
	return func(e *Engine) {
		e.fallback = p
	}
}

// New creates an Engine over the given store and embedding provider.
func New(st store.GraphStore, provider embed.Provider, tuning graph.Tuning, opts ...Option) *Engine {
	e := &Engine{
		store:    st,
		provider: provider,
		fallback: embed.NewHashProvider(tuning.EmbedDim),
		tuning:   tuning,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Store exposes the engine's backing store to sibling engines.
func (e *Engine) Store() store.GraphStore {
	return e.store
}

// EmbedQuery embeds free text for search and classification. When the
// primary provider is unavailable it silently degrades to the
// deterministic local provider so queries keep working.
func (e *Engine) EmbedQuery(ctx context.Context, text string) []float32 {
	vec, err := e.provider.Embed(ctx, text)
	if err == nil {
		return vec
	}
	logger.Warn("[Semantic][Embed] Provider unavailable, using local fallback", "err", err)
	vec, _ = e.fallback.Embed(ctx, text)
	return vec
}

// CreateNode validates, embeds and persists a node. When the embedding
// provider is down the node is still created with a null embedding and
// scheduled for re-embedding; creation never fails on provider outage.
func (e *Engine) CreateNode(ctx context.Context, node *graph.Node) (*graph.Node, error) {
	if node == nil {
		return nil, graph.Validationf("node", "missing body")
	}
	if node.Slug == "" {
		return nil, graph.Validationf("slug", "required")
	}
	if node.Title == "" {
		return nil, graph.Validationf("title", "required")
	}
	if node.Type == "" {
		return nil, graph.Validationf("node_type", "required")
	}

	embeddingMissing := false
	if len(node.Embedding) == 0 {
		vec, err := e.provider.Embed(ctx, node.EmbeddingText())
		switch {
		case err == nil:
			node.Embedding = vec
		case errors.Is(err, graph.ErrEmbeddingUnavailable):
			embeddingMissing = true
			logger.Warn("[Semantic][CreateNode] Embedding unavailable, creating without vector",
				"slug", node.Slug, "err", err)
		default:
			embeddingMissing = true
			logger.Error("[Semantic][CreateNode] Embedding failed", "slug", node.Slug, "err", err)
		}
	}

	stored, err := e.store.CreateNode(ctx, node)
	if err != nil {
		return nil, err
	}

	if embeddingMissing && e.reembed != nil {
		if err := e.reembed.ScheduleReembed(ctx, stored.ID); err != nil {
			logger.Warn("[Semantic][CreateNode] Failed to schedule re-embedding",
				"node_id", stored.ID, "err", err)
		}
	}
	return stored, nil
}

// CreateEdge validates endpoints and upserts the edge. An omitted edge
// type is inferred from the endpoint node types. Repeated creates with
// the same (from, to, type) triple converge on one row.
func (e *Engine) CreateEdge(ctx context.Context, edge *graph.Edge) (*graph.Edge, error) {
	if edge == nil {
		return nil, graph.Validationf("edge", "missing body")
	}
	if edge.FromNodeID == 0 {
		return nil, graph.Validationf("from_node_id", "required")
	}
	if edge.ToNodeID == 0 {
		return nil, graph.Validationf("to_node_id", "required")
	}
	from, err := e.store.GetNode(ctx, edge.FromNodeID)
	if err != nil {
		return nil, err
	}
	to, err := e.store.GetNode(ctx, edge.ToNodeID)
	if err != nil {
		return nil, err
	}
	if edge.Type == "" {
		edge.Type = graph.InferEdgeType(from, to)
	}

	return e.store.UpsertEdge(ctx, edge)
}

// SearchOptions narrows a semantic search.
type SearchOptions struct {
	NodeTypes []graph.NodeType
	Verticals []string
	TopK      int
	Threshold float64
}

// SemanticSearch embeds the query and returns active nodes with
// similarity >= threshold, sorted descending and truncated to TopK.
func (e *Engine) SemanticSearch(ctx context.Context, query string, opts SearchOptions) ([]store.NodeSimilarity, error) {
	if query == "" {
		return nil, graph.Validationf("query", "required")
	}
	if opts.TopK <= 0 {
		return nil, graph.Validationf("top_k", "must be positive")
	}

	vec := e.EmbedQuery(ctx, query)
	return e.searchByVector(ctx, vec, opts)
}

// FindSimilarNodes runs the same similarity search anchored on an
// existing node's vector. The anchor itself is excluded from results. A
// node without an embedding yields no results and is scheduled for
// re-embedding.
func (e *Engine) FindSimilarNodes(ctx context.Context, nodeID int64, topK int) ([]store.NodeSimilarity, error) {
	if topK <= 0 {
		return nil, graph.Validationf("top_k", "must be positive")
	}

	node, err := e.store.GetNode(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	if len(node.Embedding) == 0 {
		logger.Warn("[Semantic][FindSimilarNodes] Node has no embedding", "node_id", nodeID)
		if e.reembed != nil {
			_ = e.reembed.ScheduleReembed(ctx, nodeID)
		}
		return []store.NodeSimilarity{}, nil
	}

	results, err := e.searchByVector(ctx, node.Embedding, SearchOptions{TopK: topK + 1})
	if err != nil {
		return nil, err
	}
	out := make([]store.NodeSimilarity, 0, topK)
	for _, r := range results {
		if r.Node.ID == nodeID {
			continue
		}
		out = append(out, r)
		if len(out) == topK {
			break
		}
	}
	return out, nil
}

func (e *Engine) searchByVector(ctx context.Context, vec []float32, opts SearchOptions) ([]store.NodeSimilarity, error) {
	results, err := e.store.NearestNodes(ctx, vec, opts.TopK, store.NodeFilter{
		Types:     opts.NodeTypes,
		Verticals: opts.Verticals,
	})
	if err != nil {
		return nil, err
	}

	out := make([]store.NodeSimilarity, 0, len(results))
	for _, r := range results {
		if r.Similarity < opts.Threshold {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// FindShortestPath runs breadth-first search over active edges between
// two active nodes, ignoring weights. It returns the node-id sequence
// including both endpoints, or an empty sequence when toID is not
// reachable within maxDepth hops.
func (e *Engine) FindShortestPath(ctx context.Context, fromID, toID int64, maxDepth int) ([]int64, error) {
	if maxDepth <= 0 {
		return nil, graph.Validationf("max_depth", "must be positive")
	}

	from, err := e.store.GetNode(ctx, fromID)
	if err != nil {
		return nil, err
	}
	if _, err := e.store.GetNode(ctx, toID); err != nil {
		return nil, err
	}
	if !from.Active() {
		return []int64{}, nil
	}
	if fromID == toID {
		return []int64{fromID}, nil
	}

	type frame struct {
		id    int64
		depth int
	}
	parent := map[int64]int64{fromID: fromID}
	queue := []frame{{id: fromID, depth: 0}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current.depth >= maxDepth {
			continue
		}

		edges, err := e.store.OutgoingEdges(ctx, current.id, true)
		if err != nil {
			return nil, err
		}
		for _, edge := range edges {
			if _, seen := parent[edge.ToNodeID]; seen {
				continue
			}
			target, err := e.store.GetNode(ctx, edge.ToNodeID)
			if err != nil {
				if graph.IsNotFound(err) {
					// Orphaned edge; reconciliation handles it.
					continue
				}
				return nil, err
			}
			if !target.Active() {
				continue
			}
			parent[edge.ToNodeID] = current.id
			if edge.ToNodeID == toID {
				return rebuildPath(parent, fromID, toID), nil
			}
			queue = append(queue, frame{id: edge.ToNodeID, depth: current.depth + 1})
		}
	}
	return []int64{}, nil
}

func rebuildPath(parent map[int64]int64, fromID, toID int64) []int64 {
	path := []int64{toID}
	for current := toID; current != fromID; {
		current = parent[current]
		path = append(path, current)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
