// Package memory implements store.GraphStore as process-local maps. It
// backs fallback mode when the primary store is unhealthy and serves as
// the store double in tests. Similarity search is a brute-force scan,
// which is the reduced-fidelity behavior fallback mode accepts.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/peakfunnel/intentgraph/pkg/graph"
	"github.com/peakfunnel/intentgraph/pkg/store"
	"github.com/peakfunnel/intentgraph/pkg/vectormath"
)

// Store is an in-memory GraphStore. Safe for concurrent use.
type Store struct {
	mu sync.RWMutex

	nodes      map[int64]*graph.Node
	nodeBySlug map[string]int64
	edges      map[int64]*graph.Edge
	edgeByKey  map[string]int64
	clusters   []*graph.IntentCluster

	nextNodeID int64
	nextEdgeID int64
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		nodes:      make(map[int64]*graph.Node),
		nodeBySlug: make(map[string]int64),
		edges:      make(map[int64]*graph.Edge),
		edgeByKey:  make(map[string]int64),
	}
}

func edgeKey(from, to int64, edgeType graph.EdgeType) string {
	return fmt.Sprintf("%d>%d:%s", from, to, edgeType)
}

func cloneNode(n *graph.Node) *graph.Node {
	if n == nil {
		return nil
	}
	out := *n
	if n.Embedding != nil {
		out.Embedding = append([]float32(nil), n.Embedding...)
	}
	if n.IntentProfileTags != nil {
		out.IntentProfileTags = append([]string(nil), n.IntentProfileTags...)
	}
	return &out
}

func cloneEdge(e *graph.Edge) *graph.Edge {
	if e == nil {
		return nil
	}
	out := *e
	return &out
}

// Seed replaces the store contents with the given nodes and edges,
// keeping their ids. Used when restoring from a backup snapshot.
func (s *Store) Seed(nodes []*graph.Node, edges []*graph.Edge) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nodes = make(map[int64]*graph.Node, len(nodes))
	s.nodeBySlug = make(map[string]int64, len(nodes))
	s.edges = make(map[int64]*graph.Edge, len(edges))
	s.edgeByKey = make(map[string]int64, len(edges))
	s.nextNodeID = 0
	s.nextEdgeID = 0

	for _, n := range nodes {
		c := cloneNode(n)
		if c.ID == 0 {
			s.nextNodeID++
			c.ID = s.nextNodeID
		} else if c.ID > s.nextNodeID {
			s.nextNodeID = c.ID
		}
		s.nodes[c.ID] = c
		s.nodeBySlug[c.Slug] = c.ID
	}
	for _, e := range edges {
		c := cloneEdge(e)
		if c.ID == 0 {
			s.nextEdgeID++
			c.ID = s.nextEdgeID
		} else if c.ID > s.nextEdgeID {
			s.nextEdgeID = c.ID
		}
		s.edges[c.ID] = c
		s.edgeByKey[edgeKey(c.FromNodeID, c.ToNodeID, c.Type)] = c.ID
	}
}

// CreateNode upserts by slug. Existing rows keep their id and creation
// time; title, description, vertical and embedding are updated.
func (s *Store) CreateNode(_ context.Context, node *graph.Node) (*graph.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if id, ok := s.nodeBySlug[node.Slug]; ok {
		existing := s.nodes[id]
		existing.Title = node.Title
		existing.Description = node.Description
		existing.VerticalID = node.VerticalID
		if node.Embedding != nil {
			existing.Embedding = append([]float32(nil), node.Embedding...)
		}
		existing.UpdatedAt = now
		return cloneNode(existing), nil
	}

	c := cloneNode(node)
	s.nextNodeID++
	c.ID = s.nextNodeID
	if c.Status == "" {
		c.Status = graph.NodeStatusActive
	}
	c.CreatedAt = now
	c.UpdatedAt = now
	s.nodes[c.ID] = c
	s.nodeBySlug[c.Slug] = c.ID
	return cloneNode(c), nil
}

func (s *Store) GetNode(_ context.Context, id int64) (*graph.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, ok := s.nodes[id]
	if !ok {
		return nil, graph.NotFound("node", id)
	}
	return cloneNode(node), nil
}

func (s *Store) GetNodeBySlug(_ context.Context, slug string) (*graph.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.nodeBySlug[slug]
	if !ok {
		return nil, graph.NotFound("node", slug)
	}
	return cloneNode(s.nodes[id]), nil
}

func (s *Store) ListNodes(_ context.Context, filter store.NodeFilter) ([]*graph.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*graph.Node, 0)
	for _, node := range s.nodes {
		if !filter.Matches(node) {
			continue
		}
		out = append(out, cloneNode(node))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *Store) UpdateNodeEmbedding(_ context.Context, id int64, embedding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[id]
	if !ok {
		return graph.NotFound("node", id)
	}
	node.Embedding = append([]float32(nil), embedding...)
	node.UpdatedAt = time.Now()
	return nil
}

func (s *Store) UpdateNodeStatus(_ context.Context, id int64, status graph.NodeStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[id]
	if !ok {
		return graph.NotFound("node", id)
	}
	node.Status = status
	node.UpdatedAt = time.Now()
	return nil
}

func (s *Store) NodesMissingEmbedding(_ context.Context, limit int) ([]*graph.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*graph.Node, 0)
	for _, node := range s.nodes {
		if node.Status == graph.NodeStatusActive && len(node.Embedding) == 0 {
			out = append(out, cloneNode(node))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) OrphanedNodeIDs(_ context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	connected := make(map[int64]struct{}, len(s.edges)*2)
	for _, e := range s.edges {
		connected[e.FromNodeID] = struct{}{}
		connected[e.ToNodeID] = struct{}{}
	}

	out := make([]int64, 0)
	for id, node := range s.nodes {
		if node.Status != graph.NodeStatusActive {
			continue
		}
		if _, ok := connected[id]; !ok {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *Store) TopNodesByClickThrough(_ context.Context, limit int) ([]*graph.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*graph.Node, 0)
	for _, node := range s.nodes {
		if node.Status == graph.NodeStatusActive {
			out = append(out, cloneNode(node))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ClickThroughRate != out[j].ClickThroughRate {
			return out[i].ClickThroughRate > out[j].ClickThroughRate
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// UpsertEdge enforces the (from, to, type) uniqueness invariant: repeated
// creates update the existing row instead of duplicating it.
func (s *Store) UpsertEdge(_ context.Context, edge *graph.Edge) (*graph.Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	key := edgeKey(edge.FromNodeID, edge.ToNodeID, edge.Type)
	if id, ok := s.edgeByKey[key]; ok {
		existing := s.edges[id]
		existing.Weight = edge.Weight
		existing.Confidence = edge.Confidence
		existing.IsActive = true
		existing.UpdatedAt = now
		return cloneEdge(existing), nil
	}

	c := cloneEdge(edge)
	s.nextEdgeID++
	c.ID = s.nextEdgeID
	c.IsActive = true
	if c.CreatedBy == "" {
		c.CreatedBy = graph.OriginSystem
	}
	c.CreatedAt = now
	c.UpdatedAt = now
	s.edges[c.ID] = c
	s.edgeByKey[key] = c.ID
	return cloneEdge(c), nil
}

func (s *Store) OutgoingEdges(_ context.Context, fromNodeID int64, activeOnly bool) ([]*graph.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*graph.Edge, 0)
	for _, e := range s.edges {
		if e.FromNodeID != fromNodeID {
			continue
		}
		if activeOnly && !e.IsActive {
			continue
		}
		out = append(out, cloneEdge(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListActiveEdges(_ context.Context, limit int) ([]*graph.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*graph.Edge, 0)
	for _, e := range s.edges {
		if e.IsActive {
			out = append(out, cloneEdge(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) UpdateEdgeScores(_ context.Context, id int64, weight, confidence float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	edge, ok := s.edges[id]
	if !ok {
		return graph.NotFound("edge", id)
	}
	edge.Weight = weight
	edge.Confidence = confidence
	edge.UpdatedAt = time.Now()
	return nil
}

func (s *Store) RecordEdgeInteraction(_ context.Context, id int64, clicks, conversions int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	edge, ok := s.edges[id]
	if !ok {
		return graph.NotFound("edge", id)
	}
	edge.ClickCount += clicks
	edge.ConversionCount += conversions
	edge.UpdatedAt = time.Now()
	return nil
}

func (s *Store) DeactivateEdge(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	edge, ok := s.edges[id]
	if !ok {
		return graph.NotFound("edge", id)
	}
	edge.IsActive = false
	edge.UpdatedAt = time.Now()
	return nil
}

func (s *Store) OrphanedEdges(_ context.Context) ([]*graph.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*graph.Edge, 0)
	for _, e := range s.edges {
		if !e.IsActive {
			continue
		}
		_, fromOK := s.nodes[e.FromNodeID]
		_, toOK := s.nodes[e.ToNodeID]
		if !fromOK || !toOK {
			out = append(out, cloneEdge(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// NearestNodes scans all active embedded nodes and ranks them by cosine
// similarity.
func (s *Store) NearestNodes(_ context.Context, embedding []float32, topK int, filter store.NodeFilter) ([]store.NodeSimilarity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.NodeSimilarity, 0)
	for _, node := range s.nodes {
		if node.Status != graph.NodeStatusActive || len(node.Embedding) == 0 {
			continue
		}
		if !filter.Matches(node) {
			continue
		}
		out = append(out, store.NodeSimilarity{
			Node:       cloneNode(node),
			Similarity: vectormath.CosineSimilarity(embedding, node.Embedding),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].Node.ID < out[j].Node.ID
	})
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func (s *Store) SaveClusters(_ context.Context, clusters []*graph.IntentCluster) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*graph.IntentCluster, 0, len(clusters))
	for _, c := range clusters {
		copied := *c
		copied.Centroid = append([]float32(nil), c.Centroid...)
		copied.Nodes = append([]string(nil), c.Nodes...)
		copied.Keywords = append([]string(nil), c.Keywords...)
		out = append(out, &copied)
	}
	s.clusters = out
	return nil
}

func (s *Store) LoadClusters(_ context.Context) ([]*graph.IntentCluster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*graph.IntentCluster, 0, len(s.clusters))
	for _, c := range s.clusters {
		copied := *c
		copied.Centroid = append([]float32(nil), c.Centroid...)
		copied.Nodes = append([]string(nil), c.Nodes...)
		copied.Keywords = append([]string(nil), c.Keywords...)
		out = append(out, &copied)
	}
	return out, nil
}

func (s *Store) CountNodes(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.nodes)), nil
}

func (s *Store) CountEdges(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.edges)), nil
}

func (s *Store) Ping(context.Context) error {
	return nil
}
