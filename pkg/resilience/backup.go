package resilience

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/peakfunnel/intentgraph/pkg/graph"
	"github.com/peakfunnel/intentgraph/pkg/logger"
	"github.com/peakfunnel/intentgraph/pkg/store"
)

// Snapshot is a bounded, restorable extract of the graph: the top
// performing nodes, the active edges between them and the cluster state.
// It is deliberately partial; it exists to keep serving through an outage,
// not to replace database backups.
type Snapshot struct {
	TakenAt  time.Time              `json:"taken_at"`
	Nodes    []*graph.Node          `json:"nodes"`
	Edges    []*graph.Edge          `json:"edges"`
	Clusters []*graph.IntentCluster `json:"clusters,omitempty"`
}

// SnapshotExporter mirrors snapshots to external object storage. The
// internal/storage package provides the S3 implementation.
type SnapshotExporter interface {
	Put(ctx context.Context, key string, body []byte) error
	GetLatest(ctx context.Context) ([]byte, error)
}

// Backup extracts a bounded snapshot from the active store, keeps it in
// memory for failover hydration and mirrors it to the exporter when one
// is configured.
func (m *Manager) Backup(ctx context.Context) (*Snapshot, error) {
	src := m.active()

	nodes, err := src.TopNodesByClickThrough(ctx, m.tuning.BackupNodeLimit)
	if err != nil {
		return nil, fmt.Errorf("[Resilience][Backup] extract nodes: %w", err)
	}
	edges, err := src.ListActiveEdges(ctx, m.tuning.BackupEdgeLimit)
	if err != nil {
		return nil, fmt.Errorf("[Resilience][Backup] extract edges: %w", err)
	}
	clusters, err := src.LoadClusters(ctx)
	if err != nil {
		logger.Warn("[Resilience][Backup] Could not extract clusters", "err", err)
		clusters = nil
	}

	snapshot := &Snapshot{
		TakenAt:  time.Now().UTC(),
		Nodes:    nodes,
		Edges:    retainConnectedEdges(nodes, edges),
		Clusters: clusters,
	}

	m.backupMu.Lock()
	m.lastBackup = snapshot
	m.backupMu.Unlock()

	if m.exporter != nil {
		if err := m.export(ctx, snapshot); err != nil {
			logger.Warn("[Resilience][Backup] Export failed, snapshot kept locally", "err", err)
		}
	}

	logger.Info("[Resilience][Backup] Snapshot taken",
		"nodes", len(snapshot.Nodes), "edges", len(snapshot.Edges), "clusters", len(snapshot.Clusters))
	return snapshot, nil
}

// retainConnectedEdges drops edges whose endpoints did not make the node
// cut, so a restored snapshot never contains dangling references.
func retainConnectedEdges(nodes []*graph.Node, edges []*graph.Edge) []*graph.Edge {
	included := make(map[int64]bool, len(nodes))
	for _, n := range nodes {
		included[n.ID] = true
	}
	kept := make([]*graph.Edge, 0, len(edges))
	for _, e := range edges {
		if included[e.FromNodeID] && included[e.ToNodeID] {
			kept = append(kept, e)
		}
	}
	return kept
}

func (m *Manager) export(ctx context.Context, snapshot *Snapshot) error {
	body, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	key := fmt.Sprintf("snapshots/graph-%s.json", snapshot.TakenAt.Format("20060102T150405Z"))
	if err := m.exporter.Put(ctx, key, body); err != nil {
		return fmt.Errorf("upload snapshot %s: %w", key, err)
	}
	return nil
}

// fetchLatestSnapshot downloads and decodes the newest exported snapshot.
func (m *Manager) fetchLatestSnapshot(ctx context.Context) (*Snapshot, error) {
	body, err := m.exporter.GetLatest(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch latest snapshot: %w", err)
	}
	if len(body) == 0 {
		return nil, nil
	}
	var snapshot Snapshot
	if err := json.Unmarshal(body, &snapshot); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snapshot, nil
}

// importSnapshot writes a snapshot's content into dst through the normal
// upsert paths, so repeated imports converge.
func importSnapshot(ctx context.Context, dst store.GraphStore, snapshot *Snapshot) error {
	idBySlug := make(map[int64]int64, len(snapshot.Nodes))
	for _, node := range snapshot.Nodes {
		stored, err := dst.CreateNode(ctx, node)
		if err != nil {
			return fmt.Errorf("import node %q: %w", node.Slug, err)
		}
		idBySlug[node.ID] = stored.ID
	}
	for _, edge := range snapshot.Edges {
		from, fromOK := idBySlug[edge.FromNodeID]
		to, toOK := idBySlug[edge.ToNodeID]
		if !fromOK || !toOK {
			continue
		}
		remapped := *edge
		remapped.ID = 0
		remapped.FromNodeID = from
		remapped.ToNodeID = to
		if _, err := dst.UpsertEdge(ctx, &remapped); err != nil {
			return fmt.Errorf("import edge %d>%d: %w", from, to, err)
		}
	}
	if len(snapshot.Clusters) > 0 {
		if err := dst.SaveClusters(ctx, snapshot.Clusters); err != nil {
			return fmt.Errorf("import clusters: %w", err)
		}
	}
	return nil
}
