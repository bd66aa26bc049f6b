// Package resilience keeps the graph serving through storage trouble. A
// Manager wraps the primary store and a seeded in-memory fallback behind
// the store contract, trips to the fallback when the primary becomes
// unavailable, probes for recovery, takes periodic bounded backups, and
// runs the consistency repairs that keep the graph healthy.
package resilience

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/peakfunnel/intentgraph/pkg/graph"
	"github.com/peakfunnel/intentgraph/pkg/logger"
	"github.com/peakfunnel/intentgraph/pkg/store"
	"github.com/peakfunnel/intentgraph/pkg/store/memory"
)

// State is the lifecycle phase of the storage layer.
type State string

const (
	// StateClean means a fresh database with no content yet.
	StateClean State = "clean"
	// StateMigrating means schema migrations are being applied.
	StateMigrating State = "migrating"
	// StateRestoring means content is being restored from a backup.
	StateRestoring State = "restoring"
	// StateHealthy means the layer is fully operational.
	StateHealthy State = "healthy"
)

// Mode says which backend is serving requests.
type Mode string

const (
	ModeNormal   Mode = "normal"
	ModeFallback Mode = "fallback"
)

// Migrator applies schema migrations. Wired to golang-migrate in the
// binaries; tests stub it.
type Migrator interface {
	Up(ctx context.Context) error
}

// MigratorFunc adapts a function to the Migrator interface.
type MigratorFunc func(ctx context.Context) error

func (f MigratorFunc) Up(ctx context.Context) error { return f(ctx) }

// Manager wraps the primary store with failover to an in-memory fallback.
// It implements store.GraphStore; the engines never know which backend
// served them.
type Manager struct {
	primary  store.GraphStore
	fallback *memory.Store
	tuning   graph.Tuning

	migrator  Migrator
	exporter  SnapshotExporter
	seeds     []*graph.Node
	seedEdges []*graph.Edge

	mode  atomic.Value // Mode
	state atomic.Value // State

	backupMu   sync.RWMutex
	lastBackup *Snapshot
}

type Option func(*Manager)

// WithMigrator sets the schema migrator run during initialization.
func WithMigrator(m Migrator) Option {
	return func(mgr *Manager) { mgr.migrator = m }
}

// WithSnapshotExporter mirrors backups to external object storage.
func WithSnapshotExporter(e SnapshotExporter) Option {
	return func(mgr *Manager) { mgr.exporter = e }
}

// WithSeedNodes sets the starter content created on clean initialization.
func WithSeedNodes(nodes []*graph.Node) Option {
	return func(mgr *Manager) { mgr.seeds = nodes }
}

// WithSeedEdges sets the starter relationships created on clean
// initialization. Edge endpoints reference the seed nodes' declared IDs
// and are remapped to the IDs the store assigns.
func WithSeedEdges(edges []*graph.Edge) Option {
	return func(mgr *Manager) { mgr.seedEdges = edges }
}

func New(primary store.GraphStore, tuning graph.Tuning, opts ...Option) *Manager {
	m := &Manager{
		primary:  primary,
		fallback: memory.New(),
		tuning:   tuning,
	}
	m.mode.Store(ModeNormal)
	m.state.Store(StateClean)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Mode() Mode   { return m.mode.Load().(Mode) }
func (m *Manager) State() State { return m.state.Load().(State) }

func (m *Manager) setState(s State) {
	m.state.Store(s)
	logger.Info("[Resilience][State] Transition", "state", s)
}

// Initialize brings the storage layer up: migrate the schema, restore or
// seed content when the database is empty, take a first backup and enter
// the healthy state. Failures during initialization flip the manager to
// fallback mode instead of aborting startup.
func (m *Manager) Initialize(ctx context.Context) error {
	if m.migrator != nil {
		m.setState(StateMigrating)
		if err := m.migrator.Up(ctx); err != nil {
			logger.Error("[Resilience][Initialize] Migration failed, serving from fallback", "err", err)
			m.enterFallback(ctx)
			m.setState(StateHealthy)
			return err
		}
	}

	count, err := m.primary.CountNodes(ctx)
	if err != nil {
		logger.Error("[Resilience][Initialize] Primary unreachable, serving from fallback", "err", err)
		m.enterFallback(ctx)
		m.setState(StateHealthy)
		return err
	}

	if count == 0 {
		m.setState(StateRestoring)
		if restored := m.restorePrimary(ctx); !restored {
			m.seedPrimary(ctx)
		}
	}

	if _, err := m.Backup(ctx); err != nil {
		logger.Warn("[Resilience][Initialize] Initial backup failed", "err", err)
	}
	m.setState(StateHealthy)
	return nil
}

// restorePrimary loads the newest exported snapshot into an empty primary.
func (m *Manager) restorePrimary(ctx context.Context) bool {
	if m.exporter == nil {
		return false
	}
	snapshot, err := m.fetchLatestSnapshot(ctx)
	if err != nil || snapshot == nil {
		if err != nil {
			logger.Warn("[Resilience][Initialize] No restorable snapshot", "err", err)
		}
		return false
	}
	if err := importSnapshot(ctx, m.primary, snapshot); err != nil {
		logger.Warn("[Resilience][Initialize] Snapshot import failed", "err", err)
		return false
	}
	logger.Info("[Resilience][Initialize] Restored from snapshot",
		"nodes", len(snapshot.Nodes), "edges", len(snapshot.Edges), "taken_at", snapshot.TakenAt)
	return true
}

// seedPrimary creates the starter content on a clean database: nodes
// first, then the relationships between them with endpoint IDs remapped
// to whatever the store assigned.
func (m *Manager) seedPrimary(ctx context.Context) {
	assigned := make(map[int64]int64, len(m.seeds))
	for _, seed := range m.seeds {
		declaredID := seed.ID
		created, err := m.primary.CreateNode(ctx, seed)
		if err != nil {
			logger.Warn("[Resilience][Initialize] Could not create seed node", "slug", seed.Slug, "err", err)
			continue
		}
		assigned[declaredID] = created.ID
	}

	seededEdges := 0
	for _, seed := range m.seedEdges {
		from, okFrom := assigned[seed.FromNodeID]
		to, okTo := assigned[seed.ToNodeID]
		if !okFrom || !okTo {
			logger.Warn("[Resilience][Initialize] Seed edge references unknown seed node",
				"from", seed.FromNodeID, "to", seed.ToNodeID)
			continue
		}
		edge := *seed
		edge.FromNodeID = from
		edge.ToNodeID = to
		if _, err := m.primary.UpsertEdge(ctx, &edge); err != nil {
			logger.Warn("[Resilience][Initialize] Could not create seed edge",
				"from", from, "to", to, "err", err)
			continue
		}
		seededEdges++
	}

	if len(m.seeds) > 0 {
		logger.Info("[Resilience][Initialize] Seeded clean database",
			"nodes", len(m.seeds), "edges", seededEdges)
	}
}

// enterFallback switches serving to the in-memory store, hydrated from
// the last backup when one exists.
func (m *Manager) enterFallback(ctx context.Context) {
	if m.Mode() == ModeFallback {
		return
	}
	m.mode.Store(ModeFallback)

	m.backupMu.RLock()
	snapshot := m.lastBackup
	m.backupMu.RUnlock()
	if snapshot == nil && m.exporter != nil {
		if fetched, err := m.fetchLatestSnapshot(ctx); err == nil {
			snapshot = fetched
		}
	}
	if snapshot != nil {
		m.fallback.Seed(snapshot.Nodes, snapshot.Edges)
		if len(snapshot.Clusters) > 0 {
			_ = m.fallback.SaveClusters(ctx, snapshot.Clusters)
		}
	}
	logger.Error("[Resilience][Failover] Switched to fallback store",
		"hydrated", snapshot != nil)
}

// Recover probes the primary and switches back when it responds. Called
// periodically by the worker while in fallback mode.
func (m *Manager) Recover(ctx context.Context) bool {
	if m.Mode() == ModeNormal {
		return true
	}
	if err := m.primary.Ping(ctx); err != nil {
		return false
	}
	m.mode.Store(ModeNormal)
	logger.Info("[Resilience][Failover] Primary recovered, switched back")
	return true
}

// active returns the store currently serving requests.
func (m *Manager) active() store.GraphStore {
	if m.Mode() == ModeFallback {
		return m.fallback
	}
	return m.primary
}

// failover runs op against the active backend. When the primary reports
// unavailability the manager trips to fallback and runs op once more
// there, so callers see degraded data instead of an outage.
func failover[T any](ctx context.Context, m *Manager, op func(store.GraphStore) (T, error)) (T, error) {
	result, err := op(m.active())
	if err != nil && m.Mode() == ModeNormal && graph.IsStoreUnavailable(err) {
		m.enterFallback(ctx)
		return op(m.fallback)
	}
	return result, err
}

func failoverErr(ctx context.Context, m *Manager, op func(store.GraphStore) error) error {
	_, err := failover(ctx, m, func(s store.GraphStore) (struct{}, error) {
		return struct{}{}, op(s)
	})
	return err
}

// store.GraphStore implementation. Every call routes through failover.

func (m *Manager) CreateNode(ctx context.Context, node *graph.Node) (*graph.Node, error) {
	return failover(ctx, m, func(s store.GraphStore) (*graph.Node, error) { return s.CreateNode(ctx, node) })
}

func (m *Manager) GetNode(ctx context.Context, id int64) (*graph.Node, error) {
	return failover(ctx, m, func(s store.GraphStore) (*graph.Node, error) { return s.GetNode(ctx, id) })
}

func (m *Manager) GetNodeBySlug(ctx context.Context, slug string) (*graph.Node, error) {
	return failover(ctx, m, func(s store.GraphStore) (*graph.Node, error) { return s.GetNodeBySlug(ctx, slug) })
}

func (m *Manager) ListNodes(ctx context.Context, filter store.NodeFilter) ([]*graph.Node, error) {
	return failover(ctx, m, func(s store.GraphStore) ([]*graph.Node, error) { return s.ListNodes(ctx, filter) })
}

func (m *Manager) UpdateNodeEmbedding(ctx context.Context, id int64, embedding []float32) error {
	return failoverErr(ctx, m, func(s store.GraphStore) error { return s.UpdateNodeEmbedding(ctx, id, embedding) })
}

func (m *Manager) UpdateNodeStatus(ctx context.Context, id int64, status graph.NodeStatus) error {
	return failoverErr(ctx, m, func(s store.GraphStore) error { return s.UpdateNodeStatus(ctx, id, status) })
}

func (m *Manager) NodesMissingEmbedding(ctx context.Context, limit int) ([]*graph.Node, error) {
	return failover(ctx, m, func(s store.GraphStore) ([]*graph.Node, error) { return s.NodesMissingEmbedding(ctx, limit) })
}

func (m *Manager) OrphanedNodeIDs(ctx context.Context) ([]int64, error) {
	return failover(ctx, m, func(s store.GraphStore) ([]int64, error) { return s.OrphanedNodeIDs(ctx) })
}

func (m *Manager) TopNodesByClickThrough(ctx context.Context, limit int) ([]*graph.Node, error) {
	return failover(ctx, m, func(s store.GraphStore) ([]*graph.Node, error) { return s.TopNodesByClickThrough(ctx, limit) })
}

func (m *Manager) UpsertEdge(ctx context.Context, edge *graph.Edge) (*graph.Edge, error) {
	return failover(ctx, m, func(s store.GraphStore) (*graph.Edge, error) { return s.UpsertEdge(ctx, edge) })
}

func (m *Manager) OutgoingEdges(ctx context.Context, fromNodeID int64, activeOnly bool) ([]*graph.Edge, error) {
	return failover(ctx, m, func(s store.GraphStore) ([]*graph.Edge, error) { return s.OutgoingEdges(ctx, fromNodeID, activeOnly) })
}

func (m *Manager) ListActiveEdges(ctx context.Context, limit int) ([]*graph.Edge, error) {
	return failover(ctx, m, func(s store.GraphStore) ([]*graph.Edge, error) { return s.ListActiveEdges(ctx, limit) })
}

func (m *Manager) UpdateEdgeScores(ctx context.Context, id int64, weight, confidence float64) error {
	return failoverErr(ctx, m, func(s store.GraphStore) error { return s.UpdateEdgeScores(ctx, id, weight, confidence) })
}

func (m *Manager) RecordEdgeInteraction(ctx context.Context, id int64, clicks, conversions int64) error {
	return failoverErr(ctx, m, func(s store.GraphStore) error { return s.RecordEdgeInteraction(ctx, id, clicks, conversions) })
}

func (m *Manager) DeactivateEdge(ctx context.Context, id int64) error {
	return failoverErr(ctx, m, func(s store.GraphStore) error { return s.DeactivateEdge(ctx, id) })
}

func (m *Manager) OrphanedEdges(ctx context.Context) ([]*graph.Edge, error) {
	return failover(ctx, m, func(s store.GraphStore) ([]*graph.Edge, error) { return s.OrphanedEdges(ctx) })
}

func (m *Manager) NearestNodes(ctx context.Context, embedding []float32, topK int, filter store.NodeFilter) ([]store.NodeSimilarity, error) {
	return failover(ctx, m, func(s store.GraphStore) ([]store.NodeSimilarity, error) {
		return s.NearestNodes(ctx, embedding, topK, filter)
	})
}

func (m *Manager) SaveClusters(ctx context.Context, clusters []*graph.IntentCluster) error {
	return failoverErr(ctx, m, func(s store.GraphStore) error { return s.SaveClusters(ctx, clusters) })
}

func (m *Manager) LoadClusters(ctx context.Context) ([]*graph.IntentCluster, error) {
	return failover(ctx, m, func(s store.GraphStore) ([]*graph.IntentCluster, error) { return s.LoadClusters(ctx) })
}

func (m *Manager) CountNodes(ctx context.Context) (int64, error) {
	return failover(ctx, m, func(s store.GraphStore) (int64, error) { return s.CountNodes(ctx) })
}

func (m *Manager) CountEdges(ctx context.Context) (int64, error) {
	return failover(ctx, m, func(s store.GraphStore) (int64, error) { return s.CountEdges(ctx) })
}

func (m *Manager) Ping(ctx context.Context) error {
	return m.active().Ping(ctx)
}

var _ store.GraphStore = (*Manager)(nil)

// LastBackupAt reports when the most recent backup was taken.
func (m *Manager) LastBackupAt() time.Time {
	m.backupMu.RLock()
	defer m.backupMu.RUnlock()
	if m.lastBackup == nil {
		return time.Time{}
	}
	return m.lastBackup.TakenAt
}
