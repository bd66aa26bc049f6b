package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/peakfunnel/intentgraph/pkg/graph"
	"github.com/peakfunnel/intentgraph/pkg/logger"
)

// ReembedScheduler queues nodes for embedding recomputation. Satisfied by
// the queue publisher; the semantic engine shares the same contract.
type ReembedScheduler interface {
	ScheduleReembed(ctx context.Context, nodeID int64) error
}

// HealthReport is the operational status of the graph.
type HealthReport struct {
	State             State     `json:"state"`
	Mode              Mode      `json:"mode"`
	NodeCount         int64     `json:"node_count"`
	EdgeCount         int64     `json:"edge_count"`
	MissingEmbeddings int       `json:"missing_embeddings"`
	OrphanedEdges     int       `json:"orphaned_edges"`
	LastBackupAt      time.Time `json:"last_backup_at,omitempty"`
}

// Healthy reports whether the layer is serving from the primary with no
// known inconsistencies.
func (r *HealthReport) Healthy() bool {
	return r.State == StateHealthy && r.Mode == ModeNormal &&
		r.MissingEmbeddings == 0 && r.OrphanedEdges == 0
}

// HealthCheck gathers counts and consistency findings without mutating
// anything. Count failures degrade to zeros rather than failing the check;
// the mode field already says the store is in trouble.
func (m *Manager) HealthCheck(ctx context.Context) *HealthReport {
	report := &HealthReport{
		State:        m.State(),
		Mode:         m.Mode(),
		LastBackupAt: m.LastBackupAt(),
	}

	if count, err := m.CountNodes(ctx); err == nil {
		report.NodeCount = count
	}
	if count, err := m.CountEdges(ctx); err == nil {
		report.EdgeCount = count
	}
	if missing, err := m.NodesMissingEmbedding(ctx, 0); err == nil {
		report.MissingEmbeddings = len(missing)
	}
	if orphans, err := m.OrphanedEdges(ctx); err == nil {
		report.OrphanedEdges = len(orphans)
	}
	return report
}

// RepairReport summarizes one consistency repair pass.
type RepairReport struct {
	ReembedsScheduled        int `json:"reembeds_scheduled"`
	OrphanedEdgesDeactivated int `json:"orphaned_edges_deactivated"`
}

// RepairPass fixes the inconsistencies the health check detects: nodes
// without embeddings are queued for recomputation and edges referencing
// missing nodes are deactivated. Individual failures are logged and the
// pass continues.
func (m *Manager) RepairPass(ctx context.Context, scheduler ReembedScheduler) (*RepairReport, error) {
	report := &RepairReport{}

	missing, err := m.NodesMissingEmbedding(ctx, 0)
	if err != nil {
		return nil, err
	}
	for _, node := range missing {
		if scheduler == nil {
			break
		}
		logger.Debug("[Resilience][RepairPass] Detected",
			"err", graph.Inconsistent("missing_embedding", node.Slug))
		if err := scheduler.ScheduleReembed(ctx, node.ID); err != nil {
			logger.Warn("[Resilience][RepairPass] Could not schedule reembed", "node", node.ID, "err", err)
			continue
		}
		report.ReembedsScheduled++
	}

	orphans, err := m.OrphanedEdges(ctx)
	if err != nil {
		return nil, err
	}
	for _, edge := range orphans {
		logger.Debug("[Resilience][RepairPass] Detected",
			"err", graph.Inconsistent("orphaned_edge", fmt.Sprintf("%d->%d", edge.FromNodeID, edge.ToNodeID)))
		if err := m.DeactivateEdge(ctx, edge.ID); err != nil {
			logger.Warn("[Resilience][RepairPass] Could not deactivate orphaned edge", "edge", edge.ID, "err", err)
			continue
		}
		report.OrphanedEdgesDeactivated++
	}

	if report.ReembedsScheduled > 0 || report.OrphanedEdgesDeactivated > 0 {
		logger.Info("[Resilience][RepairPass] Repairs applied",
			"reembeds", report.ReembedsScheduled, "deactivated", report.OrphanedEdgesDeactivated)
	}
	return report, nil
}
