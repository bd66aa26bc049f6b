package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/peakfunnel/intentgraph/pkg/embed"
	"github.com/peakfunnel/intentgraph/pkg/graph"
	"github.com/peakfunnel/intentgraph/pkg/logger"
	"github.com/peakfunnel/intentgraph/pkg/propagation"
	"github.com/peakfunnel/intentgraph/pkg/resilience"
	"github.com/peakfunnel/intentgraph/pkg/store"
)

// reembedMaxTokens bounds the text sent to the embedding provider.
const reembedMaxTokens = 512

// ProcessReembedMessage recomputes one node's embedding through the real
// provider. Provider failures bubble up so the message lands in the retry
// queue; a vanished node makes the job obsolete, not failed.
func ProcessReembedMessage(
	ctx context.Context,
	provider embed.Provider,
	st store.GraphStore,
	msg string,
) error {
	data := new(ReembedJobMsg)
	if err := json.Unmarshal([]byte(msg), data); err != nil {
		return fmt.Errorf("unmarshal reembed job: %w", err)
	}

	node, err := st.GetNode(ctx, data.NodeID)
	if err != nil {
		if graph.IsNotFound(err) {
			logger.Warn("[Queue][Reembed] Node vanished, dropping job", "node", data.NodeID)
			return nil
		}
		return fmt.Errorf("load node %d: %w", data.NodeID, err)
	}

	text := embed.TruncateTokens(node.EmbeddingText(), reembedMaxTokens)
	vector, err := provider.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embed node %d: %w", data.NodeID, err)
	}

	if err := st.UpdateNodeEmbedding(ctx, node.ID, vector); err != nil {
		return fmt.Errorf("store embedding for node %d: %w", data.NodeID, err)
	}

	logger.Info("[Queue][Reembed] Embedding recomputed",
		"node", node.ID, "slug", node.Slug, "model", provider.ModelName(), "correlation_id", data.CorrelationID)
	return nil
}

// ReconcileDeps are the collaborators of the reconcile handler.
type ReconcileDeps struct {
	Manager     *resilience.Manager
	Propagation *propagation.Engine
	Scheduler   resilience.ReembedScheduler
}

// ProcessReconcileMessage runs one maintenance job.
func ProcessReconcileMessage(ctx context.Context, deps ReconcileDeps, msg string) error {
	data := new(ReconcileJobMsg)
	if err := json.Unmarshal([]byte(msg), data); err != nil {
		return fmt.Errorf("unmarshal reconcile job: %w", err)
	}

	switch data.Kind {
	case ReconcileRepair:
		report, err := deps.Manager.RepairPass(ctx, deps.Scheduler)
		if err != nil {
			return fmt.Errorf("repair pass: %w", err)
		}
		logger.Info("[Queue][Reconcile] Repair pass finished",
			"reembeds", report.ReembedsScheduled, "deactivated", report.OrphanedEdgesDeactivated)
	case ReconcileBackup:
		if _, err := deps.Manager.Backup(ctx); err != nil {
			return fmt.Errorf("backup: %w", err)
		}
	case ReconcileOptimize:
		report, err := deps.Propagation.RunDailyOptimization(ctx)
		if err != nil {
			return fmt.Errorf("daily optimization: %w", err)
		}
		logger.Info("[Queue][Reconcile] Optimization finished",
			"flagged", len(report.LowPerformersFlagged),
			"rescored", report.EdgesRescored,
			"connections", report.ConnectionsCreated,
			"orphan_connections", report.OrphanConnectionsCreated)
	default:
		logger.Warn("[Queue][Reconcile] Unknown job kind, dropping", "kind", data.Kind)
	}

	return nil
}
