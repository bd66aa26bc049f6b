package graph

import "github.com/peakfunnel/intentgraph/internal/util"

// Tuning collects the heuristic constants used across the engines. The
// defaults come from production tuning; every value can be overridden per
// deployment through the environment.
type Tuning struct {
	// EmbedDim is the process-wide embedding dimension.
	EmbedDim int

	// ClusterThreshold is the minimum cosine similarity for an incoming
	// vector to join an existing intent cluster.
	ClusterThreshold float64

	// BlendAlpha weights history when blending intent vectors:
	// new = alpha*old + (1-alpha)*incoming.
	BlendAlpha float64

	// HistoryLimit caps per-identity interaction history.
	HistoryLimit int

	// WeightDecay is applied to edge weight per maintenance pass when an
	// edge has no click evidence.
	WeightDecay float64

	// ConfidenceDecay is applied to edge confidence per maintenance pass
	// below the evidence thresholds.
	ConfidenceDecay float64

	// ConfidenceDampening scales similarity into the initial confidence of
	// auto-generated edges.
	ConfidenceDampening float64

	// PropagationFloor filters propagation candidates by score.
	PropagationFloor float64

	// TopK bounds result counts for search, prediction and propagation.
	TopK int

	// StrengthCeiling caps the per-identity strength accumulator.
	StrengthCeiling float64

	// BackupNodeLimit / BackupEdgeLimit bound auto-backup snapshots.
	BackupNodeLimit int
	BackupEdgeLimit int
}

// DefaultTuning returns the production defaults.
func DefaultTuning() Tuning {
	return Tuning{
		EmbedDim:            512,
		ClusterThreshold:    0.7,
		BlendAlpha:          0.8,
		HistoryLimit:        10,
		WeightDecay:         0.95,
		ConfidenceDecay:     0.98,
		ConfidenceDampening: 0.8,
		PropagationFloor:    0.3,
		TopK:                5,
		StrengthCeiling:     100,
		BackupNodeLimit:     100,
		BackupEdgeLimit:     500,
	}
}

// TuningFromEnv resolves tuning values from the environment, falling back
// to the defaults.
func TuningFromEnv() Tuning {
	d := DefaultTuning()
	return Tuning{
		EmbedDim:            util.GetEnvInt("EMBED_DIM", d.EmbedDim),
		ClusterThreshold:    util.GetEnvNumeric("INTENT_CLUSTER_THRESHOLD", d.ClusterThreshold),
		BlendAlpha:          util.GetEnvNumeric("INTENT_BLEND_ALPHA", d.BlendAlpha),
		HistoryLimit:        util.GetEnvInt("INTENT_HISTORY_LIMIT", d.HistoryLimit),
		WeightDecay:         util.GetEnvNumeric("EDGE_WEIGHT_DECAY", d.WeightDecay),
		ConfidenceDecay:     util.GetEnvNumeric("EDGE_CONFIDENCE_DECAY", d.ConfidenceDecay),
		ConfidenceDampening: util.GetEnvNumeric("EDGE_CONFIDENCE_DAMPENING", d.ConfidenceDampening),
		PropagationFloor:    util.GetEnvNumeric("PROPAGATION_SCORE_FLOOR", d.PropagationFloor),
		TopK:                util.GetEnvInt("RESULT_TOP_K", d.TopK),
		StrengthCeiling:     util.GetEnvNumeric("INTENT_STRENGTH_CEILING", d.StrengthCeiling),
		BackupNodeLimit:     util.GetEnvInt("BACKUP_NODE_LIMIT", d.BackupNodeLimit),
		BackupEdgeLimit:     util.GetEnvInt("BACKUP_EDGE_LIMIT", d.BackupEdgeLimit),
	}
}
