package queue

// ReembedJobMsg asks the worker to recompute one node's embedding.
type ReembedJobMsg struct {
	Message       string `json:"message"`
	CorrelationID string `json:"correlation_id"`
	NodeID        int64  `json:"node_id"`
	Reason        string `json:"reason,omitempty"`
}

// Reconcile job kinds.
const (
	ReconcileRepair   = "repair"
	ReconcileBackup   = "backup"
	ReconcileOptimize = "optimize"
)

// ReconcileJobMsg asks the worker to run one maintenance job.
type ReconcileJobMsg struct {
	Message       string `json:"message"`
	CorrelationID string `json:"correlation_id"`
	Kind          string `json:"kind"`
}
