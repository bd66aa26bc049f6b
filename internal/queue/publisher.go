package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"github.com/peakfunnel/intentgraph/pkg/logger"
)

// Publisher schedules background jobs over the queues. It satisfies the
// reembed scheduler contract of the semantic engine and the resilience
// manager.
type Publisher struct {
	ch *amqp091.Channel
}

func NewPublisher(ch *amqp091.Channel) *Publisher {
	return &Publisher{ch: ch}
}

// ScheduleReembed queues a node for embedding recomputation.
func (p *Publisher) ScheduleReembed(_ context.Context, nodeID int64) error {
	correlationID := uuid.NewString()
	body, err := json.Marshal(ReembedJobMsg{
		Message:       "Recompute node embedding",
		CorrelationID: correlationID,
		NodeID:        nodeID,
	})
	if err != nil {
		return fmt.Errorf("marshal reembed job: %w", err)
	}
	if err := PublishFIFO(p.ch, ReembedQueue, body); err != nil {
		return fmt.Errorf("publish reembed job for node %d: %w", nodeID, err)
	}
	logger.Debug("[Queue][ScheduleReembed] Job queued", "node", nodeID, "correlation_id", correlationID)
	return nil
}

// ScheduleReconcile queues one maintenance job.
func (p *Publisher) ScheduleReconcile(_ context.Context, kind string) error {
	correlationID := uuid.NewString()
	body, err := json.Marshal(ReconcileJobMsg{
		Message:       "Run maintenance job",
		CorrelationID: correlationID,
		Kind:          kind,
	})
	if err != nil {
		return fmt.Errorf("marshal reconcile job: %w", err)
	}
	if err := PublishFIFO(p.ch, ReconcileQueue, body); err != nil {
		return fmt.Errorf("publish reconcile job %q: %w", kind, err)
	}
	logger.Debug("[Queue][ScheduleReconcile] Job queued", "kind", kind, "correlation_id", correlationID)
	return nil
}
