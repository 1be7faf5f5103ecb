package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TaskTypeReconcile = "reconcile:entities"

	ReconcileQueueName = "reconcile"

	MaxRetries  = 3
	TaskTimeout = 5 * time.Minute
)

// ReconcileTask asks a worker to drain the given parsed entity rows. An
// empty EntityIDs means "sweep one batch of whatever is pending".
type ReconcileTask struct {
	EntityIDs []string `json:"entity_ids"`
}

// ReconcileQueue fans entity reconciliation out to asynq workers so the
// chat request path never waits on workspace writes.
type ReconcileQueue struct {
	client    *asynq.Client
	keyPrefix string
}

func NewReconcileQueueWithClient(keyPrefix string, client *asynq.Client) *ReconcileQueue {
	if keyPrefix == "" {
		keyPrefix = "atmo"
	}

	return &ReconcileQueue{
		keyPrefix: keyPrefix,
		client:    client,
	}
}

func (q *ReconcileQueue) EnqueueTask(ctx context.Context, entityIDs []string) error {
	task := &ReconcileTask{
		EntityIDs: entityIDs,
	}

	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	_, err = q.client.EnqueueContext(ctx, asynq.NewTask(TaskTypeReconcile, payload,
		asynq.MaxRetry(MaxRetries),
		asynq.Timeout(TaskTimeout),
		asynq.Queue(ReconcileQueueName),
		// identical pending batches collapse into one task
		asynq.Unique(time.Minute),
	))
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	slog.Info("reconcile task enqueued", slog.Int("entity_count", len(entityIDs)))
	return nil
}

// RegisterHandler binds the reconcile task type to the worker mux.
func (q *ReconcileQueue) RegisterHandler(mux *asynq.ServeMux, handle func(ctx context.Context, entityIDs []string) error) {
	mux.HandleFunc(TaskTypeReconcile, func(ctx context.Context, t *asynq.Task) error {
		var task ReconcileTask
		if err := json.Unmarshal(t.Payload(), &task); err != nil {
			return fmt.Errorf("failed to unmarshal task: %w", err)
		}
		return handle(ctx, task.EntityIDs)
	})
}

func (q *ReconcileQueue) Shutdown() {
	if q.client != nil {
		q.client.Close()
	}
}
