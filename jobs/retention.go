package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Drak-01/stock-saas-sub001/internal/observability"
	"github.com/Drak-01/stock-saas-sub001/internal/shared"
)

// RetentionPayload carries the retention window for a cleanup run.
type RetentionPayload struct {
	OlderThan time.Duration `json:"older_than"`
}

// NewIdempotencyCleanupTask constructs the idempotency retention task.
func NewIdempotencyCleanupTask(olderThan time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(RetentionPayload{OlderThan: olderThan})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}

// NewActivityCleanupTask constructs the activity retention task.
func NewActivityCleanupTask(olderThan time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(RetentionPayload{OlderThan: olderThan})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskActivityCleanup, body, asynq.Queue(QueueDefault)), nil
}

// RetentionHandler prunes aged idempotency keys and activity entries.
type RetentionHandler struct {
	idempotency *shared.IdempotencyStore
	pool        *pgxpool.Pool
	logger      *slog.Logger
	metrics     *observability.Metrics
}

// NewRetentionHandler constructs the handler.
func NewRetentionHandler(idem *shared.IdempotencyStore, pool *pgxpool.Pool, logger *slog.Logger, metrics *observability.Metrics) *RetentionHandler {
	return &RetentionHandler{idempotency: idem, pool: pool, logger: logger, metrics: metrics}
}

// HandleIdempotency processes TaskIdempotencyCleanup tasks.
func (h *RetentionHandler) HandleIdempotency(ctx context.Context, t *asynq.Task) error {
	var payload RetentionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.OlderThan <= 0 {
		return asynq.SkipRetry
	}
	removed, err := h.idempotency.Cleanup(ctx, payload.OlderThan)
	if err != nil {
		h.metrics.ObserveJob(TaskIdempotencyCleanup, "error")
		return err
	}
	h.logger.Info("idempotency cleanup finished", slog.Int64("removed", removed))
	h.metrics.ObserveJob(TaskIdempotencyCleanup, "ok")
	return nil
}

// HandleActivity processes TaskActivityCleanup tasks.
func (h *RetentionHandler) HandleActivity(ctx context.Context, t *asynq.Task) error {
	var payload RetentionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.OlderThan <= 0 {
		return asynq.SkipRetry
	}
	cutoff := time.Now().Add(-payload.OlderThan)
	tag, err := h.pool.Exec(ctx, `DELETE FROM activity_logs WHERE occurred_at < $1`, cutoff)
	if err != nil {
		h.metrics.ObserveJob(TaskActivityCleanup, "error")
		return err
	}
	h.logger.Info("activity cleanup finished", slog.Int64("removed", tag.RowsAffected()))
	h.metrics.ObserveJob(TaskActivityCleanup, "ok")
	return nil
}
