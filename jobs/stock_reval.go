package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Drak-01/stock-saas-sub001/internal/observability"
	"github.com/Drak-01/stock-saas-sub001/internal/stock"
)

// CatalogPort lists the products eligible for revaluation.
type CatalogPort interface {
	ActiveProductIDs(ctx context.Context) ([]int64, error)
}

// ValuationPort computes or refreshes one product's valuation.
type ValuationPort interface {
	Get(ctx context.Context, productID int64) (stock.Valuation, error)
	Invalidate(ctx context.Context, productID int64) error
}

// StockRevaluationPayload carries scheduling metadata.
type StockRevaluationPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewStockRevaluationTask constructs the nightly revaluation task.
func NewStockRevaluationTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(StockRevaluationPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStockRevaluation, body, asynq.Queue(QueueDefault)), nil
}

// RevaluationHandler walks the active catalog, drops stale valuation
// snapshots and recomputes them from the ledger's moving averages.
type RevaluationHandler struct {
	catalog    CatalogPort
	valuations ValuationPort
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewRevaluationHandler constructs the handler.
func NewRevaluationHandler(catalog CatalogPort, valuations ValuationPort, logger *slog.Logger, metrics *observability.Metrics) *RevaluationHandler {
	return &RevaluationHandler{catalog: catalog, valuations: valuations, logger: logger, metrics: metrics}
}

// Handle processes TaskStockRevaluation tasks. A product whose valuation
// fails is logged and skipped; one bad product must not starve the rest.
func (h *RevaluationHandler) Handle(ctx context.Context, t *asynq.Task) error {
	var payload StockRevaluationPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	ids, err := h.catalog.ActiveProductIDs(ctx)
	if err != nil {
		h.metrics.ObserveJob(TaskStockRevaluation, "error")
		return err
	}
	var failed int
	for _, id := range ids {
		if err := h.valuations.Invalidate(ctx, id); err != nil {
			h.logger.Warn("revaluation invalidate", slog.Int64("product_id", id), slog.Any("error", err))
			failed++
			continue
		}
		if _, err := h.valuations.Get(ctx, id); err != nil {
			h.logger.Warn("revaluation compute", slog.Int64("product_id", id), slog.Any("error", err))
			failed++
		}
	}
	h.logger.Info("stock revaluation finished",
		slog.Time("scheduled_for", payload.ScheduledFor),
		slog.Int("products", len(ids)),
		slog.Int("failed", failed))
	h.metrics.ObserveJob(TaskStockRevaluation, "ok")
	return nil
}
