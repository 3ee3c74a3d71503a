package jobs

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStockRevaluation warms the valuation cache for active products.
	TaskStockRevaluation = "stock:revaluation"
	// TaskIdempotencyCleanup prunes processed idempotency keys past retention.
	TaskIdempotencyCleanup = "retention:idempotency"
	// TaskActivityCleanup prunes activity log entries past retention.
	TaskActivityCleanup = "retention:activity"
)
