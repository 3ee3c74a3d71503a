package purchasing

import (
	"context"
	"time"

	"github.com/Drak-01/stock-saas-sub001/internal/fixed"
)

// LineReceivedEvent captures one booked line receipt for downstream
// consumers (revaluation jobs, notifications).
type LineReceivedEvent struct {
	OrderID     int64
	OrderNumber string
	LineID      int64
	ProductID   int64
	WarehouseID int64
	Quantity    fixed.Decimal
	UnitPrice   fixed.Decimal
	ReceivedAt  time.Time
}

// IntegrationHandler receives purchasing domain events after commit.
// Delivery is best effort; the receipt itself is already durable.
type IntegrationHandler interface {
	HandleLineReceived(ctx context.Context, evt LineReceivedEvent) error
}
