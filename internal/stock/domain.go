package stock

import (
	"errors"
	"time"

	"github.com/Drak-01/stock-saas-sub001/internal/fixed"
	"github.com/Drak-01/stock-saas-sub001/internal/shared"
)

// Location holds the stock of one product in one warehouse. Rows are
// created lazily on the first stock touch for the (product, warehouse)
// pair, and are the unit of contention for concurrent mutation.
type Location struct {
	ID          int64
	ProductID   int64
	WarehouseID int64
	OnHand      fixed.Decimal
	Reserved    fixed.Decimal
	Ordered     fixed.Decimal
	// AvgCost is the moving-average unit cost; nil until a costed
	// inbound has been recorded.
	AvgCost   *fixed.Decimal
	UpdatedAt time.Time
}

// Snapshot returns the canonical flat representation of the location.
func (l Location) Snapshot() map[string]any {
	avg := ""
	if l.AvgCost != nil {
		avg = l.AvgCost.StringFixed(fixed.ScaleMoney)
	}
	return map[string]any{
		"id":           l.ID,
		"product_id":   l.ProductID,
		"warehouse_id": l.WarehouseID,
		"on_hand":      l.OnHand.StringFixed(fixed.ScaleQuantity),
		"reserved":     l.Reserved.StringFixed(fixed.ScaleQuantity),
		"ordered":      l.Ordered.StringFixed(fixed.ScaleQuantity),
		"avg_cost":     avg,
	}
}

// Movement is one append-only ledger entry.
type Movement struct {
	ID          int64
	ProductID   int64
	WarehouseID int64
	Delta       fixed.Decimal
	UnitCost    *fixed.Decimal
	Reason      string
	RefModule   string
	RefID       string
	PostedAt    time.Time
	ActorID     int64
}

// MovementFilter narrows movement history queries.
type MovementFilter struct {
	ProductID   int64
	WarehouseID int64
	From        time.Time
	To          time.Time
	Limit       int
}

// DeltaInput describes a stock mutation request.
type DeltaInput struct {
	ProductID   int64
	WarehouseID int64
	Delta       fixed.Decimal
	UnitCost    *fixed.Decimal
	Reason      string
	RefModule   string
	RefID       string
	Actor       shared.Actor
}

// TransferInput moves stock between two warehouses.
type TransferInput struct {
	ProductID    int64
	SrcWarehouse int64
	DstWarehouse int64
	Quantity     fixed.Decimal
	Reason       string
	Actor        shared.Actor
}

// WarehouseValue is the per-warehouse part of a valuation.
type WarehouseValue struct {
	WarehouseID int64
	OnHand      fixed.Decimal
	AvgCost     *fixed.Decimal // nil when no cost information exists
	Value       *fixed.Decimal // nil when the cost is unknown
}

// Valuation aggregates stock value for one product. Total is nil when any
// warehouse holding stock has an unknown cost; a partial total would
// understate the value.
type Valuation struct {
	ProductID int64
	Total     *fixed.Decimal
	Breakdown []WarehouseValue
}

// DeletionWindow is how long after the last movement a product remains
// undeletable.
const DeletionWindow = 30 * 24 * time.Hour

var (
	// ErrNegativeStock is returned when a delta would take on-hand below
	// zero in a warehouse that disallows negative stock. The whole call
	// is rejected; nothing is clamped.
	ErrNegativeStock = errors.New("stock: negative stock not allowed")
	// ErrInvalidQuantity indicates a zero delta or a quantity out of range.
	ErrInvalidQuantity = errors.New("stock: invalid quantity")
	// ErrInvalidUnitCost indicates a negative unit cost.
	ErrInvalidUnitCost = errors.New("stock: unit cost must be >= 0")
	// ErrLocationNotFound indicates a missing stock location row.
	ErrLocationNotFound = errors.New("stock: location not found")
)
