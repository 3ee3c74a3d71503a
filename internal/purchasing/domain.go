package purchasing

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Drak-01/stock-saas-sub001/internal/fixed"
)

// Purchase order lifecycle statuses.
type Status string

const (
	StatusDraft             Status = "draft"
	StatusPendingApproval   Status = "pending_approval"
	StatusApproved          Status = "approved"
	StatusOrdered           Status = "ordered"
	StatusPartiallyReceived Status = "partially_received"
	StatusReceived          Status = "received"
	StatusClosed            Status = "closed"
	StatusCancelled         Status = "cancelled"
)

// Terminal reports whether the status admits no further lifecycle action
// other than close-after-received.
func (s Status) Terminal() bool {
	return s == StatusReceived || s == StatusClosed || s == StatusCancelled
}

// Receivable reports whether line receipts are accepted in this status.
func (s Status) Receivable() bool {
	return s == StatusOrdered || s == StatusPartiallyReceived
}

// PurchaseOrder is the aggregate root. Lines are exclusively owned: they
// are only ever created or replaced through the order's own mutation API.
type PurchaseOrder struct {
	ID           int64
	Number       string
	SupplierID   int64
	Status       Status
	OrderDate    time.Time
	ExpectedDate time.Time
	Note         string
	ApprovedBy   *int64
	ApprovedAt   *time.Time
	CancelReason string
	Lines        []Line
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
}

// IsDeleted reports whether the order carries a tombstone.
func (p PurchaseOrder) IsDeleted() bool { return p.DeletedAt != nil }

// TotalOrdered sums ordered quantity across lines.
func (p PurchaseOrder) TotalOrdered() fixed.Decimal {
	total := fixed.Zero()
	for _, l := range p.Lines {
		total = total.Add(l.QuantityOrdered, fixed.ScaleQuantity)
	}
	return total
}

// TotalReceived sums received quantity across lines.
func (p PurchaseOrder) TotalReceived() fixed.Decimal {
	total := fixed.Zero()
	for _, l := range p.Lines {
		total = total.Add(l.QuantityReceived, fixed.ScaleQuantity)
	}
	return total
}

// TotalValue sums line value (ordered quantity at unit price).
func (p PurchaseOrder) TotalValue() fixed.Decimal {
	total := fixed.Zero()
	for _, l := range p.Lines {
		total = total.Add(l.QuantityOrdered.Mul(l.UnitPrice, fixed.ScaleMoney), fixed.ScaleMoney)
	}
	return total
}

// Snapshot returns the canonical flat representation of the order. The
// key set is fixed per entity type; absent optionals render as empty.
func (p PurchaseOrder) Snapshot() map[string]any {
	lines := make([]map[string]any, len(p.Lines))
	for i, l := range p.Lines {
		lines[i] = l.Snapshot()
	}
	approvedBy := int64(0)
	if p.ApprovedBy != nil {
		approvedBy = *p.ApprovedBy
	}
	return map[string]any{
		"id":             p.ID,
		"number":         p.Number,
		"supplier_id":    p.SupplierID,
		"status":         string(p.Status),
		"approved_by":    approvedBy,
		"cancel_reason":  p.CancelReason,
		"lines":          lines,
		"total_ordered":  p.TotalOrdered().StringFixed(fixed.ScaleQuantity),
		"total_received": p.TotalReceived().StringFixed(fixed.ScaleQuantity),
		"total_value":    p.TotalValue().StringFixed(fixed.ScaleMoney),
	}
}

// Line is one ordered item. WarehouseID zero means the line has no
// receiving warehouse and its receipt never touches the stock ledger.
type Line struct {
	ID               int64
	OrderID          int64
	ProductID        int64
	WarehouseID      int64
	QuantityOrdered  fixed.Decimal
	QuantityReceived fixed.Decimal
	UnitPrice        fixed.Decimal
	TaxRate          fixed.Decimal
	ExpectedDate     *time.Time
}

// Remaining returns the quantity still receivable on the line.
func (l Line) Remaining() fixed.Decimal {
	return l.QuantityOrdered.Sub(l.QuantityReceived, fixed.ScaleQuantity)
}

// Complete reports whether the line is fully received.
func (l Line) Complete() bool {
	return l.QuantityReceived.Cmp(l.QuantityOrdered) >= 0
}

// Snapshot returns the canonical flat representation of the line.
func (l Line) Snapshot() map[string]any {
	return map[string]any{
		"id":                l.ID,
		"product_id":        l.ProductID,
		"warehouse_id":      l.WarehouseID,
		"quantity_ordered":  l.QuantityOrdered.StringFixed(fixed.ScaleQuantity),
		"quantity_received": l.QuantityReceived.StringFixed(fixed.ScaleQuantity),
		"unit_price":        l.UnitPrice.StringFixed(fixed.ScaleMoney),
		"tax_rate":          l.TaxRate.StringFixed(fixed.ScaleMoney),
	}
}

// TransitionError reports a lifecycle action attempted against a status
// whose guard rejects it.
type TransitionError struct {
	OrderID int64
	Action  string
	Status  Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("purchasing: cannot %s order %d in status %s", e.Action, e.OrderID, e.Status)
}

// OverReceiptError reports a receive quantity exceeding the line's
// remaining orderable quantity. The call is rejected, never clamped.
type OverReceiptError struct {
	LineID    int64
	Remaining fixed.Decimal
	Requested fixed.Decimal
}

func (e *OverReceiptError) Error() string {
	return fmt.Sprintf("purchasing: over-receipt on line %d: requested %s, remaining %s",
		e.LineID, e.Requested.StringFixed(fixed.ScaleQuantity), e.Remaining.StringFixed(fixed.ScaleQuantity))
}

// ValidationError carries every structural violation found on the order,
// so callers can render all of them at once.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "purchasing: validation failed: " + strings.Join(e.Violations, "; ")
}

var (
	// ErrNotFound indicates a missing purchase order.
	ErrNotFound = errors.New("purchasing: not found")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("purchasing: invalid input")
)
