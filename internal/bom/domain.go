package bom

import (
	"errors"
	"fmt"
	"time"

	"github.com/Drak-01/stock-saas-sub001/internal/fixed"
)

// BillOfMaterials describes how one produced product is assembled from
// component products. QuantityProduced is the declared output of one run
// and is validated strictly positive at edit time; the explosion engine
// relies on that invariant.
type BillOfMaterials struct {
	ID               int64
	ProductID        int64
	QuantityProduced fixed.Decimal
	Lines            []Line
	DeletedAt        *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsDeleted reports whether the BOM carries a tombstone.
func (b BillOfMaterials) IsDeleted() bool {
	return b.DeletedAt != nil
}

// Line is a component requirement inside a BOM. Lines exist only through
// their owning aggregate and are immutable once constructed; the effective
// quantity is computed at construction and cached for the lifetime of the
// value. To invalidate, rebuild the line.
type Line struct {
	ID               int64
	BOMID            int64
	ComponentID      int64
	QuantityRequired fixed.Decimal
	WasteFactor      fixed.Decimal // percentage in [0,100]
	Sequence         int32

	effective fixed.Decimal
}

var (
	// ErrNotFound indicates a missing BOM.
	ErrNotFound = errors.New("bom: not found")
	// ErrValidation indicates invalid aggregate input.
	ErrValidation = errors.New("bom: invalid input")
)

var (
	one     = fixed.FromInt(1)
	hundred = fixed.FromInt(100)
)

// NewLine validates and builds a line, precomputing the effective quantity:
// quantityRequired * (1 + wasteFactor/100), waste ratio at scale 4, result
// at scale 6. A zero waste factor yields the required quantity exactly.
func NewLine(bomID, componentID int64, quantityRequired, wasteFactor fixed.Decimal, sequence int32) (Line, error) {
	if componentID <= 0 {
		return Line{}, fmt.Errorf("%w: component required", ErrValidation)
	}
	if !quantityRequired.IsPositive() {
		return Line{}, fmt.Errorf("%w: quantity required must be > 0", ErrValidation)
	}
	if wasteFactor.IsNegative() || wasteFactor.Cmp(hundred) > 0 {
		return Line{}, fmt.Errorf("%w: waste factor must be within [0,100]", ErrValidation)
	}
	if sequence <= 0 {
		return Line{}, fmt.Errorf("%w: sequence must be > 0", ErrValidation)
	}
	ratio, err := wasteFactor.Div(hundred, 4)
	if err != nil {
		return Line{}, err
	}
	line := Line{
		BOMID:            bomID,
		ComponentID:      componentID,
		QuantityRequired: quantityRequired,
		WasteFactor:      wasteFactor,
		Sequence:         sequence,
		effective:        quantityRequired.Mul(one.Add(ratio, 4), fixed.ScaleQuantity),
	}
	return line, nil
}

// EffectiveQuantity returns the required quantity inflated by the waste
// factor, at scale 6.
func (l Line) EffectiveQuantity() fixed.Decimal {
	return l.effective
}

// WasteQuantity returns the scrap allowance portion of the effective
// quantity, at scale 6.
func (l Line) WasteQuantity() fixed.Decimal {
	return l.effective.Sub(l.QuantityRequired, fixed.ScaleQuantity)
}

// Snapshot returns the canonical flat representation of the BOM.
func (b BillOfMaterials) Snapshot() map[string]any {
	lines := make([]map[string]any, 0, len(b.Lines))
	for _, l := range b.Lines {
		lines = append(lines, map[string]any{
			"id":                l.ID,
			"component_id":      l.ComponentID,
			"quantity_required": l.QuantityRequired.StringFixed(fixed.ScaleQuantity),
			"waste_factor":      l.WasteFactor.StringFixed(2),
			"sequence":          l.Sequence,
		})
	}
	return map[string]any{
		"id":                b.ID,
		"product_id":        b.ProductID,
		"quantity_produced": b.QuantityProduced.StringFixed(fixed.ScaleQuantity),
		"lines":             lines,
		"deleted":           b.IsDeleted(),
	}
}
