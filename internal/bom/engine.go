package bom

import (
	"github.com/Drak-01/stock-saas-sub001/internal/fixed"
)

// The two computations below intentionally use different decompositions.
// RequiredForProduction forms the production ratio first and multiplies;
// CostForQuantity derives a per-unit cost first. Truncation at each step
// makes the orderings non-equivalent, and historical records were produced
// with exactly these orders.

// RequiredForProduction converts a production target into the component
// quantity the line demands: effectiveQuantity * (target / quantityProduced),
// ratio at scale 6, result at scale 6.
func RequiredForProduction(b BillOfMaterials, l Line, quantityToProduce fixed.Decimal) (fixed.Decimal, error) {
	ratio, err := quantityToProduce.Div(b.QuantityProduced, fixed.ScaleQuantity)
	if err != nil {
		return fixed.Decimal{}, err
	}
	return l.EffectiveQuantity().Mul(ratio, fixed.ScaleQuantity), nil
}

// CostForQuantity prices the component consumption for a production target:
// unitCost = effective / quantityProduced (scale 6), requiredQty = unitCost *
// target (scale 6), cost = requiredQty * costPrice (scale 4). A component
// without a cost price yields nil — unknown, which callers must keep
// distinct from a zero cost.
func CostForQuantity(b BillOfMaterials, l Line, quantityToProduce fixed.Decimal, costPrice *fixed.Decimal) (*fixed.Decimal, error) {
	if costPrice == nil {
		return nil, nil
	}
	unitCost, err := l.EffectiveQuantity().Div(b.QuantityProduced, fixed.ScaleQuantity)
	if err != nil {
		return nil, err
	}
	requiredQty := unitCost.Mul(quantityToProduce, fixed.ScaleQuantity)
	cost := requiredQty.Mul(*costPrice, fixed.ScaleMoney)
	return &cost, nil
}

// Requirement is one exploded line of a production target.
type Requirement struct {
	ComponentID       int64
	Sequence          int32
	QuantityRequired  fixed.Decimal
	EffectiveQuantity fixed.Decimal
	WasteQuantity     fixed.Decimal
	RequiredQuantity  fixed.Decimal  // scaled to the production target
	Cost              *fixed.Decimal // nil when the component cost is unknown
}

// Explosion is the result of exploding a BOM for a production target.
type Explosion struct {
	BOMID        int64
	ProductID    int64
	Target       fixed.Decimal
	Requirements []Requirement
	// TotalCost is nil when any component contributed an unknown cost;
	// a partial sum would understate the true cost.
	TotalCost *fixed.Decimal
}

// CostResolver supplies component cost prices during explosion. A nil
// return marks the cost unknown.
type CostResolver func(componentID int64) *fixed.Decimal

// Explode computes per-line requirements and costs for a production target.
// Lines are processed in their stored order.
func Explode(b BillOfMaterials, quantityToProduce fixed.Decimal, costOf CostResolver) (Explosion, error) {
	result := Explosion{
		BOMID:        b.ID,
		ProductID:    b.ProductID,
		Target:       quantityToProduce,
		Requirements: make([]Requirement, 0, len(b.Lines)),
	}
	total := fixed.Zero()
	known := true
	for _, line := range b.Lines {
		required, err := RequiredForProduction(b, line, quantityToProduce)
		if err != nil {
			return Explosion{}, err
		}
		var costPrice *fixed.Decimal
		if costOf != nil {
			costPrice = costOf(line.ComponentID)
		}
		cost, err := CostForQuantity(b, line, quantityToProduce, costPrice)
		if err != nil {
			return Explosion{}, err
		}
		if cost == nil {
			known = false
		} else {
			total = total.Add(*cost, fixed.ScaleMoney)
		}
		result.Requirements = append(result.Requirements, Requirement{
			ComponentID:       line.ComponentID,
			Sequence:          line.Sequence,
			QuantityRequired:  line.QuantityRequired,
			EffectiveQuantity: line.EffectiveQuantity(),
			WasteQuantity:     line.WasteQuantity(),
			RequiredQuantity:  required,
			Cost:              cost,
		})
	}
	if known {
		result.TotalCost = &total
	}
	return result, nil
}
