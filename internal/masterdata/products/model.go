package products

import (
	"time"

	"github.com/Drak-01/stock-saas-sub001/internal/fixed"
)

// Product represents a product entity. Stock is never held on the product
// itself; per-warehouse quantities live in the stock ledger.
type Product struct {
	ID         int64          `json:"id"`
	Code       string         `json:"code"`
	Name       string         `json:"name"`
	CategoryID int64          `json:"category_id"`
	UnitID     int64          `json:"unit_id"`
	CostPrice  *fixed.Decimal `json:"cost_price"` // nil when cost is unknown
	IsActive   bool           `json:"is_active"`
	DeletedAt  *time.Time     `json:"deleted_at"` // soft-delete tombstone
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// IsDeleted reports whether the product carries a tombstone.
func (p Product) IsDeleted() bool {
	return p.DeletedAt != nil
}

// Snapshot returns the canonical flat representation used by API layers
// and activity records. The key set is fixed per entity type.
func (p Product) Snapshot() map[string]any {
	cost := ""
	if p.CostPrice != nil {
		cost = p.CostPrice.StringFixed(fixed.ScaleMoney)
	}
	return map[string]any{
		"id":          p.ID,
		"code":        p.Code,
		"name":        p.Name,
		"category_id": p.CategoryID,
		"unit_id":     p.UnitID,
		"cost_price":  cost,
		"is_active":   p.IsActive,
		"deleted":     p.IsDeleted(),
	}
}
