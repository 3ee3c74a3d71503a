package warehouses

import (
	"time"
)

// Settings captures per-warehouse behaviour flags stored as JSONB.
type Settings struct {
	AllowNegativeStock bool `json:"allow_negative_stock"`
}

// Warehouse represents a warehouse entity
type Warehouse struct {
	ID        int64      `json:"id"`
	BranchID  int64      `json:"branch_id"`
	Code      string     `json:"code"`
	Name      string     `json:"name"`
	Address   string     `json:"address"`
	Settings  Settings   `json:"settings"`
	DeletedAt *time.Time `json:"deleted_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Snapshot returns the canonical flat representation of the warehouse.
func (w Warehouse) Snapshot() map[string]any {
	return map[string]any{
		"id":                   w.ID,
		"branch_id":            w.BranchID,
		"code":                 w.Code,
		"name":                 w.Name,
		"address":              w.Address,
		"allow_negative_stock": w.Settings.AllowNegativeStock,
		"deleted":              w.DeletedAt != nil,
	}
}
