package suppliers

import (
	"time"
)

// Supplier represents a supplier entity
type Supplier struct {
	ID        int64      `json:"id"`
	Code      string     `json:"code"`
	Name      string     `json:"name"`
	Address   string     `json:"address"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone"`
	DeletedAt *time.Time `json:"deleted_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Snapshot returns the canonical flat representation of the supplier.
func (s Supplier) Snapshot() map[string]any {
	return map[string]any{
		"id":      s.ID,
		"code":    s.Code,
		"name":    s.Name,
		"address": s.Address,
		"email":   s.Email,
		"phone":   s.Phone,
		"deleted": s.DeletedAt != nil,
	}
}
