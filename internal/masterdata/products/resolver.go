package products

import (
	"context"
	"errors"

	"github.com/Drak-01/stock-saas-sub001/internal/fixed"
	"github.com/Drak-01/stock-saas-sub001/internal/masterdata/shared"
)

// CostResolver adapts the product repository to the cost lookups the BOM
// engine and the stock ledger consume.
type CostResolver struct {
	repo Repository
}

// NewCostResolver constructs the resolver.
func NewCostResolver(repo Repository) CostResolver {
	return CostResolver{repo: repo}
}

// CostPrice returns the product's cost price. An unknown or tombstoned
// product resolves to an unknown cost, not an error.
func (c CostResolver) CostPrice(ctx context.Context, productID int64) (*fixed.Decimal, error) {
	p, err := c.repo.Get(ctx, productID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if p.IsDeleted() {
		return nil, nil
	}
	return p.CostPrice, nil
}
