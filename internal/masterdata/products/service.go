package products

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Drak-01/stock-saas-sub001/internal/masterdata/shared"
	sharedcore "github.com/Drak-01/stock-saas-sub001/internal/shared"
)

// StockGuard reports whether a product's stock allows removal.
type StockGuard interface {
	CanDelete(ctx context.Context, productID int64) (bool, error)
}

// ActivityPort records masterdata mutations.
type ActivityPort interface {
	Record(ctx context.Context, act sharedcore.Activity) error
}

type Service struct {
	repo     Repository
	stock    StockGuard
	activity ActivityPort
}

func NewService(repo Repository, stock StockGuard, activity ActivityPort) *Service {
	return &Service{repo: repo, stock: stock, activity: activity}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, product Product, actor sharedcore.Actor) (Product, error) {
	if err := s.validate(product); err != nil {
		return Product{}, err
	}
	created, err := s.repo.Create(ctx, product)
	if err != nil {
		return Product{}, err
	}
	if err := s.record(ctx, "product.create", created.ID, nil, created.Snapshot(), actor); err != nil {
		return Product{}, err
	}
	return created, nil
}

func (s *Service) Update(ctx context.Context, id int64, product Product, actor sharedcore.Actor) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	if err := s.validate(product); err != nil {
		return err
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if current.IsDeleted() {
		return shared.ErrNotFound
	}
	if err := s.repo.Update(ctx, id, product); err != nil {
		return err
	}
	product.ID = id
	return s.record(ctx, "product.update", id, current.Snapshot(), product.Snapshot(), actor)
}

// Delete tombstones the product. Removal is refused while any warehouse
// holds stock or a movement touched the product recently.
func (s *Service) Delete(ctx context.Context, id int64, actor sharedcore.Actor) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if current.IsDeleted() {
		return shared.ErrNotFound
	}
	if s.stock != nil {
		ok, err := s.stock.CanDelete(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("products: product still has stock or recent movements")
		}
	}
	if err := s.repo.SoftDelete(ctx, id, time.Now().UTC()); err != nil {
		return err
	}
	return s.record(ctx, "product.delete", id, current.Snapshot(), nil, actor)
}

func (s *Service) record(ctx context.Context, action string, id int64, oldValues, newValues map[string]any, actor sharedcore.Actor) error {
	if s.activity == nil {
		return nil
	}
	return s.activity.Record(ctx, sharedcore.Activity{
		Action:     action,
		EntityType: "product",
		EntityID:   fmt.Sprintf("%d", id),
		OldValues:  oldValues,
		NewValues:  newValues,
		Actor:      actor,
	})
}
