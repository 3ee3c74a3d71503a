package warehouses

import (
	"context"
	"fmt"
	"time"

	"github.com/Drak-01/stock-saas-sub001/internal/masterdata/shared"
	sharedcore "github.com/Drak-01/stock-saas-sub001/internal/shared"
)

// ActivityPort records masterdata mutations.
type ActivityPort interface {
	Record(ctx context.Context, act sharedcore.Activity) error
}

type Service struct {
	repo     Repository
	activity ActivityPort
}

func NewService(repo Repository, activity ActivityPort) *Service {
	return &Service{repo: repo, activity: activity}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Warehouse, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Warehouse, error) {
	if id <= 0 {
		return Warehouse{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}

// AllowNegativeStock resolves the negative-stock policy for a warehouse.
// The zero-value settings reject negative stock.
func (s *Service) AllowNegativeStock(ctx context.Context, id int64) (bool, error) {
	w, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return w.Settings.AllowNegativeStock, nil
}

func (s *Service) Create(ctx context.Context, warehouse Warehouse, actor sharedcore.Actor) (Warehouse, error) {
	if err := s.validate(warehouse); err != nil {
		return Warehouse{}, err
	}
	created, err := s.repo.Create(ctx, warehouse)
	if err != nil {
		return Warehouse{}, err
	}
	if err := s.record(ctx, "warehouse.create", created.ID, nil, created.Snapshot(), actor); err != nil {
		return Warehouse{}, err
	}
	return created, nil
}

func (s *Service) Update(ctx context.Context, id int64, warehouse Warehouse, actor sharedcore.Actor) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	if err := s.validate(warehouse); err != nil {
		return err
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Update(ctx, id, warehouse); err != nil {
		return err
	}
	warehouse.ID = id
	return s.record(ctx, "warehouse.update", id, current.Snapshot(), warehouse.Snapshot(), actor)
}

func (s *Service) Delete(ctx context.Context, id int64, actor sharedcore.Actor) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, id, time.Now().UTC()); err != nil {
		return err
	}
	return s.record(ctx, "warehouse.delete", id, current.Snapshot(), nil, actor)
}

func (s *Service) record(ctx context.Context, action string, id int64, oldValues, newValues map[string]any, actor sharedcore.Actor) error {
	if s.activity == nil {
		return nil
	}
	return s.activity.Record(ctx, sharedcore.Activity{
		Action:     action,
		EntityType: "warehouse",
		EntityID:   fmt.Sprintf("%d", id),
		OldValues:  oldValues,
		NewValues:  newValues,
		Actor:      actor,
	})
}
