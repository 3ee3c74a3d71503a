package suppliers

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

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Supplier, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Supplier, error) {
	if id <= 0 {
		return Supplier{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, supplier Supplier, actor sharedcore.Actor) (Supplier, error) {
	if err := s.validate(supplier); err != nil {
		return Supplier{}, err
	}
	created, err := s.repo.Create(ctx, supplier)
	if err != nil {
		return Supplier{}, err
	}
	if err := s.record(ctx, "supplier.create", created.ID, nil, created.Snapshot(), actor); err != nil {
		return Supplier{}, err
	}
	return created, nil
}

func (s *Service) Update(ctx context.Context, id int64, supplier Supplier, actor sharedcore.Actor) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	if err := s.validate(supplier); err != nil {
		return err
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Update(ctx, id, supplier); err != nil {
		return err
	}
	supplier.ID = id
	return s.record(ctx, "supplier.update", id, current.Snapshot(), supplier.Snapshot(), actor)
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
	return s.record(ctx, "supplier.delete", id, current.Snapshot(), nil, actor)
}

func (s *Service) record(ctx context.Context, action string, id int64, oldValues, newValues map[string]any, actor sharedcore.Actor) error {
	if s.activity == nil {
		return nil
	}
	return s.activity.Record(ctx, sharedcore.Activity{
		Action:     action,
		EntityType: "supplier",
		EntityID:   fmt.Sprintf("%d", id),
		OldValues:  oldValues,
		NewValues:  newValues,
		Actor:      actor,
	})
}
