package bom

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Drak-01/stock-saas-sub001/internal/fixed"
	"github.com/Drak-01/stock-saas-sub001/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetBOM(ctx context.Context, id int64) (BillOfMaterials, error)
	GetBOMByProduct(ctx context.Context, productID int64) (BillOfMaterials, error)
}

// CatalogPort resolves component cost prices for explosion.
type CatalogPort interface {
	CostPrice(ctx context.Context, productID int64) (*fixed.Decimal, error)
}

// ActivityPort records BOM mutations.
type ActivityPort interface {
	Record(ctx context.Context, act shared.Activity) error
}

// Service owns BOM aggregate mutation and explosion orchestration.
type Service struct {
	repo     RepositoryPort
	catalog  CatalogPort
	activity ActivityPort
	validate *validator.Validate
}

// NewService constructs the BOM service.
func NewService(repo RepositoryPort, catalog CatalogPort, activity ActivityPort) *Service {
	return &Service{repo: repo, catalog: catalog, activity: activity, validate: validator.New()}
}

// LineInput describes one component line.
type LineInput struct {
	ComponentID      int64         `validate:"required,gt=0"`
	QuantityRequired fixed.Decimal `validate:"-"`
	WasteFactor      fixed.Decimal `validate:"-"`
	Sequence         int32         `validate:"required,gt=0"`
}

// CreateInput describes the BOM creation payload.
type CreateInput struct {
	ProductID        int64         `validate:"required,gt=0"`
	QuantityProduced fixed.Decimal `validate:"-"`
	Lines            []LineInput   `validate:"required,min=1,dive"`
}

// Create persists the BOM header and lines in one unit of work.
func (s *Service) Create(ctx context.Context, input CreateInput, actor shared.Actor) (BillOfMaterials, error) {
	if err := s.validate.Struct(input); err != nil {
		return BillOfMaterials{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if !input.QuantityProduced.IsPositive() {
		return BillOfMaterials{}, fmt.Errorf("%w: quantity produced must be > 0", ErrValidation)
	}
	lines, err := buildLines(0, input.Lines)
	if err != nil {
		return BillOfMaterials{}, err
	}

	b := BillOfMaterials{ProductID: input.ProductID, QuantityProduced: input.QuantityProduced}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.CreateBOM(ctx, b)
		if err != nil {
			return err
		}
		b.ID = id
		for i := range lines {
			lines[i].BOMID = id
			lineID, err := tx.InsertLine(ctx, lines[i])
			if err != nil {
				return err
			}
			lines[i].ID = lineID
		}
		b.Lines = lines
		return s.record(ctx, "bom.create", b.ID, nil, b.Snapshot(), actor)
	})
	if err != nil {
		return BillOfMaterials{}, err
	}
	return b, nil
}

// ReplaceLines swaps the whole line set atomically: remove all, re-add.
// The declared output quantity may change in the same call.
func (s *Service) ReplaceLines(ctx context.Context, bomID int64, quantityProduced fixed.Decimal, inputs []LineInput, actor shared.Actor) (BillOfMaterials, error) {
	if len(inputs) == 0 {
		return BillOfMaterials{}, fmt.Errorf("%w: at least one line required", ErrValidation)
	}
	if !quantityProduced.IsPositive() {
		return BillOfMaterials{}, fmt.Errorf("%w: quantity produced must be > 0", ErrValidation)
	}
	current, err := s.repo.GetBOM(ctx, bomID)
	if err != nil {
		return BillOfMaterials{}, err
	}
	if current.IsDeleted() {
		return BillOfMaterials{}, ErrNotFound
	}
	lines, err := buildLines(bomID, inputs)
	if err != nil {
		return BillOfMaterials{}, err
	}

	updated := current
	updated.QuantityProduced = quantityProduced
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateBOM(ctx, bomID, quantityProduced); err != nil {
			return err
		}
		if err := tx.DeleteLines(ctx, bomID); err != nil {
			return err
		}
		for i := range lines {
			lineID, err := tx.InsertLine(ctx, lines[i])
			if err != nil {
				return err
			}
			lines[i].ID = lineID
		}
		updated.Lines = lines
		return s.record(ctx, "bom.replace_lines", bomID, current.Snapshot(), updated.Snapshot(), actor)
	})
	if err != nil {
		return BillOfMaterials{}, err
	}
	return updated, nil
}

// Get loads a BOM aggregate.
func (s *Service) Get(ctx context.Context, id int64) (BillOfMaterials, error) {
	return s.repo.GetBOM(ctx, id)
}

// Delete tombstones the BOM. Lines remain resolvable for history.
func (s *Service) Delete(ctx context.Context, id int64, actor shared.Actor) error {
	current, err := s.repo.GetBOM(ctx, id)
	if err != nil {
		return err
	}
	if current.IsDeleted() {
		return ErrNotFound
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.SoftDeleteBOM(ctx, id, time.Now().UTC()); err != nil {
			return err
		}
		return s.record(ctx, "bom.delete", id, current.Snapshot(), nil, actor)
	})
}

// ExplodeForProduction explodes the BOM into component requirements and
// costs for the given production target, resolving component cost prices
// through the catalog.
func (s *Service) ExplodeForProduction(ctx context.Context, bomID int64, quantityToProduce fixed.Decimal) (Explosion, error) {
	if !quantityToProduce.IsPositive() {
		return Explosion{}, fmt.Errorf("%w: production quantity must be > 0", ErrValidation)
	}
	b, err := s.repo.GetBOM(ctx, bomID)
	if err != nil {
		return Explosion{}, err
	}
	if b.IsDeleted() {
		return Explosion{}, ErrNotFound
	}

	costs := make(map[int64]*fixed.Decimal, len(b.Lines))
	if s.catalog != nil {
		for _, line := range b.Lines {
			cost, err := s.catalog.CostPrice(ctx, line.ComponentID)
			if err != nil {
				return Explosion{}, err
			}
			costs[line.ComponentID] = cost
		}
	}
	return Explode(b, quantityToProduce, func(componentID int64) *fixed.Decimal {
		return costs[componentID]
	})
}

func buildLines(bomID int64, inputs []LineInput) ([]Line, error) {
	seen := make(map[int64]bool, len(inputs))
	lines := make([]Line, 0, len(inputs))
	for _, in := range inputs {
		// At most one active line per (BOM, component) pair.
		if seen[in.ComponentID] {
			return nil, fmt.Errorf("%w: duplicate component %d", ErrValidation, in.ComponentID)
		}
		seen[in.ComponentID] = true
		line, err := NewLine(bomID, in.ComponentID, in.QuantityRequired, in.WasteFactor, in.Sequence)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func (s *Service) record(ctx context.Context, action string, id int64, oldValues, newValues map[string]any, actor shared.Actor) error {
	if s.activity == nil {
		return nil
	}
	return s.activity.Record(ctx, shared.Activity{
		Action:     action,
		EntityType: "bom",
		EntityID:   fmt.Sprintf("%d", id),
		OldValues:  oldValues,
		NewValues:  newValues,
		Actor:      actor,
	})
}
