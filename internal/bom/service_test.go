package bom

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Drak-01/stock-saas-sub001/internal/fixed"
	"github.com/Drak-01/stock-saas-sub001/internal/shared"
)

type memoryBOMRepo struct {
	boms   map[int64]BillOfMaterials
	nextID int64
}

type memoryBOMTx struct {
	repo *memoryBOMRepo
}

func newMemoryBOMRepo() *memoryBOMRepo {
	return &memoryBOMRepo{boms: make(map[int64]BillOfMaterials)}
}

func (r *memoryBOMRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	// Snapshot up front so a failing callback rolls back like the real
	// repeatable-read transaction does.
	before := make(map[int64]BillOfMaterials, len(r.boms))
	for id, b := range r.boms {
		b.Lines = append([]Line(nil), b.Lines...)
		before[id] = b
	}
	if err := fn(ctx, &memoryBOMTx{repo: r}); err != nil {
		r.boms = before
		return err
	}
	return nil
}

func (r *memoryBOMRepo) GetBOM(ctx context.Context, id int64) (BillOfMaterials, error) {
	b, ok := r.boms[id]
	if !ok {
		return BillOfMaterials{}, ErrNotFound
	}
	b.Lines = append([]Line(nil), b.Lines...)
	return b, nil
}

func (r *memoryBOMRepo) GetBOMByProduct(ctx context.Context, productID int64) (BillOfMaterials, error) {
	for _, b := range r.boms {
		if b.ProductID == productID && !b.IsDeleted() {
			return r.GetBOM(ctx, b.ID)
		}
	}
	return BillOfMaterials{}, ErrNotFound
}

func (tx *memoryBOMTx) CreateBOM(ctx context.Context, b BillOfMaterials) (int64, error) {
	tx.repo.nextID++
	b.ID = tx.repo.nextID
	tx.repo.boms[b.ID] = b
	return b.ID, nil
}

func (tx *memoryBOMTx) UpdateBOM(ctx context.Context, id int64, quantityProduced fixed.Decimal) error {
	b, ok := tx.repo.boms[id]
	if !ok || b.IsDeleted() {
		return ErrNotFound
	}
	b.QuantityProduced = quantityProduced
	tx.repo.boms[id] = b
	return nil
}

func (tx *memoryBOMTx) InsertLine(ctx context.Context, line Line) (int64, error) {
	tx.repo.nextID++
	line.ID = tx.repo.nextID
	b := tx.repo.boms[line.BOMID]
	b.Lines = append(b.Lines, line)
	tx.repo.boms[line.BOMID] = b
	return line.ID, nil
}

func (tx *memoryBOMTx) DeleteLines(ctx context.Context, bomID int64) error {
	b := tx.repo.boms[bomID]
	b.Lines = nil
	tx.repo.boms[bomID] = b
	return nil
}

func (tx *memoryBOMTx) SoftDeleteBOM(ctx context.Context, id int64, at time.Time) error {
	b, ok := tx.repo.boms[id]
	if !ok || b.IsDeleted() {
		return ErrNotFound
	}
	b.DeletedAt = &at
	tx.repo.boms[id] = b
	return nil
}

type staticCatalog map[int64]*fixed.Decimal

func (c staticCatalog) CostPrice(ctx context.Context, productID int64) (*fixed.Decimal, error) {
	return c[productID], nil
}

type recordedActivity struct {
	entries []shared.Activity
}

func (r *recordedActivity) Record(ctx context.Context, act shared.Activity) error {
	r.entries = append(r.entries, act)
	return nil
}

func TestCreateBOM(t *testing.T) {
	repo := newMemoryBOMRepo()
	activity := &recordedActivity{}
	svc := NewService(repo, nil, activity)
	ctx := context.Background()

	b, err := svc.Create(ctx, CreateInput{
		ProductID:        99,
		QuantityProduced: fixed.MustParse("100"),
		Lines: []LineInput{
			{ComponentID: 10, QuantityRequired: fixed.MustParse("10"), WasteFactor: fixed.MustParse("5.00"), Sequence: 1},
			{ComponentID: 11, QuantityRequired: fixed.MustParse("4"), Sequence: 2},
		},
	}, shared.Actor{ID: 7})
	require.NoError(t, err)
	require.NotZero(t, b.ID)
	require.Len(t, b.Lines, 2)
	require.Equal(t, "10.500000", b.Lines[0].EffectiveQuantity().StringFixed(fixed.ScaleQuantity))
	require.Len(t, activity.entries, 1)
	require.Equal(t, "bom.create", activity.entries[0].Action)
}

func TestCreateBOMRejectsInvalidInput(t *testing.T) {
	svc := NewService(newMemoryBOMRepo(), nil, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{ProductID: 99, QuantityProduced: fixed.MustParse("100")}, shared.System)
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(ctx, CreateInput{
		ProductID:        99,
		QuantityProduced: fixed.Zero(),
		Lines:            []LineInput{{ComponentID: 10, QuantityRequired: fixed.MustParse("1"), Sequence: 1}},
	}, shared.System)
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(ctx, CreateInput{
		ProductID:        99,
		QuantityProduced: fixed.MustParse("100"),
		Lines: []LineInput{
			{ComponentID: 10, QuantityRequired: fixed.MustParse("1"), Sequence: 1},
			{ComponentID: 10, QuantityRequired: fixed.MustParse("2"), Sequence: 2},
		},
	}, shared.System)
	require.ErrorIs(t, err, ErrValidation)
}

func TestReplaceLinesIsAtomicSwap(t *testing.T) {
	repo := newMemoryBOMRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	b, err := svc.Create(ctx, CreateInput{
		ProductID:        99,
		QuantityProduced: fixed.MustParse("100"),
		Lines:            []LineInput{{ComponentID: 10, QuantityRequired: fixed.MustParse("10"), Sequence: 1}},
	}, shared.System)
	require.NoError(t, err)

	updated, err := svc.ReplaceLines(ctx, b.ID, fixed.MustParse("50"), []LineInput{
		{ComponentID: 20, QuantityRequired: fixed.MustParse("2"), WasteFactor: fixed.MustParse("10.00"), Sequence: 1},
		{ComponentID: 21, QuantityRequired: fixed.MustParse("3"), Sequence: 2},
	}, shared.System)
	require.NoError(t, err)
	require.Len(t, updated.Lines, 2)
	require.Equal(t, int64(20), updated.Lines[0].ComponentID)
	require.Equal(t, "50.000000", updated.QuantityProduced.StringFixed(fixed.ScaleQuantity))

	stored, err := svc.Get(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, stored.Lines, 2)
}

func TestExplodeForProduction(t *testing.T) {
	repo := newMemoryBOMRepo()
	price := fixed.MustParse("2.5000")
	svc := NewService(repo, staticCatalog{10: &price}, nil)
	ctx := context.Background()

	b, err := svc.Create(ctx, CreateInput{
		ProductID:        99,
		QuantityProduced: fixed.MustParse("100"),
		Lines:            []LineInput{{ComponentID: 10, QuantityRequired: fixed.MustParse("10"), WasteFactor: fixed.MustParse("5.00"), Sequence: 1}},
	}, shared.System)
	require.NoError(t, err)

	exp, err := svc.ExplodeForProduction(ctx, b.ID, fixed.MustParse("50"))
	require.NoError(t, err)
	require.Len(t, exp.Requirements, 1)
	require.Equal(t, "5.250000", exp.Requirements[0].RequiredQuantity.StringFixed(fixed.ScaleQuantity))
	require.NotNil(t, exp.TotalCost)
	require.Equal(t, "13.1250", exp.TotalCost.StringFixed(fixed.ScaleMoney))
}

func TestDeleteBOM(t *testing.T) {
	repo := newMemoryBOMRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	b, err := svc.Create(ctx, CreateInput{
		ProductID:        99,
		QuantityProduced: fixed.MustParse("1"),
		Lines:            []LineInput{{ComponentID: 10, QuantityRequired: fixed.MustParse("1"), Sequence: 1}},
	}, shared.System)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, b.ID, shared.System))
	require.ErrorIs(t, svc.Delete(ctx, b.ID, shared.System), ErrNotFound)

	// Tombstoned aggregates stay readable for historical references.
	stored, err := svc.Get(ctx, b.ID)
	require.NoError(t, err)
	require.True(t, stored.IsDeleted())
}

type failingActivity struct{}

func (failingActivity) Record(ctx context.Context, act shared.Activity) error {
	return errors.New("activity store unavailable")
}

func TestRecordingFailureAbortsMutation(t *testing.T) {
	repo := newMemoryBOMRepo()
	svc := NewService(repo, nil, failingActivity{})
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{
		ProductID:        99,
		QuantityProduced: fixed.MustParse("1"),
		Lines:            []LineInput{{ComponentID: 10, QuantityRequired: fixed.MustParse("1"), Sequence: 1}},
	}, shared.System)
	require.Error(t, err)
	require.Empty(t, repo.boms)
}
