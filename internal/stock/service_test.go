package stock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Drak-01/stock-saas-sub001/internal/fixed"
	"github.com/Drak-01/stock-saas-sub001/internal/shared"
)

type locKey struct {
	warehouseID int64
	productID   int64
}

type memoryStockRepo struct {
	locations map[locKey]Location
	movements []Movement
	nextID    int64
}

type memoryStockTx struct {
	repo *memoryStockRepo
}

func newMemoryStockRepo() *memoryStockRepo {
	return &memoryStockRepo{locations: make(map[locKey]Location)}
}

func (r *memoryStockRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	// The fake snapshots state up front so a failing callback rolls back
	// like the real repeatable-read transaction does.
	before := make(map[locKey]Location, len(r.locations))
	for k, v := range r.locations {
		before[k] = v
	}
	moves := len(r.movements)
	if err := fn(ctx, &memoryStockTx{repo: r}); err != nil {
		r.locations = before
		r.movements = r.movements[:moves]
		return err
	}
	return nil
}

func (r *memoryStockRepo) GetLocations(ctx context.Context, productID int64) ([]Location, error) {
	var result []Location
	for _, loc := range r.locations {
		if loc.ProductID == productID {
			result = append(result, loc)
		}
	}
	return result, nil
}

func (r *memoryStockRepo) GetMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	var result []Movement
	for _, m := range r.movements {
		if m.ProductID != filter.ProductID {
			continue
		}
		if filter.WarehouseID != 0 && m.WarehouseID != filter.WarehouseID {
			continue
		}
		result = append(result, m)
	}
	return result, nil
}

func (r *memoryStockRepo) HasMovementsSince(ctx context.Context, productID int64, since time.Time) (bool, error) {
	for _, m := range r.movements {
		if m.ProductID == productID && !m.PostedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (tx *memoryStockTx) GetLocationForUpdate(ctx context.Context, warehouseID, productID int64) (Location, error) {
	loc, ok := tx.repo.locations[locKey{warehouseID, productID}]
	if !ok {
		return Location{}, ErrLocationNotFound
	}
	return loc, nil
}

func (tx *memoryStockTx) CreateLocation(ctx context.Context, loc Location) (Location, error) {
	tx.repo.nextID++
	loc.ID = tx.repo.nextID
	loc.OnHand = fixed.Zero()
	loc.Reserved = fixed.Zero()
	loc.Ordered = fixed.Zero()
	tx.repo.locations[locKey{loc.WarehouseID, loc.ProductID}] = loc
	return loc, nil
}

func (tx *memoryStockTx) UpsertLocation(ctx context.Context, loc Location) error {
	key := locKey{loc.WarehouseID, loc.ProductID}
	if _, ok := tx.repo.locations[key]; !ok {
		return ErrLocationNotFound
	}
	tx.repo.locations[key] = loc
	return nil
}

func (tx *memoryStockTx) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	tx.repo.nextID++
	m.ID = tx.repo.nextID
	tx.repo.movements = append(tx.repo.movements, m)
	return m.ID, nil
}

type staticPolicy map[int64]bool

func (p staticPolicy) AllowNegativeStock(ctx context.Context, warehouseID int64) (bool, error) {
	return p[warehouseID], nil
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

func seed(t *testing.T, svc *Service, warehouseID, productID int64, qty, cost string) {
	t.Helper()
	input := DeltaInput{
		ProductID:   productID,
		WarehouseID: warehouseID,
		Delta:       fixed.MustParse(qty),
		Reason:      "seed",
		Actor:       shared.System,
	}
	if cost != "" {
		c := fixed.MustParse(cost)
		input.UnitCost = &c
	}
	_, err := svc.ApplyDelta(context.Background(), input)
	require.NoError(t, err)
}

func TestApplyDeltaCreatesLocationLazily(t *testing.T) {
	repo := newMemoryStockRepo()
	activity := &recordedActivity{}
	svc := NewService(repo, staticPolicy{}, nil, activity)

	loc, err := svc.ApplyDelta(context.Background(), DeltaInput{
		ProductID:   1,
		WarehouseID: 2,
		Delta:       fixed.MustParse("5"),
		Reason:      "initial receipt",
		Actor:       shared.Actor{ID: 7},
	})
	require.NoError(t, err)
	require.Equal(t, "5.000000", loc.OnHand.StringFixed(fixed.ScaleQuantity))
	require.Nil(t, loc.AvgCost)

	require.Len(t, repo.movements, 1)
	require.Equal(t, "stock.delta", activity.entries[0].Action)
	require.Equal(t, int64(7), activity.entries[0].Actor.ID)
}

func TestApplyDeltaRejectsNegativeStock(t *testing.T) {
	repo := newMemoryStockRepo()
	svc := NewService(repo, staticPolicy{2: false}, nil, nil)
	ctx := context.Background()
	seed(t, svc, 2, 1, "5", "")

	_, err := svc.ApplyDelta(ctx, DeltaInput{
		ProductID:   1,
		WarehouseID: 2,
		Delta:       fixed.MustParse("-8"),
		Reason:      "issue",
		Actor:       shared.System,
	})
	require.ErrorIs(t, err, ErrNegativeStock)

	// The rejected delta leaves the location and ledger untouched.
	loc := repo.locations[locKey{2, 1}]
	require.Equal(t, "5.000000", loc.OnHand.StringFixed(fixed.ScaleQuantity))
	require.Len(t, repo.movements, 1)
}

func TestApplyDeltaAllowsNegativeWhenPolicyPermits(t *testing.T) {
	repo := newMemoryStockRepo()
	svc := NewService(repo, staticPolicy{2: true}, nil, nil)
	seed(t, svc, 2, 1, "5", "")

	loc, err := svc.ApplyDelta(context.Background(), DeltaInput{
		ProductID:   1,
		WarehouseID: 2,
		Delta:       fixed.MustParse("-8"),
		Reason:      "backorder issue",
		Actor:       shared.System,
	})
	require.NoError(t, err)
	require.Equal(t, "-3.000000", loc.OnHand.StringFixed(fixed.ScaleQuantity))
}

func TestApplyDeltaRejectsZeroAndNegativeCost(t *testing.T) {
	svc := NewService(newMemoryStockRepo(), staticPolicy{}, nil, nil)
	ctx := context.Background()

	_, err := svc.ApplyDelta(ctx, DeltaInput{ProductID: 1, WarehouseID: 2, Delta: fixed.Zero()})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	bad := fixed.MustParse("-1")
	_, err = svc.ApplyDelta(ctx, DeltaInput{ProductID: 1, WarehouseID: 2, Delta: fixed.MustParse("1"), UnitCost: &bad})
	require.ErrorIs(t, err, ErrInvalidUnitCost)
}

func TestMovingAverageCost(t *testing.T) {
	repo := newMemoryStockRepo()
	svc := NewService(repo, staticPolicy{}, nil, nil)
	ctx := context.Background()

	// 10 @ 2.0000 then 10 @ 4.0000 averages to 3.0000.
	seed(t, svc, 2, 1, "10", "2.0000")
	loc, err := svc.ApplyDelta(ctx, DeltaInput{
		ProductID:   1,
		WarehouseID: 2,
		Delta:       fixed.MustParse("10"),
		UnitCost:    ptr(fixed.MustParse("4.0000")),
		Reason:      "receipt",
		Actor:       shared.System,
	})
	require.NoError(t, err)
	require.NotNil(t, loc.AvgCost)
	require.Equal(t, "3.0000", loc.AvgCost.StringFixed(fixed.ScaleMoney))

	// Issues consume at the average without changing it.
	loc, err = svc.ApplyDelta(ctx, DeltaInput{
		ProductID:   1,
		WarehouseID: 2,
		Delta:       fixed.MustParse("-15"),
		Reason:      "issue",
		Actor:       shared.System,
	})
	require.NoError(t, err)
	require.Equal(t, "3.0000", loc.AvgCost.StringFixed(fixed.ScaleMoney))

	// An uncosted inbound keeps the established average.
	loc, err = svc.ApplyDelta(ctx, DeltaInput{
		ProductID:   1,
		WarehouseID: 2,
		Delta:       fixed.MustParse("5"),
		Reason:      "uncosted return",
		Actor:       shared.System,
	})
	require.NoError(t, err)
	require.Equal(t, "3.0000", loc.AvgCost.StringFixed(fixed.ScaleMoney))
}

func TestAdjustEarmarksNeverGoNegative(t *testing.T) {
	repo := newMemoryStockRepo()
	svc := NewService(repo, staticPolicy{}, nil, nil)
	ctx := context.Background()

	loc, err := svc.AdjustOrdered(ctx, DeltaInput{ProductID: 1, WarehouseID: 2, Delta: fixed.MustParse("20"), Actor: shared.System})
	require.NoError(t, err)
	require.Equal(t, "20.000000", loc.Ordered.StringFixed(fixed.ScaleQuantity))

	_, err = svc.AdjustOrdered(ctx, DeltaInput{ProductID: 1, WarehouseID: 2, Delta: fixed.MustParse("-25"), Actor: shared.System})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.AdjustReserved(ctx, DeltaInput{ProductID: 1, WarehouseID: 2, Delta: fixed.MustParse("-1"), Actor: shared.System})
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestTransferMovesBothLegsAtomically(t *testing.T) {
	repo := newMemoryStockRepo()
	svc := NewService(repo, staticPolicy{}, nil, nil)
	ctx := context.Background()
	seed(t, svc, 2, 1, "10", "2.5000")

	src, dst, err := svc.Transfer(ctx, TransferInput{
		ProductID:    1,
		SrcWarehouse: 2,
		DstWarehouse: 3,
		Quantity:     fixed.MustParse("4"),
		Reason:       "rebalance",
		Actor:        shared.System,
	})
	require.NoError(t, err)
	require.Equal(t, "6.000000", src.OnHand.StringFixed(fixed.ScaleQuantity))
	require.Equal(t, "4.000000", dst.OnHand.StringFixed(fixed.ScaleQuantity))
	require.NotNil(t, dst.AvgCost)
	require.Equal(t, "2.5000", dst.AvgCost.StringFixed(fixed.ScaleMoney))
	require.Len(t, repo.movements, 3)
}

func TestTransferFailsWhenSourceWouldGoNegative(t *testing.T) {
	repo := newMemoryStockRepo()
	svc := NewService(repo, staticPolicy{2: false}, nil, nil)
	ctx := context.Background()
	seed(t, svc, 2, 1, "3", "")

	_, _, err := svc.Transfer(ctx, TransferInput{
		ProductID:    1,
		SrcWarehouse: 2,
		DstWarehouse: 3,
		Quantity:     fixed.MustParse("5"),
		Actor:        shared.System,
	})
	require.ErrorIs(t, err, ErrNegativeStock)

	// Neither leg committed: the destination location was never created.
	require.Equal(t, "3.000000", repo.locations[locKey{2, 1}].OnHand.StringFixed(fixed.ScaleQuantity))
	_, ok := repo.locations[locKey{3, 1}]
	require.False(t, ok)
}

func TestTotalStockValue(t *testing.T) {
	repo := newMemoryStockRepo()
	fallback := fixed.MustParse("1.5000")
	svc := NewService(repo, staticPolicy{}, staticCatalog{1: &fallback}, nil)
	ctx := context.Background()

	seed(t, svc, 2, 1, "10", "2.0000")
	seed(t, svc, 3, 1, "4", "") // no average cost; valued at the catalog fallback

	v, err := svc.TotalStockValue(ctx, 1)
	require.NoError(t, err)
	require.Len(t, v.Breakdown, 2)
	require.NotNil(t, v.Total)
	// 10*2.0000 + 4*1.5000
	require.Equal(t, "26.0000", v.Total.StringFixed(fixed.ScaleMoney))
}

func TestTotalStockValueUnknownWithoutAnyCost(t *testing.T) {
	repo := newMemoryStockRepo()
	svc := NewService(repo, staticPolicy{}, staticCatalog{}, nil)
	ctx := context.Background()

	seed(t, svc, 2, 1, "10", "2.0000")
	seed(t, svc, 3, 1, "4", "")

	v, err := svc.TotalStockValue(ctx, 1)
	require.NoError(t, err)
	require.Nil(t, v.Total)
	var known *fixed.Decimal
	for _, entry := range v.Breakdown {
		if entry.WarehouseID == 2 {
			known = entry.Value
		}
	}
	require.NotNil(t, known)
	require.Equal(t, "20.0000", known.StringFixed(fixed.ScaleMoney))
}

func TestCanDelete(t *testing.T) {
	repo := newMemoryStockRepo()
	svc := NewService(repo, staticPolicy{}, nil, nil)
	ctx := context.Background()

	ok, err := svc.CanDelete(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)

	seed(t, svc, 2, 1, "5", "")
	ok, err = svc.CanDelete(ctx, 1)
	require.NoError(t, err)
	require.False(t, ok)

	// Draining the stock is not enough while recent movements remain.
	seed(t, svc, 2, 1, "-5", "")
	ok, err = svc.CanDelete(ctx, 1)
	require.NoError(t, err)
	require.False(t, ok)

	// Age the ledger past the retention window.
	for i := range repo.movements {
		repo.movements[i].PostedAt = time.Now().UTC().Add(-DeletionWindow - time.Hour)
	}
	ok, err = svc.CanDelete(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestActivityFailureAbortsDelta(t *testing.T) {
	repo := newMemoryStockRepo()
	svc := NewService(repo, staticPolicy{}, nil, failingActivity{})

	_, err := svc.ApplyDelta(context.Background(), DeltaInput{
		ProductID:   1,
		WarehouseID: 2,
		Delta:       fixed.MustParse("5"),
		Reason:      "receipt",
		Actor:       shared.System,
	})
	require.Error(t, err)
	require.Empty(t, repo.movements)
	require.Empty(t, repo.locations)
}

type failingActivity struct{}

func (failingActivity) Record(ctx context.Context, act shared.Activity) error {
	return context.DeadlineExceeded
}

func ptr(d fixed.Decimal) *fixed.Decimal { return &d }

type countingObserver struct {
	refs []string
}

func (o *countingObserver) ObserveMovement(refModule string) {
	o.refs = append(o.refs, refModule)
}

func TestMovementsAreObserved(t *testing.T) {
	repo := newMemoryStockRepo()
	svc := NewService(repo, staticPolicy{}, nil, nil)
	observer := &countingObserver{}
	svc.SetMovementObserver(observer)

	seed(t, svc, 2, 1, "10", "2.0000")
	require.Equal(t, []string{""}, observer.refs)

	// A rejected delta posts no movement and counts nothing.
	_, err := svc.ApplyDelta(context.Background(), DeltaInput{
		ProductID:   1,
		WarehouseID: 2,
		Delta:       fixed.MustParse("-50"),
		Reason:      "issue",
		Actor:       shared.System,
	})
	require.ErrorIs(t, err, ErrNegativeStock)
	require.Len(t, observer.refs, 1)

	_, _, err = svc.Transfer(context.Background(), TransferInput{
		ProductID:    1,
		SrcWarehouse: 2,
		DstWarehouse: 3,
		Quantity:     fixed.MustParse("4"),
		Reason:       "rebalance",
		Actor:        shared.System,
	})
	require.NoError(t, err)
	require.Equal(t, []string{"", "STOCK", "STOCK"}, observer.refs)
}
