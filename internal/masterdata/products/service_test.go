package products

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Drak-01/stock-saas-sub001/internal/fixed"
	"github.com/Drak-01/stock-saas-sub001/internal/masterdata/shared"
	sharedcore "github.com/Drak-01/stock-saas-sub001/internal/shared"
)

type memoryProductRepo struct {
	nextID   int64
	products map[int64]Product
}

func newMemoryProductRepo() *memoryProductRepo {
	return &memoryProductRepo{nextID: 1, products: map[int64]Product{}}
}

func (m *memoryProductRepo) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	var out []Product
	for _, p := range m.products {
		if p.DeletedAt == nil {
			out = append(out, p)
		}
	}
	return out, len(out), nil
}

func (m *memoryProductRepo) ActiveProductIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	for _, p := range m.products {
		if p.DeletedAt == nil && p.IsActive {
			ids = append(ids, p.ID)
		}
	}
	return ids, nil
}

func (m *memoryProductRepo) Get(ctx context.Context, id int64) (Product, error) {
	p, ok := m.products[id]
	if !ok {
		return Product{}, shared.ErrNotFound
	}
	return p, nil
}

func (m *memoryProductRepo) Create(ctx context.Context, product Product) (Product, error) {
	product.ID = m.nextID
	m.nextID++
	product.CreatedAt = time.Now().UTC()
	product.UpdatedAt = product.CreatedAt
	m.products[product.ID] = product
	return product, nil
}

func (m *memoryProductRepo) Update(ctx context.Context, id int64, product Product) error {
	current, ok := m.products[id]
	if !ok {
		return shared.ErrNotFound
	}
	product.ID = id
	product.CreatedAt = current.CreatedAt
	product.UpdatedAt = time.Now().UTC()
	m.products[id] = product
	return nil
}

func (m *memoryProductRepo) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	p, ok := m.products[id]
	if !ok {
		return shared.ErrNotFound
	}
	p.DeletedAt = &at
	m.products[id] = p
	return nil
}

type staticGuard struct{ ok bool }

func (g staticGuard) CanDelete(ctx context.Context, productID int64) (bool, error) {
	return g.ok, nil
}

type recordedActivity struct {
	records []sharedcore.Activity
}

func (r *recordedActivity) Record(ctx context.Context, act sharedcore.Activity) error {
	r.records = append(r.records, act)
	return nil
}

func testActor() sharedcore.Actor {
	return sharedcore.Actor{ID: 7, IP: "203.0.113.9"}
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(newMemoryProductRepo(), nil, nil)

	_, err := svc.Create(context.Background(), Product{Name: "no code"}, testActor())
	require.Error(t, err)

	neg := fixed.MustParse("-1")
	_, err = svc.Create(context.Background(), Product{Code: "P1", Name: "bad cost", CostPrice: &neg}, testActor())
	require.Error(t, err)
}

func TestCreateRecordsActivity(t *testing.T) {
	activity := &recordedActivity{}
	svc := NewService(newMemoryProductRepo(), nil, activity)

	cost := fixed.MustParse("14.5")
	created, err := svc.Create(context.Background(), Product{Code: "RM-STEEL", Name: "Steel sheet", CostPrice: &cost, IsActive: true}, testActor())
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	require.Len(t, activity.records, 1)
	require.Equal(t, "product.create", activity.records[0].Action)
	require.Nil(t, activity.records[0].OldValues)
	require.Equal(t, "14.5000", activity.records[0].NewValues["cost_price"])
}

func TestUpdateRejectsTombstoned(t *testing.T) {
	repo := newMemoryProductRepo()
	svc := NewService(repo, nil, nil)

	created, err := svc.Create(context.Background(), Product{Code: "P1", Name: "one"}, testActor())
	require.NoError(t, err)
	require.NoError(t, repo.SoftDelete(context.Background(), created.ID, time.Now().UTC()))

	err = svc.Update(context.Background(), created.ID, Product{Code: "P1", Name: "renamed"}, testActor())
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestDeleteRefusedWhileStocked(t *testing.T) {
	repo := newMemoryProductRepo()
	svc := NewService(repo, staticGuard{ok: false}, nil)

	created, err := svc.Create(context.Background(), Product{Code: "P1", Name: "one"}, testActor())
	require.NoError(t, err)

	err = svc.Delete(context.Background(), created.ID, testActor())
	require.Error(t, err)

	got, err := repo.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.False(t, got.IsDeleted())
}

func TestDeleteTombstones(t *testing.T) {
	repo := newMemoryProductRepo()
	activity := &recordedActivity{}
	svc := NewService(repo, staticGuard{ok: true}, activity)

	created, err := svc.Create(context.Background(), Product{Code: "P1", Name: "one"}, testActor())
	require.NoError(t, err)
	require.NoError(t, svc.Delete(context.Background(), created.ID, testActor()))

	// Tombstoned rows stay resolvable by Get but drop out of listings.
	got, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.True(t, got.IsDeleted())

	listed, total, err := svc.List(context.Background(), shared.ListFilters{})
	require.NoError(t, err)
	require.Empty(t, listed)
	require.Zero(t, total)

	require.Equal(t, "product.delete", activity.records[len(activity.records)-1].Action)

	err = svc.Delete(context.Background(), created.ID, testActor())
	require.ErrorIs(t, err, shared.ErrNotFound)
}
