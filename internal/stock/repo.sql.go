package stock

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Drak-01/stock-saas-sub001/internal/platform/db"
)

// Repository persists the stock ledger in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	GetLocationForUpdate(ctx context.Context, warehouseID, productID int64) (Location, error)
	CreateLocation(ctx context.Context, loc Location) (Location, error)
	UpsertLocation(ctx context.Context, loc Location) error
	InsertMovement(ctx context.Context, m Movement) (int64, error)
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("stock repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const locationColumns = `id, product_id, warehouse_id, on_hand, reserved, ordered, avg_cost, updated_at`

// GetLocations lists all locations holding the product.
func (r *Repository) GetLocations(ctx context.Context, productID int64) ([]Location, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+locationColumns+` FROM stock_locations WHERE product_id=$1 ORDER BY warehouse_id ASC`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []Location
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, loc)
	}
	return result, rows.Err()
}

// GetMovements lists ledger entries matching the filter.
func (r *Repository) GetMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, warehouse_id, delta, unit_cost, reason, ref_module, ref_id, posted_at, actor_id
FROM stock_movements
WHERE product_id=$1
  AND ($2::bigint = 0 OR warehouse_id=$2)
  AND posted_at BETWEEN COALESCE($3, '-infinity') AND COALESCE($4, 'infinity')
ORDER BY posted_at ASC, id ASC
LIMIT $5`, filter.ProductID, filter.WarehouseID, nullTime(filter.From), nullTime(filter.To), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []Movement
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.WarehouseID, &m.Delta, &m.UnitCost, &m.Reason, &m.RefModule, &m.RefID, &m.PostedAt, &m.ActorID); err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

// HasMovementsSince reports whether any movement touched the product after
// the cutoff.
func (r *Repository) HasMovementsSince(ctx context.Context, productID int64, since time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM stock_movements WHERE product_id=$1 AND posted_at >= $2)`, productID, since).Scan(&exists)
	return exists, err
}

func (r *txRepository) GetLocationForUpdate(ctx context.Context, warehouseID, productID int64) (Location, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+locationColumns+` FROM stock_locations
WHERE warehouse_id=$1 AND product_id=$2 FOR UPDATE`, warehouseID, productID)
	loc, err := scanLocation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Location{}, ErrLocationNotFound
	}
	return loc, err
}

func (r *txRepository) CreateLocation(ctx context.Context, loc Location) (Location, error) {
	// Two callers can race to create the same pair; the conflict clause
	// keeps the unique (product, warehouse) invariant and the re-select
	// takes the row lock either way.
	_, err := r.tx.Exec(ctx, `INSERT INTO stock_locations (product_id, warehouse_id, on_hand, reserved, ordered, updated_at)
VALUES ($1, $2, 0, 0, 0, NOW()) ON CONFLICT (product_id, warehouse_id) DO NOTHING`, loc.ProductID, loc.WarehouseID)
	if err != nil {
		return Location{}, err
	}
	return r.GetLocationForUpdate(ctx, loc.WarehouseID, loc.ProductID)
}

func (r *txRepository) UpsertLocation(ctx context.Context, loc Location) error {
	tag, err := r.tx.Exec(ctx, `UPDATE stock_locations SET on_hand=$1, reserved=$2, ordered=$3, avg_cost=$4, updated_at=NOW()
WHERE warehouse_id=$5 AND product_id=$6`, loc.OnHand, loc.Reserved, loc.Ordered, loc.AvgCost, loc.WarehouseID, loc.ProductID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLocationNotFound
	}
	return nil
}

func (r *txRepository) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_movements (product_id, warehouse_id, delta, unit_cost, reason, ref_module, ref_id, posted_at, actor_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
		m.ProductID, m.WarehouseID, m.Delta, m.UnitCost, m.Reason, m.RefModule, m.RefID, m.PostedAt, m.ActorID).Scan(&id)
	return id, err
}

func scanLocation(row pgx.Row) (Location, error) {
	var loc Location
	err := row.Scan(&loc.ID, &loc.ProductID, &loc.WarehouseID, &loc.OnHand, &loc.Reserved, &loc.Ordered, &loc.AvgCost, &loc.UpdatedAt)
	return loc, err
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
