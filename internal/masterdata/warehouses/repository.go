package warehouses

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Drak-01/stock-saas-sub001/internal/masterdata/shared"
)

type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Warehouse, int, error)
	Get(ctx context.Context, id int64) (Warehouse, error)
	Create(ctx context.Context, warehouse Warehouse) (Warehouse, error)
	Update(ctx context.Context, id int64, warehouse Warehouse) error
	SoftDelete(ctx context.Context, id int64, at time.Time) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Warehouse, int, error) {
	query := `SELECT id, branch_id, code, name, address, settings, deleted_at, created_at, updated_at
FROM warehouses WHERE deleted_at IS NULL`
	args := []interface{}{}
	if filters.Search != "" {
		query += ` AND (name ILIKE $1 OR code ILIKE $1)`
		args = append(args, "%"+filters.Search+"%")
	}
	query += ` ORDER BY code ASC`

	var total int
	countQuery := `SELECT COUNT(*) FROM warehouses WHERE deleted_at IS NULL`
	if filters.Search != "" {
		countQuery += ` AND (name ILIKE $1 OR code ILIKE $1)`
	}
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []Warehouse
	for rows.Next() {
		w, err := scanWarehouse(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, w)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

func (r *repository) Get(ctx context.Context, id int64) (Warehouse, error) {
	row := r.db.QueryRow(ctx, `SELECT id, branch_id, code, name, address, settings, deleted_at, created_at, updated_at
FROM warehouses WHERE id = $1`, id)
	w, err := scanWarehouse(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Warehouse{}, shared.ErrNotFound
	}
	return w, err
}

func (r *repository) Create(ctx context.Context, warehouse Warehouse) (Warehouse, error) {
	settings, err := json.Marshal(warehouse.Settings)
	if err != nil {
		return Warehouse{}, err
	}
	err = r.db.QueryRow(ctx, `INSERT INTO warehouses (branch_id, code, name, address, settings, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, NOW(), NOW()) RETURNING id, created_at, updated_at`,
		warehouse.BranchID, warehouse.Code, warehouse.Name, warehouse.Address, settings).
		Scan(&warehouse.ID, &warehouse.CreatedAt, &warehouse.UpdatedAt)
	return warehouse, err
}

func (r *repository) Update(ctx context.Context, id int64, warehouse Warehouse) error {
	settings, err := json.Marshal(warehouse.Settings)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `UPDATE warehouses SET branch_id=$1, code=$2, name=$3, address=$4, settings=$5, updated_at=NOW()
WHERE id=$6 AND deleted_at IS NULL`, warehouse.BranchID, warehouse.Code, warehouse.Name, warehouse.Address, settings, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE warehouses SET deleted_at=$1, updated_at=NOW() WHERE id=$2 AND deleted_at IS NULL`, at, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanWarehouse(row pgx.Row) (Warehouse, error) {
	var w Warehouse
	var settings []byte
	err := row.Scan(&w.ID, &w.BranchID, &w.Code, &w.Name, &w.Address, &settings, &w.DeletedAt, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return Warehouse{}, err
	}
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &w.Settings); err != nil {
			return Warehouse{}, err
		}
	}
	return w, nil
}
