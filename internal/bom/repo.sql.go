package bom

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Drak-01/stock-saas-sub001/internal/fixed"
	"github.com/Drak-01/stock-saas-sub001/internal/platform/db"
)

// Repository persists BOM aggregates in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	CreateBOM(ctx context.Context, b BillOfMaterials) (int64, error)
	UpdateBOM(ctx context.Context, id int64, quantityProduced fixed.Decimal) error
	InsertLine(ctx context.Context, line Line) (int64, error)
	DeleteLines(ctx context.Context, bomID int64) error
	SoftDeleteBOM(ctx context.Context, id int64, at time.Time) error
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("bom repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// GetBOM loads a BOM header and its lines ordered by sequence.
func (r *Repository) GetBOM(ctx context.Context, id int64) (BillOfMaterials, error) {
	if r == nil {
		return BillOfMaterials{}, errors.New("bom repository not initialised")
	}
	var b BillOfMaterials
	err := r.pool.QueryRow(ctx, `SELECT id, product_id, quantity_produced, deleted_at, created_at, updated_at
FROM boms WHERE id=$1`, id).Scan(&b.ID, &b.ProductID, &b.QuantityProduced, &b.DeletedAt, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return BillOfMaterials{}, ErrNotFound
		}
		return BillOfMaterials{}, err
	}

	rows, err := r.pool.Query(ctx, `SELECT id, component_id, quantity_required, waste_factor, sequence
FROM bom_lines WHERE bom_id=$1 ORDER BY sequence ASC, id ASC`, id)
	if err != nil {
		return BillOfMaterials{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			lineID      int64
			componentID int64
			qty         fixed.Decimal
			waste       fixed.Decimal
			sequence    int32
		)
		if err := rows.Scan(&lineID, &componentID, &qty, &waste, &sequence); err != nil {
			return BillOfMaterials{}, err
		}
		line, err := NewLine(id, componentID, qty, waste, sequence)
		if err != nil {
			return BillOfMaterials{}, err
		}
		line.ID = lineID
		b.Lines = append(b.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return BillOfMaterials{}, err
	}
	return b, nil
}

// GetBOMByProduct loads the active BOM producing the given product.
func (r *Repository) GetBOMByProduct(ctx context.Context, productID int64) (BillOfMaterials, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `SELECT id FROM boms WHERE product_id=$1 AND deleted_at IS NULL ORDER BY id DESC LIMIT 1`, productID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return BillOfMaterials{}, ErrNotFound
		}
		return BillOfMaterials{}, err
	}
	return r.GetBOM(ctx, id)
}

func (r *txRepository) CreateBOM(ctx context.Context, b BillOfMaterials) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO boms (product_id, quantity_produced, created_at, updated_at)
VALUES ($1, $2, NOW(), NOW()) RETURNING id`, b.ProductID, b.QuantityProduced).Scan(&id)
	return id, err
}

func (r *txRepository) UpdateBOM(ctx context.Context, id int64, quantityProduced fixed.Decimal) error {
	tag, err := r.tx.Exec(ctx, `UPDATE boms SET quantity_produced=$1, updated_at=NOW() WHERE id=$2 AND deleted_at IS NULL`, quantityProduced, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepository) InsertLine(ctx context.Context, line Line) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO bom_lines (bom_id, component_id, quantity_required, waste_factor, sequence)
VALUES ($1, $2, $3, $4, $5) RETURNING id`, line.BOMID, line.ComponentID, line.QuantityRequired, line.WasteFactor, line.Sequence).Scan(&id)
	return id, err
}

func (r *txRepository) DeleteLines(ctx context.Context, bomID int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM bom_lines WHERE bom_id=$1`, bomID)
	return err
}

func (r *txRepository) SoftDeleteBOM(ctx context.Context, id int64, at time.Time) error {
	tag, err := r.tx.Exec(ctx, `UPDATE boms SET deleted_at=$1, updated_at=NOW() WHERE id=$2 AND deleted_at IS NULL`, at, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
