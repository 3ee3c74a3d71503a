package purchasing

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Drak-01/stock-saas-sub001/internal/fixed"
	"github.com/Drak-01/stock-saas-sub001/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	GetOrderForUpdate(ctx context.Context, id int64) (PurchaseOrder, error)
	CreateOrder(ctx context.Context, order PurchaseOrder) (int64, error)
	UpdateOrderHeader(ctx context.Context, order PurchaseOrder) error
	UpdateStatus(ctx context.Context, id int64, status Status) error
	SetApproval(ctx context.Context, id int64, approvedBy int64, approvedAt time.Time) error
	SetCancelled(ctx context.Context, id int64, reason string) error
	InsertLine(ctx context.Context, line Line) (int64, error)
	DeleteLines(ctx context.Context, orderID int64) error
	UpdateLineReceived(ctx context.Context, lineID int64, received fixed.Decimal) error
	SoftDelete(ctx context.Context, id int64, at time.Time) error
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps the callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const orderColumns = `id, number, supplier_id, status, order_date, COALESCE(expected_date, order_date), note,
approved_by, approved_at, COALESCE(cancel_reason,''), created_at, updated_at, deleted_at`

// GetOrder returns the order and its lines.
func (r *Repository) GetOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	order, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM purchase_orders WHERE id=$1`, id))
	if err != nil {
		return PurchaseOrder{}, err
	}
	order.Lines, err = queryLines(ctx, r.pool, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	return order, nil
}

// ListOrders returns orders matching the filter, without lines.
func (r *Repository) ListOrders(ctx context.Context, filter ListFilter) ([]PurchaseOrder, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT `+orderColumns+` FROM purchase_orders
WHERE deleted_at IS NULL
  AND ($1::bigint = 0 OR supplier_id=$1)
  AND ($2::text = '' OR status=$2)
ORDER BY order_date DESC, id DESC
LIMIT $3`, filter.SupplierID, string(filter.Status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []PurchaseOrder
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// GetOrderForUpdate locks the order header row, serializing all lifecycle
// actions and receipts on the same order.
func (r *txRepo) GetOrderForUpdate(ctx context.Context, id int64) (PurchaseOrder, error) {
	order, err := scanOrder(r.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM purchase_orders WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return PurchaseOrder{}, err
	}
	order.Lines, err = queryLines(ctx, r.tx, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	return order, nil
}

func (r *txRepo) CreateOrder(ctx context.Context, order PurchaseOrder) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO purchase_orders (number, supplier_id, status, order_date, expected_date, note, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW(),NOW()) RETURNING id`,
		order.Number, order.SupplierID, order.Status, order.OrderDate, nullDate(order.ExpectedDate), order.Note).Scan(&id)
	return id, err
}

func (r *txRepo) UpdateOrderHeader(ctx context.Context, order PurchaseOrder) error {
	_, err := r.tx.Exec(ctx, `UPDATE purchase_orders SET supplier_id=$1, expected_date=$2, note=$3, updated_at=NOW() WHERE id=$4`,
		order.SupplierID, nullDate(order.ExpectedDate), order.Note, order.ID)
	return err
}

func (r *txRepo) UpdateStatus(ctx context.Context, id int64, status Status) error {
	_, err := r.tx.Exec(ctx, `UPDATE purchase_orders SET status=$1, updated_at=NOW() WHERE id=$2`, status, id)
	return err
}

func (r *txRepo) SetApproval(ctx context.Context, id int64, approvedBy int64, approvedAt time.Time) error {
	_, err := r.tx.Exec(ctx, `UPDATE purchase_orders SET approved_by=$1, approved_at=$2, updated_at=NOW() WHERE id=$3`, approvedBy, approvedAt, id)
	return err
}

func (r *txRepo) SetCancelled(ctx context.Context, id int64, reason string) error {
	_, err := r.tx.Exec(ctx, `UPDATE purchase_orders SET status=$1, cancel_reason=$2, updated_at=NOW() WHERE id=$3`, StatusCancelled, reason, id)
	return err
}

func (r *txRepo) InsertLine(ctx context.Context, line Line) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO purchase_order_lines (order_id, product_id, warehouse_id, quantity_ordered, quantity_received, unit_price, tax_rate, expected_date)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		line.OrderID, line.ProductID, nullInt(line.WarehouseID), line.QuantityOrdered, line.QuantityReceived, line.UnitPrice, line.TaxRate, line.ExpectedDate).Scan(&id)
	return id, err
}

func (r *txRepo) DeleteLines(ctx context.Context, orderID int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM purchase_order_lines WHERE order_id=$1`, orderID)
	return err
}

func (r *txRepo) UpdateLineReceived(ctx context.Context, lineID int64, received fixed.Decimal) error {
	tag, err := r.tx.Exec(ctx, `UPDATE purchase_order_lines SET quantity_received=$1 WHERE id=$2`, received, lineID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepo) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	_, err := r.tx.Exec(ctx, `UPDATE purchase_orders SET deleted_at=$1, updated_at=NOW() WHERE id=$2`, at, id)
	return err
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func queryLines(ctx context.Context, q querier, orderID int64) ([]Line, error) {
	rows, err := q.Query(ctx, `SELECT id, order_id, product_id, COALESCE(warehouse_id,0), quantity_ordered, quantity_received, unit_price, tax_rate, expected_date
FROM purchase_order_lines WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []Line
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.ID, &line.OrderID, &line.ProductID, &line.WarehouseID,
			&line.QuantityOrdered, &line.QuantityReceived, &line.UnitPrice, &line.TaxRate, &line.ExpectedDate); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func scanOrder(row pgx.Row) (PurchaseOrder, error) {
	var order PurchaseOrder
	err := row.Scan(&order.ID, &order.Number, &order.SupplierID, &order.Status, &order.OrderDate, &order.ExpectedDate,
		&order.Note, &order.ApprovedBy, &order.ApprovedAt, &order.CancelReason, &order.CreatedAt, &order.UpdatedAt, &order.DeletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseOrder{}, ErrNotFound
	}
	return order, err
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullDate(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
