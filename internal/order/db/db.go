package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"ms-topup/internal/models"

	"github.com/uptrace/bun"
)

const defaultQueryTimeout = 5 * time.Second

// DB is the persistence gateway. Errors are returned exactly as the driver
// reports them; callers classify them.
type DB struct {
	Bun          bun.IDB
	QueryTimeout time.Duration
}

func New(idb bun.IDB, queryTimeout time.Duration) *DB {
	return &DB{Bun: idb, QueryTimeout: queryTimeout}
}

func (d *DB) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := d.QueryTimeout
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// RunInTx runs fn against a gateway bound to a single transaction.
func (d *DB) RunInTx(ctx context.Context, fn func(ctx context.Context, tx *DB) error) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &DB{Bun: tx, QueryTimeout: d.QueryTimeout})
	})
}

func (d *DB) Ping(ctx context.Context) error {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()
	var one int
	return d.Bun.NewSelect().ColumnExpr("1").Scan(ctx, &one)
}

// ---------------- CATALOG ----------------

// GetGame returns sql.ErrNoRows when the game does not exist.
func (d *DB) GetGame(ctx context.Context, id int64) (*models.Game, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	var game models.Game
	err := d.Bun.NewSelect().
		Model(&game).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &game, nil
}

// ---------------- ORDERS ----------------

func (d *DB) CreateOrder(ctx context.Context, order *models.Order) error {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	_, err := d.Bun.NewInsert().Model(order).Exec(ctx)
	return err
}

// GetOrderByOrderID → fetch one order by its external id
func (d *DB) GetOrderByOrderID(ctx context.Context, orderID string) (*models.Order, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("order_id = ?", orderID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func applyOrderFilter(q *bun.SelectQuery, f models.OrderFilter) *bun.SelectQuery {
	if f.UserID != 0 {
		q = q.Where("o.user_id = ?", f.UserID)
	}
	if f.Status != "" {
		q = q.Where("o.status = ?", f.Status)
	}
	return q
}

// ListOrders returns one page of orders with display columns joined in,
// newest first.
func (d *DB) ListOrders(ctx context.Context, f models.OrderFilter) ([]models.OrderView, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	q := d.Bun.NewSelect().
		TableExpr("orders AS o").
		ColumnExpr("o.*").
		ColumnExpr("g.name AS game_name, g.image AS game_image").
		ColumnExpr("u.name AS user_name, u.email AS user_email").
		ColumnExpr("p.name AS product_name").
		ColumnExpr("pm.name AS payment_method_name, pm.logo AS payment_method_logo, pm.code AS payment_method_code").
		Join("LEFT JOIN games AS g ON g.id = o.game_id").
		Join("LEFT JOIN users AS u ON u.id = o.user_id").
		Join("LEFT JOIN products AS p ON p.id = o.product_id").
		Join("LEFT JOIN payment_methods AS pm ON pm.id = o.payment_method_id")
	q = applyOrderFilter(q, f).
		OrderExpr("o.created_at DESC").
		OrderExpr("o.id DESC").
		Limit(f.Limit).
		Offset(f.Offset)

	views := make([]models.OrderView, 0)
	if err := q.Scan(ctx, &views); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return views, nil
}

// CountOrders counts under the same predicate ListOrders uses.
func (d *DB) CountOrders(ctx context.Context, f models.OrderFilter) (int, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	q := applyOrderFilter(d.Bun.NewSelect().TableExpr("orders AS o"), f)
	return q.Count(ctx)
}

// ExpirePendingOrders fails every pending order whose payment deadline is
// strictly before now, in one statement, and returns the external ids it
// changed. Rows that left pending concurrently are not touched.
func (d *DB) ExpirePendingOrders(ctx context.Context, now time.Time) ([]string, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	ids := make([]string, 0)
	_, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("status = ?", models.OrderFailed).
		Set("updated_at = ?", now).
		Where("status = ?", models.OrderPending).
		Where("payment_expires_at IS NOT NULL").
		Where("payment_expires_at < ?", now).
		Returning("order_id").
		Exec(ctx, &ids)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return ids, nil
}

// Transition describes a conditional status change.
type Transition struct {
	OrderID    string
	From       []models.OrderStatus
	To         models.OrderStatus
	VerifiedBy *int64
	Notes      *string
	At         time.Time
}

// TransitionOrder applies t only while the row is still in one of t.From.
// It reports whether a row changed; false is not an error.
func (d *DB) TransitionOrder(ctx context.Context, t Transition) (bool, error) {
	if len(t.From) == 0 {
		return false, nil
	}
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	q := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("status = ?", t.To).
		Set("updated_at = ?", t.At).
		Where("order_id = ?", t.OrderID).
		Where("status IN (?)", bun.In(t.From))
	if t.VerifiedBy != nil {
		q = q.Set("verified_by = ?", *t.VerifiedBy).Set("verified_at = ?", t.At)
	}
	if t.Notes != nil {
		q = q.Set("notes = ?", *t.Notes)
	}
	if t.To == models.OrderCompleted {
		q = q.Set("completed_at = ?", t.At)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ---------------- VOUCHERS ----------------

// FindValidVoucher looks a code up case-insensitively among vouchers that
// are active, inside their date window and under their usage limit at now.
// It returns sql.ErrNoRows when nothing qualifies.
func (d *DB) FindValidVoucher(ctx context.Context, code string, now time.Time) (*models.Voucher, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	var v models.Voucher
	err := d.Bun.NewSelect().
		Model(&v).
		Where("UPPER(code) = ?", strings.ToUpper(strings.TrimSpace(code))).
		Where("is_active = ?", true).
		Where("(start_date IS NULL OR start_date <= ?)", now).
		Where("(end_date IS NULL OR end_date >= ?)", now).
		Where("(usage_limit IS NULL OR used_count < usage_limit)").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// IncrementVoucherUsage bumps used_count unless the limit was reached in
// the meantime. It reports whether the increment happened.
func (d *DB) IncrementVoucherUsage(ctx context.Context, id int64, now time.Time) (bool, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	res, err := d.Bun.NewUpdate().
		Model((*models.Voucher)(nil)).
		Set("used_count = used_count + 1").
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("(usage_limit IS NULL OR used_count < usage_limit)").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
