package analytics

import (
	"context"
	"time"

	"ms-topup/internal/models"

	"github.com/uptrace/bun"
)

// DB handles analytics database operations
type DB struct {
	bun bun.IDB
}

// NewDB creates a new analytics DB handler
func NewDB(db bun.IDB) *DB {
	return &DB{bun: db}
}

// OrdersBetween returns orders created in [from, to), optionally for one game.
func (db *DB) OrdersBetween(ctx context.Context, from, to time.Time, gameID int64) ([]models.Order, error) {
	orders := make([]models.Order, 0)
	q := db.bun.NewSelect().
		Model(&orders).
		Where("created_at >= ?", from).
		Where("created_at < ?", to).
		OrderExpr("created_at ASC")
	if gameID != 0 {
		q = q.Where("game_id = ?", gameID)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return orders, nil
}
