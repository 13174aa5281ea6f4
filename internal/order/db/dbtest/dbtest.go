// Package dbtest opens in-memory SQLite databases shaped like production.
package dbtest

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"ms-topup/internal/models"
	"ms-topup/internal/order/db"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// Open returns a bun DB over a private in-memory database. With no tables
// given the whole schema is created.
func Open(t testing.TB, tables ...interface{}) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}
	// every connection to :memory: is a separate database
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { bunDB.Close() })

	if err := db.CreateSchema(context.Background(), bunDB, tables...); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	return bunDB
}

func Insert(t testing.TB, bunDB bun.IDB, model interface{}) {
	t.Helper()
	if _, err := bunDB.NewInsert().Model(model).Exec(context.Background()); err != nil {
		t.Fatalf("Failed to insert %T: %v", model, err)
	}
}

func SeedGame(t testing.TB, bunDB bun.IDB, name string, active bool) *models.Game {
	t.Helper()
	g := &models.Game{Name: name, IsActive: active}
	Insert(t, bunDB, g)
	return g
}

func SeedUser(t testing.TB, bunDB bun.IDB, name, role string) *models.User {
	t.Helper()
	u := &models.User{Name: name, Email: name + "@example.com", Role: role, CreatedAt: time.Now().UTC()}
	Insert(t, bunDB, u)
	return u
}

// PendingOrder builds an unsaved pending order created at createdAt with
// the standard ten minute window.
func PendingOrder(orderID string, userID, gameID int64, amount int64, createdAt time.Time) *models.Order {
	amt := decimal.NewFromInt(amount)
	return &models.Order{
		OrderID:          orderID,
		UserID:           userID,
		GameID:           gameID,
		PlayerID:         "player-" + orderID,
		Amount:           amt,
		OriginalAmount:   amt,
		DiscountAmount:   decimal.Zero,
		PaymentMethod:    "QRIS",
		Status:           models.OrderPending,
		PaymentExpiresAt: createdAt.Add(10 * time.Minute),
		CreatedAt:        createdAt,
		UpdatedAt:        createdAt,
	}
}
