package db

import (
	"context"
	"fmt"

	"ms-topup/internal/models"

	"github.com/uptrace/bun"
)

// SchemaModels lists every table the gateway reads or writes, in creation
// order.
func SchemaModels() []interface{} {
	return []interface{}{
		(*models.User)(nil),
		(*models.Game)(nil),
		(*models.Product)(nil),
		(*models.PaymentMethod)(nil),
		(*models.Voucher)(nil),
		(*models.Order)(nil),
	}
}

// CreateSchema creates the given tables from their bun models. It backs
// local SQLite setups; Postgres deployments use the SQL migrations instead.
func CreateSchema(ctx context.Context, idb bun.IDB, tables ...interface{}) error {
	if len(tables) == 0 {
		tables = SchemaModels()
	}
	for _, model := range tables {
		if _, err := idb.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T failed: %w", model, err)
		}
	}
	return nil
}
