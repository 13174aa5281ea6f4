package models

import "github.com/uptrace/bun"

// Catalog rows are owned by the storefront admin; this service only reads them.

type Game struct {
	bun.BaseModel `bun:"table:games,alias:g"`

	ID       int64   `bun:"id,pk,autoincrement"`
	Name     string  `bun:"name,notnull"`
	Image    *string `bun:"image"`
	IsActive bool    `bun:"is_active,notnull"`
}

type Product struct {
	bun.BaseModel `bun:"table:products,alias:p"`

	ID     int64  `bun:"id,pk,autoincrement"`
	GameID int64  `bun:"game_id,notnull"`
	Name   string `bun:"name,notnull"`
}

type PaymentMethod struct {
	bun.BaseModel `bun:"table:payment_methods,alias:pm"`

	ID   int64   `bun:"id,pk,autoincrement"`
	Name string  `bun:"name,notnull"`
	Code string  `bun:"code,notnull"`
	Logo *string `bun:"logo"`
}
