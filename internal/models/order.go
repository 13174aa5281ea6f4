package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderCompleted  OrderStatus = "completed"
	OrderFailed     OrderStatus = "failed"
)

// ParseOrderStatus accepts the lowercase wire form only.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch st := OrderStatus(s); st {
	case OrderPending, OrderProcessing, OrderCompleted, OrderFailed:
		return st, true
	}
	return "", false
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderCompleted || s == OrderFailed
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	switch s {
	case OrderPending:
		return next == OrderProcessing || next == OrderCompleted || next == OrderFailed
	case OrderProcessing:
		return next == OrderCompleted || next == OrderFailed
	}
	return false
}

// SourcesFor lists every status that may move to next.
func SourcesFor(next OrderStatus) []OrderStatus {
	var from []OrderStatus
	for _, s := range []OrderStatus{OrderPending, OrderProcessing, OrderCompleted, OrderFailed} {
		if s.CanTransitionTo(next) {
			from = append(from, s)
		}
	}
	return from
}

type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID               int64           `bun:"id,pk,autoincrement"`
	OrderID          string          `bun:"order_id,unique,notnull"`
	UserID           int64           `bun:"user_id,notnull"`
	GameID           int64           `bun:"game_id,notnull"`
	PlayerID         string          `bun:"player_id,notnull"`
	ServerID         *string         `bun:"server_id"`
	ProductID        *int64          `bun:"product_id"`
	Amount           decimal.Decimal `bun:"amount,type:decimal(14,2),notnull"`
	OriginalAmount   decimal.Decimal `bun:"original_amount,type:decimal(14,2),notnull"`
	DiscountAmount   decimal.Decimal `bun:"discount_amount,type:decimal(14,2),notnull"`
	PaymentMethod    string          `bun:"payment_method,notnull"`
	PaymentMethodID  *int64          `bun:"payment_method_id"`
	VoucherCode      *string         `bun:"voucher_code"`
	Status           OrderStatus     `bun:"status,notnull"`
	Notes            *string         `bun:"notes"`
	VerifiedBy       *int64          `bun:"verified_by"`
	VerifiedAt       *time.Time      `bun:"verified_at"`
	CompletedAt      *time.Time      `bun:"completed_at"`
	PaymentExpiresAt time.Time       `bun:"payment_expires_at,notnull"`
	CreatedAt        time.Time       `bun:"created_at,notnull"`
	UpdatedAt        time.Time       `bun:"updated_at,notnull"`
}

// OrderView is an order row with the catalog and purchaser columns joined in.
type OrderView struct {
	ID                int64           `bun:"id"`
	OrderID           string          `bun:"order_id"`
	UserID            int64           `bun:"user_id"`
	GameID            int64           `bun:"game_id"`
	PlayerID          string          `bun:"player_id"`
	ServerID          *string         `bun:"server_id"`
	ProductID         *int64          `bun:"product_id"`
	Amount            decimal.Decimal `bun:"amount"`
	OriginalAmount    decimal.Decimal `bun:"original_amount"`
	DiscountAmount    decimal.Decimal `bun:"discount_amount"`
	PaymentMethod     string          `bun:"payment_method"`
	PaymentMethodID   *int64          `bun:"payment_method_id"`
	VoucherCode       *string         `bun:"voucher_code"`
	Status            OrderStatus     `bun:"status"`
	Notes             *string         `bun:"notes"`
	VerifiedBy        *int64          `bun:"verified_by"`
	VerifiedAt        *time.Time      `bun:"verified_at"`
	CompletedAt       *time.Time      `bun:"completed_at"`
	PaymentExpiresAt  time.Time       `bun:"payment_expires_at"`
	CreatedAt         time.Time       `bun:"created_at"`
	UpdatedAt         time.Time       `bun:"updated_at"`
	GameName          *string         `bun:"game_name"`
	GameImage         *string         `bun:"game_image"`
	UserName          *string         `bun:"user_name"`
	UserEmail         *string         `bun:"user_email"`
	ProductName       *string         `bun:"product_name"`
	PaymentMethodName *string         `bun:"payment_method_name"`
	PaymentMethodLogo *string         `bun:"payment_method_logo"`
	PaymentMethodCode *string         `bun:"payment_method_code"`
}

// OrderFilter narrows a listing. A zero UserID means every owner.
type OrderFilter struct {
	UserID int64
	Status OrderStatus
	Limit  int
	Offset int
}

type CreateOrderRequest struct {
	GameID          int64            `json:"gameId"`
	PlayerID        string           `json:"playerId"`
	ServerID        *string          `json:"serverId,omitempty"`
	Amount          *decimal.Decimal `json:"amount"`
	PaymentMethod   string           `json:"paymentMethod,omitempty"`
	PaymentMethodID *int64           `json:"paymentMethodId,omitempty"`
	ProductID       *int64           `json:"productId,omitempty"`
	VoucherCode     *string          `json:"voucherCode,omitempty"`
}

type VerifyOrderRequest struct {
	Status string  `json:"status"`
	Notes  *string `json:"notes,omitempty"`
}
