package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type DiscountType string

const (
	PERCENTAGE DiscountType = "PERCENTAGE"
	FIXED      DiscountType = "FIXED"
)

type Voucher struct {
	bun.BaseModel `bun:"table:vouchers,alias:v"`

	ID            int64               `bun:"id,pk,autoincrement"`
	Code          string              `bun:"code,unique,notnull"`
	Name          string              `bun:"name,notnull"`
	Description   *string             `bun:"description"`
	DiscountType  DiscountType        `bun:"discount_type,notnull"`
	DiscountValue decimal.Decimal     `bun:"discount_value,type:decimal(14,2),notnull"`
	MinPurchase   decimal.Decimal     `bun:"min_purchase,type:decimal(14,2),notnull"`
	MaxDiscount   decimal.NullDecimal `bun:"max_discount,type:decimal(14,2)"`
	UsageLimit    *int                `bun:"usage_limit"`
	UsedCount     int                 `bun:"used_count,notnull"`
	StartDate     *time.Time          `bun:"start_date"`
	EndDate       *time.Time          `bun:"end_date"`
	IsActive      bool                `bun:"is_active,notnull"`
	CreatedAt     time.Time           `bun:"created_at,notnull"`
	UpdatedAt     time.Time           `bun:"updated_at,notnull"`
}

// IsValidAt mirrors the SQL predicate used to look vouchers up.
func (v *Voucher) IsValidAt(now time.Time) bool {
	if !v.IsActive {
		return false
	}
	if v.StartDate != nil && now.Before(*v.StartDate) {
		return false
	}
	if v.EndDate != nil && now.After(*v.EndDate) {
		return false
	}
	if v.UsageLimit != nil && v.UsedCount >= *v.UsageLimit {
		return false
	}
	return true
}
