package discount

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"ms-topup/internal/apperr"
	"ms-topup/internal/logger"
	"ms-topup/internal/metrics"
	"ms-topup/internal/models"

	"github.com/shopspring/decimal"
)

var (
	ErrVoucherInvalid = apperr.NotFound("VOUCHER_INVALID", "voucher invalid or expired")
	ErrBelowMinimum   = apperr.Validation("VOUCHER_BELOW_MINIMUM", "purchase amount is below the voucher minimum")
	ErrCodeRequired   = apperr.Validation("VOUCHER_CODE_REQUIRED", "voucher code is required")
	ErrInvalidAmount  = apperr.Validation("INVALID_AMOUNT", "amount must be greater than zero")

	hundred = decimal.NewFromInt(100)
)

// VoucherStore finds a voucher that is valid at now, returning
// sql.ErrNoRows when none is.
type VoucherStore interface {
	FindValidVoucher(ctx context.Context, code string, now time.Time) (*models.Voucher, error)
}

// Result is the outcome of a successful validation.
type Result struct {
	Voucher     *models.Voucher
	Amount      decimal.Decimal
	Discount    decimal.Decimal
	FinalAmount decimal.Decimal
}

// Engine validates voucher codes against a purchase amount. It never
// changes voucher state.
type Engine struct {
	store   VoucherStore
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewEngine(store VoucherStore, log *logger.Logger, m *metrics.Metrics) *Engine {
	if log == nil {
		log = logger.NewNop()
	}
	return &Engine{store: store, logger: log, metrics: m, now: time.Now}
}

// WithClock replaces the time source.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Validate looks code up among currently valid vouchers and prices amount
// against it.
func (e *Engine) Validate(ctx context.Context, code string, amount decimal.Decimal) (*Result, error) {
	return e.ValidateWith(ctx, e.store, code, amount)
}

// ValidateWith is Validate against an explicit store, so callers can run the
// lookup inside their own transaction.
func (e *Engine) ValidateWith(ctx context.Context, store VoucherStore, code string, amount decimal.Decimal) (*Result, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrCodeRequired
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	v, err := store.FindValidVoucher(ctx, code, e.now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			e.logger.LogVoucher(code, "rejected: not found or not currently valid")
			e.metrics.VoucherValidated("not_found")
			return nil, ErrVoucherInvalid
		}
		e.logger.Error("VOUCHER", fmt.Sprintf("lookup of %s failed: %v", code, err))
		e.metrics.VoucherValidated("error")
		return nil, apperr.FromStorage(err, "failed to validate voucher")
	}

	if amount.LessThan(v.MinPurchase) {
		e.logger.LogVoucher(v.Code, fmt.Sprintf("rejected: amount %s below minimum %s", amount, v.MinPurchase))
		e.metrics.VoucherValidated("below_minimum")
		return nil, belowMinimum(v.MinPurchase)
	}

	discount, final := Calculate(v, amount)
	e.logger.LogVoucher(v.Code, fmt.Sprintf("accepted: amount=%s discount=%s final=%s", amount, discount, final))
	e.metrics.VoucherValidated("ok")

	return &Result{
		Voucher:     v,
		Amount:      amount,
		Discount:    discount,
		FinalAmount: final,
	}, nil
}

func belowMinimum(min decimal.Decimal) *apperr.Error {
	return &apperr.Error{
		Kind:        apperr.KindValidation,
		Code:        ErrBelowMinimum.Code,
		Message:     fmt.Sprintf("minimum purchase for this voucher is %s", min.StringFixed(2)),
		MinPurchase: &min,
	}
}

// Calculate prices amount against v without any eligibility checks.
// The discount is rounded to cents and never exceeds amount.
func Calculate(v *models.Voucher, amount decimal.Decimal) (discount, final decimal.Decimal) {
	switch v.DiscountType {
	case models.PERCENTAGE:
		discount = amount.Mul(v.DiscountValue).Div(hundred)
		if v.MaxDiscount.Valid && discount.GreaterThan(v.MaxDiscount.Decimal) {
			discount = v.MaxDiscount.Decimal
		}
	case models.FIXED:
		discount = v.DiscountValue
	default:
		discount = decimal.Zero
	}

	discount = discount.Round(2)
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	if discount.GreaterThan(amount) {
		discount = amount
	}
	return discount, amount.Sub(discount)
}
