package apperr

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:   http.StatusBadRequest,
		KindUnauthorized: http.StatusUnauthorized,
		KindForbidden:    http.StatusForbidden,
		KindNotFound:     http.StatusNotFound,
		KindConflict:     http.StatusConflict,
		KindUnavailable:  http.StatusServiceUnavailable,
		KindPersistence:  http.StatusInternalServerError,
	}
	for kind, status := range cases {
		assert.Equal(t, status, kind.HTTPStatus(), kind.String())
	}
}

func TestFromStorage_MissingTable(t *testing.T) {
	for _, raw := range []error{
		&pq.Error{Code: "42P01", Message: `relation "orders" does not exist`},
		errors.New("SQL logic error: no such table: orders (1)"),
	} {
		err := FromStorage(raw, "failed to create order")
		e, ok := As(err)
		require.True(t, ok)
		assert.Equal(t, KindUnavailable, e.Kind)
		assert.Equal(t, "SCHEMA_MISSING", e.Code)
		assert.ErrorIs(t, err, raw)
	}
}

func TestFromStorage_ConnectionFailure(t *testing.T) {
	for _, raw := range []error{
		&pq.Error{Code: "08006"},
		driver.ErrBadConn,
		&net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connect: connection refused")},
		errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"),
	} {
		e, ok := As(FromStorage(raw, "x"))
		require.True(t, ok)
		assert.Equal(t, KindUnavailable, e.Kind, raw.Error())
		assert.Equal(t, "DATABASE_UNAVAILABLE", e.Code)
	}
}

func TestFromStorage_TimeoutIsPersistence(t *testing.T) {
	err := FromStorage(fmt.Errorf("query: %w", context.DeadlineExceeded), "failed to list orders")
	e, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, KindPersistence, e.Kind)
	assert.Equal(t, "failed to list orders", e.Message)
}

func TestFromStorage_PassesThroughClassified(t *testing.T) {
	orig := NotFound("GAME_NOT_FOUND", "game not found")
	assert.Same(t, orig, FromStorage(orig, "ignored"))
	assert.Nil(t, FromStorage(nil, "ignored"))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(&pq.Error{Code: "23505"}))
	assert.True(t, IsUniqueViolation(errors.New("constraint failed: UNIQUE constraint failed: orders.order_id (2067)")))
	assert.False(t, IsUniqueViolation(errors.New("boom")))
	assert.False(t, IsUniqueViolation(nil))
}

func TestErrorIsMatchesByCode(t *testing.T) {
	sentinel := NotFound("VOUCHER_INVALID", "voucher invalid or expired")
	err := fmt.Errorf("validate: %w", NotFound("VOUCHER_INVALID", "voucher invalid or expired"))
	assert.ErrorIs(t, err, sentinel)
	assert.NotErrorIs(t, err, NotFound("GAME_NOT_FOUND", "game not found"))
}
