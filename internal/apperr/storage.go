package apperr

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/lib/pq"
)

const (
	pqUndefinedTable   = "42P01"
	pqUniqueViolation  = "23505"
	pqConnectionClass  = "08"
	pqCannotConnectNow = "57P03"
)

// FromStorage classifies a raw database error. A missing relation or an
// unreachable server becomes KindUnavailable; everything else, timeouts
// included, is KindPersistence. Already classified errors pass through.
func FromStorage(err error, message string) error {
	if err == nil {
		return nil
	}
	if _, ok := As(err); ok {
		return err
	}
	switch {
	case IsMissingTable(err):
		return Wrap(KindUnavailable, "SCHEMA_MISSING", "service unavailable: database schema is not migrated", err)
	case IsConnectionFailure(err):
		return Wrap(KindUnavailable, "DATABASE_UNAVAILABLE", "service unavailable: database is unreachable", err)
	}
	return Wrap(KindPersistence, "PERSISTENCE_ERROR", message, err)
}

func IsMissingTable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pqUndefinedTable
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no such table") ||
		(strings.Contains(msg, "relation") && strings.Contains(msg, "does not exist"))
}

func IsConnectionFailure(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		code := string(pqErr.Code)
		return strings.HasPrefix(code, pqConnectionClass) || code == pqCannotConnectNow
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return !opErr.Timeout()
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "sql: database is closed")
}

func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pqUniqueViolation
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
