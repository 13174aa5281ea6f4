package utils

import (
	"time"
)

// ISOTime renders t as an RFC 3339 UTC instant with millisecond precision.
func ISOTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// ISOTimePtr is ISOTime for optional timestamps.
func ISOTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := ISOTime(*t)
	return &s
}
