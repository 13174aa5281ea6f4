package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const (
	OrderIDPrefix  = "ORD"
	orderIDSuffix  = 6
	suffixAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// GenerateOrderID builds ORD-<unix millis>-<6 random [A-Z0-9]>. Uniqueness
// is enforced by the orders.order_id constraint, not here.
func GenerateOrderID(now time.Time) (string, error) {
	suffix, err := randomString(orderIDSuffix)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%d-%s", OrderIDPrefix, now.UnixMilli(), suffix), nil
}

func randomString(n int) (string, error) {
	max := big.NewInt(int64(len(suffixAlphabet)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		b[i] = suffixAlphabet[idx.Int64()]
	}
	return string(b), nil
}
