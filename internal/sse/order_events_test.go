package sse

import (
	"context"
	"testing"
	"time"

	"ms-topup/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitReachesOnlyThatOrder(t *testing.T) {
	e := NewOrderEmitter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := e.Subscribe(ctx, "ORD-A")
	b := e.Subscribe(ctx, "ORD-B")

	e.OrderUpdated(ctx, &models.Order{OrderID: "ORD-A", Status: models.OrderCompleted})

	select {
	case u := <-a:
		assert.Equal(t, models.OrderCompleted, u.Status)
	case <-time.After(time.Second):
		t.Fatal("no update for ORD-A")
	}
	assert.Empty(t, b)
}

func TestOrdersExpiredMarksFailed(t *testing.T) {
	e := NewOrderEmitter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := e.Subscribe(ctx, "ORD-1")
	at := time.Date(2026, 4, 10, 8, 0, 0, 0, time.UTC)
	e.OrdersExpired(ctx, []string{"ORD-1", "ORD-2"}, at)

	u := <-ch
	assert.Equal(t, StatusUpdate{OrderID: "ORD-1", Status: models.OrderFailed, At: at}, u)
}

func TestSubscriberRemovedOnCancel(t *testing.T) {
	e := NewOrderEmitter()
	ctx, cancel := context.WithCancel(context.Background())

	ch := e.Subscribe(ctx, "ORD-1")
	require.Equal(t, 1, e.ClientCount("ORD-1"))

	cancel()
	require.Eventually(t, func() bool { return e.ClientCount("ORD-1") == 0 }, time.Second, 5*time.Millisecond)
	_, open := <-ch
	assert.False(t, open)

	// emitting after removal must not panic
	e.Emit(StatusUpdate{OrderID: "ORD-1", Status: models.OrderCompleted})
}

func TestSlowClientDoesNotBlock(t *testing.T) {
	e := NewOrderEmitter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := e.Subscribe(ctx, "ORD-1")
	for i := 0; i < 50; i++ {
		e.Emit(StatusUpdate{OrderID: "ORD-1", Status: models.OrderProcessing})
	}
	assert.Len(t, ch, cap(ch))
}
