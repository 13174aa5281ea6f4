package sse

import (
	"context"
	"sync"
	"time"

	"ms-topup/internal/models"
)

// StatusUpdate is pushed to clients watching a single order.
type StatusUpdate struct {
	OrderID string             `json:"orderId"`
	Status  models.OrderStatus `json:"status"`
	At      time.Time          `json:"at"`
}

// OrderEmitter fans order status changes out to connected SSE clients.
// It satisfies order.EventPublisher so it can sit next to the Kafka
// publisher.
type OrderEmitter struct {
	mu      sync.RWMutex
	clients map[string][]chan StatusUpdate
}

// NewOrderEmitter creates a new SSE emitter for order status changes
func NewOrderEmitter() *OrderEmitter {
	return &OrderEmitter{clients: make(map[string][]chan StatusUpdate)}
}

// Subscribe registers a client for orderID. The channel is closed once ctx
// is done.
func (e *OrderEmitter) Subscribe(ctx context.Context, orderID string) <-chan StatusUpdate {
	ch := make(chan StatusUpdate, 10)

	e.mu.Lock()
	e.clients[orderID] = append(e.clients[orderID], ch)
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.remove(orderID, ch)
	}()
	return ch
}

// Emit broadcasts u to every subscriber of its order. Slow clients whose
// buffer is full miss the update.
func (e *OrderEmitter) Emit(u StatusUpdate) {
	// sends happen under the read lock so remove cannot close a channel mid-send
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, ch := range e.clients[u.OrderID] {
		select {
		case ch <- u:
		default:
		}
	}
}

func (e *OrderEmitter) remove(orderID string, ch chan StatusUpdate) {
	e.mu.Lock()
	defer e.mu.Unlock()

	clients := e.clients[orderID]
	for i, c := range clients {
		if c == ch {
			e.clients[orderID] = append(clients[:i], clients[i+1:]...)
			close(ch)
			break
		}
	}
	if len(e.clients[orderID]) == 0 {
		delete(e.clients, orderID)
	}
}

// ClientCount returns the number of clients watching orderID
func (e *OrderEmitter) ClientCount(orderID string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.clients[orderID])
}

func (e *OrderEmitter) OrderCreated(_ context.Context, o *models.Order) {
	e.Emit(StatusUpdate{OrderID: o.OrderID, Status: o.Status, At: o.CreatedAt})
}

func (e *OrderEmitter) OrderUpdated(_ context.Context, o *models.Order) {
	e.Emit(StatusUpdate{OrderID: o.OrderID, Status: o.Status, At: o.UpdatedAt})
}

func (e *OrderEmitter) OrdersExpired(_ context.Context, orderIDs []string, at time.Time) {
	for _, id := range orderIDs {
		e.Emit(StatusUpdate{OrderID: id, Status: models.OrderFailed, At: at})
	}
}
