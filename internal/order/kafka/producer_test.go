package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"ms-topup/internal/config"
	"ms-topup/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, topic, key string, value []byte) error {
	args := m.Called(topic, key, value)
	return args.Error(0)
}

var topics = config.TopicConfig{
	OrderCreated: "topup.order.created",
	OrderUpdated: "topup.order.updated",
	OrderExpired: "topup.order.expired",
}

func TestOrderCreatedPayload(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("Publish", "topup.order.created", "ORD-1-ABCDEF", mock.Anything).Return(nil)

	at := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	NewEventPublisher(pub, topics, nil).OrderCreated(context.Background(), &models.Order{
		OrderID:   "ORD-1-ABCDEF",
		UserID:    42,
		GameID:    3,
		Status:    models.OrderPending,
		Amount:    decimal.NewFromInt(95000),
		UpdatedAt: at,
	})

	pub.AssertExpectations(t)
	raw := pub.Calls[0].Arguments.Get(2).([]byte)
	var ev OrderEvent
	require.NoError(t, json.Unmarshal(raw, &ev))
	assert.Equal(t, EventOrderCreated, ev.Type)
	assert.Equal(t, int64(42), ev.UserID)
	assert.Equal(t, "95000.00", ev.Amount)
	assert.Equal(t, models.OrderPending, ev.Status)
	assert.NotEmpty(t, ev.EventID)
	assert.True(t, ev.OccurredAt.Equal(at))
}

func TestOrdersExpiredOnePerOrder(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("Publish", "topup.order.expired", mock.Anything, mock.Anything).Return(nil)

	NewEventPublisher(pub, topics, nil).OrdersExpired(context.Background(), []string{"A", "B"}, time.Now())

	pub.AssertNumberOfCalls(t, "Publish", 2)
	assert.Equal(t, "A", pub.Calls[0].Arguments.String(1))
	assert.Equal(t, "B", pub.Calls[1].Arguments.String(1))
}

func TestPublishFailureIsSwallowed(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))

	assert.NotPanics(t, func() {
		NewEventPublisher(pub, topics, nil).OrderUpdated(context.Background(), &models.Order{OrderID: "X"})
	})
	pub.AssertExpectations(t)
}
