package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ms-topup/internal/config"
	"ms-topup/internal/logger"
	"ms-topup/internal/models"

	"github.com/google/uuid"
)

const publishTimeout = 3 * time.Second

const (
	EventOrderCreated = "order.created"
	EventOrderUpdated = "order.updated"
	EventOrderExpired = "order.expired"
)

// Publisher is satisfied by internal/kafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
}

type OrderEvent struct {
	EventID    string             `json:"eventId"`
	Type       string             `json:"type"`
	OrderID    string             `json:"orderId"`
	UserID     int64              `json:"userId,omitempty"`
	GameID     int64              `json:"gameId,omitempty"`
	Status     models.OrderStatus `json:"status"`
	Amount     string             `json:"amount,omitempty"`
	OccurredAt time.Time          `json:"occurredAt"`
}

// EventPublisher streams order lifecycle events. Delivery is best effort:
// failures are logged and never reach the caller.
type EventPublisher struct {
	producer Publisher
	topics   config.TopicConfig
	logger   *logger.Logger
}

func NewEventPublisher(p Publisher, topics config.TopicConfig, log *logger.Logger) *EventPublisher {
	if log == nil {
		log = logger.NewNop()
	}
	return &EventPublisher{producer: p, topics: topics, logger: log}
}

func (p *EventPublisher) OrderCreated(ctx context.Context, o *models.Order) {
	p.publish(ctx, p.topics.OrderCreated, orderEvent(EventOrderCreated, o))
}

func (p *EventPublisher) OrderUpdated(ctx context.Context, o *models.Order) {
	p.publish(ctx, p.topics.OrderUpdated, orderEvent(EventOrderUpdated, o))
}

func (p *EventPublisher) OrdersExpired(ctx context.Context, orderIDs []string, at time.Time) {
	for _, id := range orderIDs {
		p.publish(ctx, p.topics.OrderExpired, OrderEvent{
			EventID:    uuid.NewString(),
			Type:       EventOrderExpired,
			OrderID:    id,
			Status:     models.OrderFailed,
			OccurredAt: at.UTC(),
		})
	}
}

func orderEvent(kind string, o *models.Order) OrderEvent {
	return OrderEvent{
		EventID:    uuid.NewString(),
		Type:       kind,
		OrderID:    o.OrderID,
		UserID:     o.UserID,
		GameID:     o.GameID,
		Status:     o.Status,
		Amount:     o.Amount.StringFixed(2),
		OccurredAt: o.UpdatedAt.UTC(),
	}
}

func (p *EventPublisher) publish(ctx context.Context, topic string, ev OrderEvent) {
	value, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error("KAFKA", fmt.Sprintf("Failed to marshal %s event for %s: %v", ev.Type, ev.OrderID, err))
		return
	}

	// the request may finish before the broker answers
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := p.producer.Publish(ctx, topic, ev.OrderID, value); err != nil {
		p.logger.Error("KAFKA", fmt.Sprintf("Failed to publish %s for %s: %v", ev.Type, ev.OrderID, err))
		return
	}
	p.logger.LogKafka("PUBLISH", topic, ev.OrderID)
}
