package events

import (
	"context"
	"time"

	"github.com/UmaimaHameed/Elegant-La-Vie/internal/domain"
)

const (
	TypeOrderCreated = "order.created"
	TypeOrderPaid    = "order.paid"
)

// OrderEvent is the lifecycle record published to the order events topic.
type OrderEvent struct {
	EventID       string    `json:"event_id"`
	Type          string    `json:"type"`
	OrderID       int64     `json:"order_id"`
	Total         int64     `json:"total"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	Channel       string    `json:"channel"`
	Timestamp     time.Time `json:"timestamp"`
}

// Publisher emits order lifecycle events. Publishing is best effort: the
// checkout result never depends on it.
type Publisher interface {
	Publish(ctx context.Context, eventType string, o *domain.Order) error
	Close() error
}

// NoopPublisher is used when no brokers are configured and in tests.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, eventType string, o *domain.Order) error {
	return nil
}

func (NoopPublisher) Close() error { return nil }
