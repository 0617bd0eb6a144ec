package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/UmaimaHameed/Elegant-La-Vie/internal/domain"
)

// KafkaPublisher writes order events keyed by order id so consumers see
// per-order events in order.
type KafkaPublisher struct {
	writer *kafka.Writer
}

var _ Publisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher returns nil when brokersCSV is empty; callers fall back
// to NoopPublisher.
func NewKafkaPublisher(brokersCSV, topic string) *KafkaPublisher {
	brokers := []string{}
	for _, b := range strings.Split(brokersCSV, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	if len(brokers) == 0 {
		return nil
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			WriteTimeout: 5 * time.Second,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, eventType string, o *domain.Order) error {
	ev := OrderEvent{
		EventID:       uuid.New().String(),
		Type:          eventType,
		OrderID:       o.ID,
		Total:         o.Total,
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		Channel:       string(o.PaymentMethod),
		Timestamp:     time.Now().UTC(),
	}
	value, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(fmt.Sprintf("order-%d", o.ID)),
		Value: value,
	})
}

func (p *KafkaPublisher) Close() error { return p.writer.Close() }
