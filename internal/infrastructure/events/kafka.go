package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"solana-order-pay/internal/domain"

	"github.com/segmentio/kafka-go"
)

const EventOrderRecorded = "order_recorded"

// Source says which path wrote the order into the ledger.
type Source string

const (
	SourceClient     Source = "client"
	SourceReconciler Source = "reconciler"
)

type OrderRecorded struct {
	Reference  string    `json:"reference"`
	Buyer      string    `json:"buyer"`
	ItemID     string    `json:"item_id"`
	Currency   string    `json:"currency"`
	Signature  string    `json:"signature"`
	Source     Source    `json:"source"`
	RecordedAt time.Time `json:"recorded_at"`
}

type Publisher interface {
	OrderRecorded(ctx context.Context, order domain.Order, source Source) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
	now    func() time.Time
}

func NewKafkaPublisher(topic string, brokers ...string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		WriteTimeout:           5 * time.Second,
	}
	return newPublisher(w)
}

func newPublisher(w messageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w, now: time.Now}
}

func (p *KafkaPublisher) OrderRecorded(ctx context.Context, order domain.Order, source Source) error {
	payload, err := json.Marshal(OrderRecorded{
		Reference:  order.OrderID,
		Buyer:      order.Buyer,
		ItemID:     order.ItemID,
		Currency:   order.Currency,
		Signature:  order.Signature,
		Source:     source,
		RecordedAt: p.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}
	msg := kafka.Message{
		// keyed by buyer so one buyer's purchases stay ordered
		Key:   []byte(order.Buyer),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventOrderRecorded)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s for %s: %w", EventOrderRecorded, order.OrderID, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Discard drops every event. Used when no brokers are configured.
type Discard struct{}

func (Discard) OrderRecorded(context.Context, domain.Order, Source) error { return nil }
func (Discard) Close() error                                            { return nil }
