package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaPublisher writes events to a Kafka topic keyed by stream id
type KafkaPublisher struct {
	writer *kafka.Writer
}

var _ Publisher = (*KafkaPublisher)(nil)

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Compression:  kafka.Snappy,
	}

	return &KafkaPublisher{
		writer: writer,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	message, err := NewKafkaMessage(event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("failed to write %s event to kafka: %w", event.Type(), err)
	}

	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NewKafkaMessage encodes an event as a Kafka message with an event-type header
func NewKafkaMessage(event Event) (kafka.Message, error) {
	payload, err := json.Marshal(BaseEvent{
		EventType:    event.Type(),
		Stream:       event.StreamID(),
		EventData:    event.Data(),
		EventTime:    event.Timestamp(),
		EventVersion: event.Version(),
	})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal %s event: %w", event.Type(), err)
	}

	return kafka.Message{
		Key:   []byte(event.StreamID()),
		Value: payload,
		Time:  event.Timestamp(),
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type())},
		},
	}, nil
}
