package broadcast

import (
	"context"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/AanchalYadav15/acciguard/scoring"
)

// MessageWriter is implemented by *kafkago.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaPublisher forwards events to a topic for downstream consumers. It
// has no subscribe side.
type KafkaPublisher struct {
	writer MessageWriter
}

func NewKafkaWriter(brokers []string, topic string) *kafkago.Writer {
	return &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireOne,
	}
}

func NewKafkaPublisher(w MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event string, payload any) error {
	msg, err := serializeToMessage(event, payload)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write %s: %w", event, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func serializeToMessage(event string, payload any) (kafkago.Message, error) {
	env, err := NewEnvelope(event, payload)
	if err != nil {
		return kafkago.Message{}, err
	}
	msg := kafkago.Message{
		Value:   env.Data,
		Headers: []kafkago.Header{{Key: "event", Value: []byte(event)}},
	}
	// Predictions for one location land on the same partition.
	if rec, ok := payload.(scoring.PredictionRecord); ok {
		msg.Key = []byte(rec.Location)
	}
	return msg, nil
}
