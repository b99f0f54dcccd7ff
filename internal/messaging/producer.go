package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	headerContentType = "content-type"
	headerEventType   = "event-type"
)

var (
	producerTracer = otel.Tracer("messaging/producer")
	producerMeter  = otel.Meter("messaging/producer")
)

// Typed events carry their type in the event-type header so consumers can
// tell payloads apart without decoding them.
type Typed interface {
	EventType() string
}

type Producer struct {
	writer    *kafka.Writer
	topic     string
	published metric.Int64Counter
}

type ProducerOption func(*kafka.Writer)

// WithWriteTimeout bounds how long a single publish may wait on the brokers.
func WithWriteTimeout(d time.Duration) ProducerOption {
	return func(w *kafka.Writer) {
		w.WriteTimeout = d
	}
}

// NewProducer writes to topic. Messages are hashed by key and acknowledged by
// every in-sync replica.
func NewProducer(brokers []string, topic string, opts ...ProducerOption) *Producer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
		WriteTimeout:           10 * time.Second,
	}
	for _, opt := range opts {
		opt(w)
	}

	published, _ := producerMeter.Int64Counter("messaging.published",
		metric.WithDescription("Messages handed to kafka, by outcome."))

	return &Producer{writer: w, topic: topic, published: published}
}

// Publish writes event as JSON keyed by key, so events with the same key keep
// their order. The current trace context travels in the headers.
func (p *Producer) Publish(ctx context.Context, key string, event any) error {
	msg, eventType, err := newMessage(key, event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", p.topic, err)
	}

	ctx, span := producerTracer.Start(ctx, "send "+p.topic,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingOperationName("send"),
			semconv.MessagingOperationTypePublish,
			semconv.MessagingDestinationName(p.topic),
			semconv.MessagingKafkaMessageKey(key),
			attribute.String("messaging.event_type", eventType),
		),
	)
	defer span.End()

	injectTrace(ctx, &msg)

	outcome := "ok"
	defer func() {
		p.published.Add(ctx, 1, metric.WithAttributes(
			attribute.String("topic", p.topic),
			attribute.String("outcome", outcome),
		))
	}()

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("publish to %s: %w", p.topic, err)
	}

	return nil
}

func newMessage(key string, event any) (kafka.Message, string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, "", err
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: headerContentType, Value: []byte("application/json")},
		},
	}
	eventType := "unknown"
	if typed, ok := event.(Typed); ok {
		eventType = typed.EventType()
		msg.Headers = append(msg.Headers, kafka.Header{Key: headerEventType, Value: []byte(eventType)})
	}
	return msg, eventType, nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
