//go:build integration

package worker_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/messaging"
	"github.com/joao-fontenele/storefront/internal/notify"
	"github.com/joao-fontenele/storefront/internal/testsupport"
	"github.com/joao-fontenele/storefront/internal/worker"
)

type capturingSender struct {
	mu  sync.Mutex
	got chan domain.OrderPlacedEvent
}

func (s *capturingSender) Send(_ context.Context, event domain.OrderPlacedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got <- event
	return nil
}

func TestOrderPlacedEventReachesWorker(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	brokers, cleanup := testsupport.SetupKafka(ctx, t)
	defer cleanup()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	const topic = "order.placed.test"

	producer := messaging.NewProducer(brokers, topic)
	defer func() { _ = producer.Close() }()

	line := domain.NewOrderLine(domain.Product{ID: uuid.New(), Name: "Gochujang", Price: decimal.NewFromInt(8000)}, 3)
	event := domain.OrderPlacedEvent{
		OrderID:     uuid.New(),
		OrderNumber: 7,
		UserID:      uuid.New(),
		StoreName:   "Incheon Grocer",
		Lines:       []domain.OrderLine{line},
		Total:       line.Subtotal,
		PlacedAt:    time.Now().UTC(),
	}

	// first a payload the worker must skip, then the real event
	if err := producer.Publish(ctx, "garbage", map[string]string{"hello": "world"}); err != nil {
		t.Fatalf("failed to publish malformed event: %v", err)
	}
	if err := notify.NewKafkaDispatcher(producer).Dispatch(ctx, event); err != nil {
		t.Fatalf("failed to dispatch event: %v", err)
	}

	sender := &capturingSender{got: make(chan domain.OrderPlacedEvent, 1)}
	handler := worker.NewNotificationHandler(sender, logger)

	var skipped int
	consumer := messaging.NewConsumer(brokers, topic, "worker-test",
		messaging.WithStartOffset(kafka.FirstOffset),
		messaging.WithErrorHandler(func(_ kafka.Message, err error) error {
			if errors.Is(err, worker.ErrMalformedEvent) {
				skipped++
				return nil
			}
			return err
		}),
	)
	defer func() { _ = consumer.Close() }()

	consumeCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- consumer.Consume(consumeCtx, handler.Handle) }()

	select {
	case got := <-sender.got:
		if got.OrderID != event.OrderID {
			t.Fatalf("expected order %s, got %s", event.OrderID, got.OrderID)
		}
		if got.StoreName != "Incheon Grocer" {
			t.Errorf("unexpected store name %q", got.StoreName)
		}
		if !got.Total.Equal(decimal.NewFromInt(24000)) {
			t.Errorf("expected total 24000, got %s", got.Total)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for the worker")
	}

	stop()
	<-done

	if skipped != 1 {
		t.Errorf("expected 1 skipped malformed message, got %d", skipped)
	}
}
