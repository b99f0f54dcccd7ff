package notify

import (
	"context"
	"log/slog"

	"github.com/joao-fontenele/storefront/internal/domain"
)

type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// KafkaDispatcher hands the event to the notification worker through kafka.
type KafkaDispatcher struct {
	publisher Publisher
}

func NewKafkaDispatcher(publisher Publisher) *KafkaDispatcher {
	return &KafkaDispatcher{publisher: publisher}
}

func (d *KafkaDispatcher) Dispatch(ctx context.Context, event domain.OrderPlacedEvent) error {
	return d.publisher.Publish(ctx, event.OrderID.String(), event)
}

// DirectDispatcher sends the mail from the API process itself.
type DirectDispatcher struct {
	sender *Sender
}

func NewDirectDispatcher(sender *Sender) *DirectDispatcher {
	return &DirectDispatcher{sender: sender}
}

func (d *DirectDispatcher) Dispatch(ctx context.Context, event domain.OrderPlacedEvent) error {
	return d.sender.Send(ctx, event)
}

// NopDispatcher only logs. Used when neither kafka nor mail is configured.
type NopDispatcher struct {
	logger *slog.Logger
}

func NewNopDispatcher(logger *slog.Logger) *NopDispatcher {
	return &NopDispatcher{logger: logger}
}

func (d *NopDispatcher) Dispatch(_ context.Context, event domain.OrderPlacedEvent) error {
	d.logger.Warn("notifications disabled, dropping order event",
		"order_id", event.OrderID,
		"order_number", domain.FormatOrderNumber(event.OrderNumber),
	)
	return nil
}
