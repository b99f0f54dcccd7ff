package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/joao-fontenele/storefront/internal/domain"
)

// ErrMalformedEvent marks payloads that will never succeed and should be
// skipped rather than retried.
var ErrMalformedEvent = errors.New("malformed order placed event")

type Sender interface {
	Send(ctx context.Context, event domain.OrderPlacedEvent) error
}

// NotificationHandler consumes order.placed events and mails the summary.
type NotificationHandler struct {
	sender Sender
	logger *slog.Logger
}

func NewNotificationHandler(sender Sender, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		sender: sender,
		logger: logger,
	}
}

func (h *NotificationHandler) Handle(ctx context.Context, payload []byte) error {
	var event domain.OrderPlacedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if event.OrderID == uuid.Nil || len(event.Lines) == 0 {
		return fmt.Errorf("%w: missing order id or lines", ErrMalformedEvent)
	}

	h.logger.Info("processing order placed event",
		"order_id", event.OrderID,
		"order_number", domain.FormatOrderNumber(event.OrderNumber),
		"user_id", event.UserID,
	)

	if err := h.sender.Send(ctx, event); err != nil {
		h.logger.Error("failed to send order notification", "error", err, "order_id", event.OrderID)
		return fmt.Errorf("send order notification: %w", err)
	}

	h.logger.Info("order notification sent", "order_id", event.OrderID)
	return nil
}
