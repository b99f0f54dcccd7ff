package messaging

import (
	"encoding/json"
	"testing"
)

type typedEvent struct {
	ID string `json:"id"`
}

func (typedEvent) EventType() string { return "thing.happened" }

func TestNewMessage(t *testing.T) {
	msg, eventType, err := newMessage("order-1", typedEvent{ID: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if string(msg.Key) != "order-1" {
		t.Errorf("expected key order-1, got %q", msg.Key)
	}
	if eventType != "thing.happened" {
		t.Errorf("expected event type thing.happened, got %q", eventType)
	}

	carrier := NewMessageCarrier(&msg)
	if got := carrier.Get(headerEventType); got != "thing.happened" {
		t.Errorf("expected event-type header, got %q", got)
	}
	if got := carrier.Get(headerContentType); got != "application/json" {
		t.Errorf("expected json content type, got %q", got)
	}

	var decoded typedEvent
	if err := json.Unmarshal(msg.Value, &decoded); err != nil || decoded.ID != "x" {
		t.Errorf("unexpected payload %s: %v", msg.Value, err)
	}
}

func TestNewMessage_Untyped(t *testing.T) {
	msg, eventType, err := newMessage("k", map[string]int{"a": 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eventType != "unknown" {
		t.Errorf("expected unknown event type, got %q", eventType)
	}
	if got := NewMessageCarrier(&msg).Get(headerEventType); got != "" {
		t.Errorf("expected no event-type header, got %q", got)
	}
}

func TestNewMessage_Unmarshalable(t *testing.T) {
	if _, _, err := newMessage("k", make(chan int)); err == nil {
		t.Error("expected an error for a value json cannot encode")
	}
}
