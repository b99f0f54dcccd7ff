package email

import (
	"bytes"
	"strings"
	"testing"

	"github.com/joao-fontenele/storefront/internal/config"
)

func TestBuildMessage(t *testing.T) {
	msg, err := buildMessage("orders@example.com", Message{
		To:      "admin@example.com",
		Subject: "New Order from Mapo Mart",
		HTML:    "<h2>New Order Received</h2>",
		Text:    "New order ORD-00001",
		Attachments: []Attachment{
			{Filename: "order.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.3")},
		},
	})
	if err != nil {
		t.Fatalf("buildMessage() error: %v", err)
	}

	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		t.Fatalf("failed to write message: %v", err)
	}
	raw := buf.String()

	for _, want := range []string{
		"Subject: New Order from Mapo Mart",
		`"Order System" <orders@example.com>`,
		"<admin@example.com>",
		"order.pdf",
		"application/pdf",
		"text/html",
	} {
		if !strings.Contains(raw, want) {
			t.Errorf("expected message to contain %q", want)
		}
	}
}

func TestBuildMessage_InvalidRecipient(t *testing.T) {
	if _, err := buildMessage("orders@example.com", Message{To: "not an address", Text: "hi"}); err == nil {
		t.Fatal("expected error for invalid recipient")
	}
}

func TestNewMailer_RequiresHost(t *testing.T) {
	if _, err := NewMailer(config.MailConfig{From: "orders@example.com"}, nil); err == nil {
		t.Fatal("expected error without host")
	}
	if _, err := NewMailer(config.MailConfig{Host: "smtp.example.com", Port: 587}, nil); err == nil {
		t.Fatal("expected error without sender")
	}
}
