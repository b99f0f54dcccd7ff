package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/email"
)

type Mailer interface {
	Send(ctx context.Context, msg email.Message) error
}

// Sender renders an order summary and mails it to the administrator.
type Sender struct {
	mailer    Mailer
	recipient string
	attachPDF bool
	renderPDF func(domain.OrderPlacedEvent) ([]byte, error)
	logger    *slog.Logger
}

func NewSender(mailer Mailer, recipient string, attachPDF bool, logger *slog.Logger) *Sender {
	return &Sender{
		mailer:    mailer,
		recipient: recipient,
		attachPDF: attachPDF,
		renderPDF: RenderPDF,
		logger:    logger,
	}
}

// Send mails the summary for event. A PDF that fails to render is dropped
// and the mail goes out without it.
func (s *Sender) Send(ctx context.Context, event domain.OrderPlacedEvent) error {
	var attachments []email.Attachment
	if s.attachPDF {
		doc, err := s.renderPDF(event)
		if err != nil {
			s.logger.Warn("order pdf rendering failed, sending without attachment",
				"error", err,
				"order_id", event.OrderID,
			)
		} else {
			attachments = append(attachments, email.Attachment{
				Filename:    PDFFilename,
				ContentType: "application/pdf",
				Data:        doc,
			})
		}
	}

	summary, err := RenderSummary(event, len(attachments) > 0)
	if err != nil {
		return err
	}

	if err := s.mailer.Send(ctx, email.Message{
		To:          s.recipient,
		Subject:     summary.Subject,
		HTML:        summary.HTML,
		Text:        summary.Text,
		Attachments: attachments,
	}); err != nil {
		return fmt.Errorf("mail order %s: %w", domain.FormatOrderNumber(event.OrderNumber), err)
	}
	return nil
}
