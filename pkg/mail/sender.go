package mail

import (
	"context"
	"fmt"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/akbarsho/storefront-backend/pkg/config"
	"github.com/akbarsho/storefront-backend/pkg/logger"
)

// Sender delivers transactional email. The notifier worker is the only caller.
type Sender interface {
	Send(ctx context.Context, to, subject, plain, html string) error
}

type sendClient interface {
	Send(message *sgmail.SGMailV3) (*rest.Response, error)
}

// SendgridSender sends mail through the SendGrid v3 API.
type SendgridSender struct {
	client    sendClient
	fromEmail string
	fromName  string
	logg      *logger.Logger
}

// NewSendgridSender validates the mail configuration and returns a sender.
func NewSendgridSender(cfg config.MailConfig, logg *logger.Logger) (*SendgridSender, error) {
	if strings.TrimSpace(cfg.SendgridAPIKey) == "" {
		return nil, fmt.Errorf("sendgrid api key is required")
	}
	if strings.TrimSpace(cfg.FromEmail) == "" {
		return nil, fmt.Errorf("mail from address is required")
	}
	return &SendgridSender{
		client:    sendgrid.NewSendClient(cfg.SendgridAPIKey),
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		logg:      logg,
	}, nil
}

func (s *SendgridSender) Send(ctx context.Context, to, subject, plain, html string) error {
	if strings.TrimSpace(to) == "" {
		return fmt.Errorf("recipient address is empty")
	}

	from := sgmail.NewEmail(s.fromName, s.fromEmail)
	recipient := sgmail.NewEmail("", to)
	if html == "" {
		html = fmt.Sprintf("<pre>%s</pre>", plain)
	}
	message := sgmail.NewSingleEmail(from, subject, recipient, plain, html)

	resp, err := s.client.Send(message)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid send failed: status=%d body=%s", resp.StatusCode, resp.Body)
	}

	if s.logg != nil {
		ctx = s.logg.WithFields(ctx, map[string]any{
			"to":      to,
			"subject": subject,
			"status":  resp.StatusCode,
		})
		s.logg.Info(ctx, "mail sent")
	}
	return nil
}
