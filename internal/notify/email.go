package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/renolink/renolink-backend/internal/domain"
)

type SendGridMailer struct {
	client *sendgrid.Client
	from   *mail.Email
}

func NewSendGridMailer(apiKey, fromName, fromAddr string) *SendGridMailer {
	return &SendGridMailer{
		client: sendgrid.NewSendClient(apiKey),
		from:   mail.NewEmail(fromName, fromAddr),
	}
}

func (m *SendGridMailer) SendFundsSecureNotification(ctx context.Context, to string, role domain.Role, projectName, projectURL string) error {
	var body string
	switch role {
	case domain.RoleProfessional:
		body = fmt.Sprintf("The escrow deposit for %q has been confirmed. You can start work knowing the funds are secured.\n\n%s", projectName, projectURL)
	default:
		body = fmt.Sprintf("Your escrow deposit for %q has been confirmed and the funds are now secured.\n\n%s", projectName, projectURL)
	}

	msg := mail.NewSingleEmail(
		m.from,
		fmt.Sprintf("Funds secured for %s", projectName),
		mail.NewEmail("", to),
		body,
		"",
	)

	resp, err := m.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("SendFundsSecureNotification: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("SendFundsSecureNotification: sendgrid status %d", resp.StatusCode)
	}
	return nil
}
