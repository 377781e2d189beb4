// Package notify delivers the best-effort side effects that follow a
// committed financial transition. Nothing here may fail the caller: every
// error is logged and dropped.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/renolink/renolink-backend/internal/domain"
	"github.com/renolink/renolink-backend/internal/logging"
)

type FundsSecuredEvent struct {
	ProjectID             uuid.UUID
	ProjectName           string
	ProjectProfessionalID *uuid.UUID
	Amount                decimal.Decimal
	Currency              string
	ClientEmail           string
	ProfessionalEmail     string
}

type AdvanceApprovedEvent struct {
	ProjectID             uuid.UUID
	ProjectProfessionalID *uuid.UUID
	Amount                decimal.Decimal
	Currency              string
}

type chatStore interface {
	Create(ctx context.Context, m *domain.ProjectMessage) error
}

// Mailer is the outbound email collaborator. Implementations are expected to
// be slow and unreliable; callers never depend on the outcome.
type Mailer interface {
	SendFundsSecureNotification(ctx context.Context, to string, role domain.Role, projectName, projectURL string) error
}

type Notifier struct {
	chat       chatStore
	mailer     Mailer
	appBaseURL string
}

// NewNotifier accepts a nil mailer; email delivery is then skipped entirely.
func NewNotifier(chat chatStore, mailer Mailer, appBaseURL string) *Notifier {
	return &Notifier{chat: chat, mailer: mailer, appBaseURL: appBaseURL}
}

func (n *Notifier) FundsSecured(ctx context.Context, ev FundsSecuredEvent) {
	log := logging.FromContext(ctx)

	body := fmt.Sprintf("Funds of %s %s are now secured in escrow for this project.",
		ev.Amount.StringFixed(2), ev.Currency)
	n.postSystemMessage(ctx, ev.ProjectID, ev.ProjectProfessionalID, body)

	projectURL := fmt.Sprintf("%s/projects/%s", n.appBaseURL, ev.ProjectID)
	n.sendMail(ctx, ev.ClientEmail, domain.RoleClient, ev.ProjectName, projectURL)
	n.sendMail(ctx, ev.ProfessionalEmail, domain.RoleProfessional, ev.ProjectName, projectURL)

	log.Debug("funds secured notifications dispatched", "project_id", ev.ProjectID)
}

func (n *Notifier) AdvanceApproved(ctx context.Context, ev AdvanceApprovedEvent) {
	body := fmt.Sprintf("Advance payment of %s %s was approved and queued for release.",
		ev.Amount.StringFixed(2), ev.Currency)
	n.postSystemMessage(ctx, ev.ProjectID, ev.ProjectProfessionalID, body)
}

func (n *Notifier) postSystemMessage(ctx context.Context, projectID uuid.UUID, linkID *uuid.UUID, body string) {
	msg := &domain.ProjectMessage{
		ID:                    uuid.New(),
		ProjectID:             projectID,
		ProjectProfessionalID: linkID,
		SenderID:              nil,
		Body:                  body,
		CreatedAt:             time.Now().UTC(),
	}
	if err := n.chat.Create(ctx, msg); err != nil {
		logging.FromContext(ctx).Warn("system chat message failed",
			"project_id", projectID, "error", err)
	}
}

func (n *Notifier) sendMail(ctx context.Context, to string, role domain.Role, projectName, projectURL string) {
	if n.mailer == nil || to == "" {
		return
	}
	if err := n.mailer.SendFundsSecureNotification(ctx, to, role, projectName, projectURL); err != nil {
		logging.FromContext(ctx).Warn("funds secured email failed",
			"to", to, "role", role, "error", err)
	}
}
