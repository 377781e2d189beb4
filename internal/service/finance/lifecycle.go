package finance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/renolink/renolink-backend/internal/domain"
	"github.com/renolink/renolink-backend/internal/logging"
	"github.com/renolink/renolink-backend/internal/notify"
	"github.com/renolink/renolink-backend/internal/retry"
)

type CreateTransactionInput struct {
	ProjectID             uuid.UUID
	ProjectProfessionalID *uuid.UUID
	Type                  domain.TransactionType
	Description           string
	Notes                 *string
	Amount                decimal.Decimal
	Status                domain.TransactionStatus
	RequestedBy           uuid.UUID
	RequestedByRole       domain.Role
	ActionBy              *uuid.UUID
	ActionByRole          *domain.Role
	ActionComplete        *bool
}

// Create records a transaction. Creation never moves money: no ledger entry,
// no balance change.
func (s *Service) Create(ctx context.Context, in CreateTransactionInput) (*domain.FinancialTransaction, error) {
	if in.RequestedBy == uuid.Nil {
		return nil, fmt.Errorf("Create: %w", domain.ErrUnauthorized)
	}
	if !in.Type.IsValid() {
		return nil, fmt.Errorf("Create: %q: %w", in.Type, domain.ErrInvalidTransactionType)
	}
	if in.Amount.IsNegative() {
		return nil, fmt.Errorf("Create: %w", domain.ErrInvalidAmount)
	}

	actionComplete := domain.DefaultActionComplete(in.Type)
	if in.ActionComplete != nil {
		actionComplete = *in.ActionComplete
	}

	status := in.Status
	if status == "" {
		if domain.DefaultActionComplete(in.Type) {
			status = domain.TransactionStatusInfo
		} else {
			status = domain.TransactionStatusPending
		}
	}
	// Informational transactions are terminal from birth and never drive
	// balance changes.
	if status == domain.TransactionStatusInfo {
		actionComplete = true
	}

	t := &domain.FinancialTransaction{
		ID:                    uuid.New(),
		ProjectID:             in.ProjectID,
		ProjectProfessionalID: in.ProjectProfessionalID,
		Type:                  in.Type,
		Description:           in.Description,
		Notes:                 in.Notes,
		Amount:                in.Amount,
		Status:                status,
		RequestedBy:           in.RequestedBy,
		RequestedByRole:       in.RequestedByRole,
		ActionBy:              in.ActionBy,
		ActionByRole:          in.ActionByRole,
		ActionComplete:        actionComplete,
		CreatedAt:             time.Now().UTC(),
	}

	err := retry.Run(ctx, s.retry, func(ctx context.Context) error {
		return s.transactions.Create(ctx, t)
	})
	if err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}

	return t, nil
}

// ConfirmEscrowDeposit settles a deposit: the transaction becomes terminal,
// a credit ledger entry is written, and escrow_held grows by the amount. All
// three writes commit or none do.
func (s *Service) ConfirmEscrowDeposit(ctx context.Context, transactionID, approvedBy uuid.UUID) (*domain.FinancialTransaction, error) {
	log := logging.FromContext(ctx)

	if approvedBy == uuid.Nil {
		return nil, fmt.Errorf("ConfirmEscrowDeposit: %w", domain.ErrUnauthorized)
	}

	t, err := s.getTransaction(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("ConfirmEscrowDeposit: %w", err)
	}
	if t.Type != domain.TransactionTypeEscrowDeposit && t.Type != domain.TransactionTypeEscrowDepositConfirmation {
		return nil, fmt.Errorf("ConfirmEscrowDeposit: %q: %w", t.Type, domain.ErrInvalidTransactionType)
	}
	if t.ActionComplete {
		return nil, fmt.Errorf("ConfirmEscrowDeposit: %w", domain.ErrAlreadyTerminal)
	}

	now := time.Now().UTC()
	entry := &domain.LedgerEntry{
		ID:                    uuid.New(),
		ProjectID:             t.ProjectID,
		ProjectProfessionalID: t.ProjectProfessionalID,
		TransactionID:         t.ID,
		Direction:             domain.EntryDirectionCredit,
		Amount:                t.Amount,
		Currency:              s.currency,
		Description:           fmt.Sprintf("Escrow deposit confirmed: %s", t.Description),
		CreatedBy:             approvedBy,
		CreatedAt:             now,
	}

	if err := s.settle(ctx, t, approvedBy, entry, t.Amount, now); err != nil {
		return nil, fmt.Errorf("ConfirmEscrowDeposit: %w", err)
	}

	log.Info("escrow deposit confirmed",
		"transaction_id", t.ID,
		"project_id", t.ProjectID,
		"amount", t.Amount,
	)

	s.notifyFundsSecured(ctx, t)

	return t, nil
}

// ApproveAdvancePayment confirms the professional's payment_request and
// spawns the pending release_payment hand-off for any administrator to
// execute. No money moves until release.
func (s *Service) ApproveAdvancePayment(ctx context.Context, transactionID, approvedBy uuid.UUID, role domain.Role) (*ApprovalResult, error) {
	log := logging.FromContext(ctx)

	if approvedBy == uuid.Nil {
		return nil, fmt.Errorf("ApproveAdvancePayment: %w", domain.ErrUnauthorized)
	}
	if role == "" {
		role = domain.RoleClient
	}

	t, err := s.getTransaction(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("ApproveAdvancePayment: %w", err)
	}
	if t.Type != domain.TransactionTypePaymentRequest {
		return nil, fmt.Errorf("ApproveAdvancePayment: %q: %w", t.Type, domain.ErrInvalidTransactionType)
	}
	if t.ActionComplete {
		return nil, fmt.Errorf("ApproveAdvancePayment: %w", domain.ErrAlreadyTerminal)
	}

	now := time.Now().UTC()
	platform := domain.RolePlatform
	release := &domain.FinancialTransaction{
		ID:                    uuid.New(),
		ProjectID:             t.ProjectID,
		ProjectProfessionalID: t.ProjectProfessionalID,
		Type:                  domain.TransactionTypeReleasePayment,
		Description:           fmt.Sprintf("Release approved advance payment: %s", t.Description),
		Amount:                t.Amount,
		Status:                domain.TransactionStatusPending,
		RequestedBy:           approvedBy,
		RequestedByRole:       role,
		ActionBy:              nil, // any administrator may act
		ActionByRole:          &platform,
		ActionComplete:        false,
		CreatedAt:             now,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("ApproveAdvancePayment: begin tx: %w", err)
	}
	defer tx.Rollback()

	applied, err := s.transactions.MarkActioned(ctx, tx, t.ID, domain.TransactionStatusConfirmed, &approvedBy, role, nil, now)
	if err != nil {
		return nil, fmt.Errorf("ApproveAdvancePayment: %w", err)
	}
	if !applied {
		return nil, fmt.Errorf("ApproveAdvancePayment: %w", domain.ErrAlreadyTerminal)
	}

	if err := s.transactions.CreateTx(ctx, tx, release); err != nil {
		return nil, fmt.Errorf("ApproveAdvancePayment: create release: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("ApproveAdvancePayment: commit: %w", err)
	}

	applyAction(t, domain.TransactionStatusConfirmed, &approvedBy, role, now)

	log.Info("advance payment approved",
		"transaction_id", t.ID,
		"release_transaction_id", release.ID,
		"project_id", t.ProjectID,
		"amount", t.Amount,
	)

	s.notifier.AdvanceApproved(ctx, notify.AdvanceApprovedEvent{
		ProjectID:             t.ProjectID,
		ProjectProfessionalID: t.ProjectProfessionalID,
		Amount:                t.Amount,
		Currency:              s.currency,
	})

	return &ApprovalResult{Updated: t, ReleasePayment: release}, nil
}

type ApprovalResult struct {
	Updated        *domain.FinancialTransaction
	ReleasePayment *domain.FinancialTransaction
}

// RejectAdvancePayment closes a payment_request without any ledger effect.
func (s *Service) RejectAdvancePayment(ctx context.Context, transactionID, rejectedBy uuid.UUID, reason string, role domain.Role) (*domain.FinancialTransaction, error) {
	if rejectedBy == uuid.Nil {
		return nil, fmt.Errorf("RejectAdvancePayment: %w", domain.ErrUnauthorized)
	}
	if role == "" {
		role = domain.RoleClient
	}

	t, err := s.getTransaction(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("RejectAdvancePayment: %w", err)
	}
	if t.Type != domain.TransactionTypePaymentRequest {
		return nil, fmt.Errorf("RejectAdvancePayment: %q: %w", t.Type, domain.ErrInvalidTransactionType)
	}
	if t.ActionComplete {
		return nil, fmt.Errorf("RejectAdvancePayment: %w", domain.ErrAlreadyTerminal)
	}

	now := time.Now().UTC()
	applied, err := retry.Do(ctx, s.retry, func(ctx context.Context) (bool, error) {
		return s.transactions.Reject(ctx, transactionID, rejectedBy, role, reason, now)
	})
	if err != nil {
		return nil, fmt.Errorf("RejectAdvancePayment: %w", err)
	}
	if !applied {
		return nil, fmt.Errorf("RejectAdvancePayment: %w", domain.ErrAlreadyTerminal)
	}

	applyAction(t, domain.TransactionStatusRejected, &rejectedBy, role, now)
	t.Notes = &reason

	logging.FromContext(ctx).Info("advance payment rejected",
		"transaction_id", t.ID,
		"project_id", t.ProjectID,
	)

	return t, nil
}

// ReleasePayment debits escrow for an approved advance. Only release_payment
// transactions may be released, and only once; the balance is floored at
// zero.
func (s *Service) ReleasePayment(ctx context.Context, transactionID, releasedBy uuid.UUID) (*domain.FinancialTransaction, error) {
	log := logging.FromContext(ctx)

	if releasedBy == uuid.Nil {
		return nil, fmt.Errorf("ReleasePayment: %w", domain.ErrUnauthorized)
	}

	t, err := s.getTransaction(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("ReleasePayment: %w", err)
	}
	if t.Type != domain.TransactionTypeReleasePayment {
		return nil, fmt.Errorf("ReleasePayment: %q: %w", t.Type, domain.ErrInvalidTransactionType)
	}
	if t.ActionComplete {
		return nil, fmt.Errorf("ReleasePayment: %w", domain.ErrAlreadyTerminal)
	}

	now := time.Now().UTC()
	entry := &domain.LedgerEntry{
		ID:                    uuid.New(),
		ProjectID:             t.ProjectID,
		ProjectProfessionalID: t.ProjectProfessionalID,
		TransactionID:         t.ID,
		Direction:             domain.EntryDirectionDebit,
		Amount:                t.Amount,
		Currency:              s.currency,
		Description:           fmt.Sprintf("Payment released: %s", t.Description),
		CreatedBy:             releasedBy,
		CreatedAt:             now,
	}

	if err := s.settle(ctx, t, releasedBy, entry, t.Amount.Neg(), now); err != nil {
		return nil, fmt.Errorf("ReleasePayment: %w", err)
	}

	log.Info("payment released",
		"transaction_id", t.ID,
		"project_id", t.ProjectID,
		"amount", t.Amount,
	)

	return t, nil
}

// settle is the one atomic unit of the core: guarded terminal update on the
// transaction, ledger insert, balance delta. The project row is locked first
// so concurrent units against the same escrow balance serialize.
func (s *Service) settle(ctx context.Context, t *domain.FinancialTransaction, actor uuid.UUID, entry *domain.LedgerEntry, delta decimal.Decimal, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("settle: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := s.projects.GetForUpdate(ctx, tx, t.ProjectID); err != nil {
		return fmt.Errorf("settle: lock project: %w", err)
	}

	applied, err := s.transactions.MarkActioned(ctx, tx, t.ID, domain.TransactionStatusConfirmed, &actor, domain.RoleAdmin, nil, now)
	if err != nil {
		return fmt.Errorf("settle: %w", err)
	}
	if !applied {
		return fmt.Errorf("settle: %w", domain.ErrAlreadyTerminal)
	}

	if err := s.ledger.Create(ctx, tx, entry); err != nil {
		return fmt.Errorf("settle: ledger entry: %w", err)
	}

	if err := s.projects.ApplyEscrowDelta(ctx, tx, t.ProjectID, delta); err != nil {
		return fmt.Errorf("settle: balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("settle: commit: %w", err)
	}

	applyAction(t, domain.TransactionStatusConfirmed, &actor, domain.RoleAdmin, now)
	return nil
}

func applyAction(t *domain.FinancialTransaction, status domain.TransactionStatus, actor *uuid.UUID, role domain.Role, now time.Time) {
	t.Status = status
	t.ActionBy = actor
	t.ActionByRole = &role
	t.ActionAt = &now
	t.ActionComplete = true
}

// notifyFundsSecured resolves recipient emails on a best-effort basis; any
// lookup failure just shrinks the notification, never the committed state.
func (s *Service) notifyFundsSecured(ctx context.Context, t *domain.FinancialTransaction) {
	ev := notify.FundsSecuredEvent{
		ProjectID:             t.ProjectID,
		ProjectProfessionalID: t.ProjectProfessionalID,
		Amount:                t.Amount,
		Currency:              s.currency,
	}

	if p, err := s.projects.GetByID(ctx, t.ProjectID); err == nil {
		ev.ProjectName = p.Name
		if client, err := s.users.GetByID(ctx, p.ClientID); err == nil {
			ev.ClientEmail = client.Email
		}
	}
	if t.ProjectProfessionalID != nil {
		if link, err := s.professionals.GetByID(ctx, *t.ProjectProfessionalID); err == nil {
			if pro, err := s.users.GetByID(ctx, link.ProfessionalID); err == nil {
				ev.ProfessionalEmail = pro.Email
			}
		}
	}

	s.notifier.FundsSecured(ctx, ev)
}
