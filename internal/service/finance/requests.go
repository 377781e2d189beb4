package finance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/renolink/renolink-backend/internal/domain"
	"github.com/renolink/renolink-backend/internal/logging"
	"github.com/renolink/renolink-backend/internal/retry"
)

// CreateEscrowDepositRequest asks the project's client to fund escrow. Pure
// creation: the counterpart is looked up to address the action, nothing else
// happens.
func (s *Service) CreateEscrowDepositRequest(ctx context.Context, projectID uuid.UUID, amount decimal.Decimal, description string, requestedBy uuid.UUID, requestedByRole domain.Role) (*domain.FinancialTransaction, error) {
	p, err := s.getProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("CreateEscrowDepositRequest: %w", err)
	}

	if description == "" {
		description = fmt.Sprintf("Escrow deposit request for %s", p.Name)
	}

	clientID := p.ClientID
	clientRole := domain.RoleClient
	t, err := s.Create(ctx, CreateTransactionInput{
		ProjectID:       projectID,
		Type:            domain.TransactionTypeEscrowDepositRequest,
		Description:     description,
		Amount:          amount,
		RequestedBy:     requestedBy,
		RequestedByRole: requestedByRole,
		ActionBy:        &clientID,
		ActionByRole:    &clientRole,
	})
	if err != nil {
		return nil, fmt.Errorf("CreateEscrowDepositRequest: %w", err)
	}
	return t, nil
}

// CreateAdvancePaymentRequest records a professional's request for partial
// payment before completion, addressed to the project's client.
func (s *Service) CreateAdvancePaymentRequest(ctx context.Context, projectProfessionalID uuid.UUID, amount decimal.Decimal, description string, requestedBy uuid.UUID) (*domain.FinancialTransaction, error) {
	link, err := retry.Do(ctx, s.retry, func(ctx context.Context) (*domain.ProjectProfessional, error) {
		return s.professionals.GetByID(ctx, projectProfessionalID)
	})
	if err != nil {
		return nil, fmt.Errorf("CreateAdvancePaymentRequest: %w", err)
	}

	p, err := s.getProject(ctx, link.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("CreateAdvancePaymentRequest: %w", err)
	}

	if description == "" {
		description = fmt.Sprintf("Advance payment request for %s", p.Name)
	}

	clientID := p.ClientID
	clientRole := domain.RoleClient
	t, err := s.Create(ctx, CreateTransactionInput{
		ProjectID:             link.ProjectID,
		ProjectProfessionalID: &link.ID,
		Type:                  domain.TransactionTypePaymentRequest,
		Description:           description,
		Amount:                amount,
		RequestedBy:           requestedBy,
		RequestedByRole:       domain.RoleProfessional,
		ActionBy:              &clientID,
		ActionByRole:          &clientRole,
	})
	if err != nil {
		return nil, fmt.Errorf("CreateAdvancePaymentRequest: %w", err)
	}
	return t, nil
}

type AwardResult struct {
	Quotation      *domain.FinancialTransaction
	DepositRequest *domain.FinancialTransaction
}

// AwardProject books the accepted quote: approved_budget and escrow_required
// are set on the project, an informational quotation_accepted transaction is
// recorded, and the client receives the initial escrow deposit request. The
// writes share one atomic unit; no money moves.
func (s *Service) AwardProject(ctx context.Context, projectID uuid.UUID, projectProfessionalID *uuid.UUID, quoteAmount decimal.Decimal, awardedBy uuid.UUID) (*AwardResult, error) {
	log := logging.FromContext(ctx)

	if awardedBy == uuid.Nil {
		return nil, fmt.Errorf("AwardProject: %w", domain.ErrUnauthorized)
	}
	if quoteAmount.IsNegative() {
		return nil, fmt.Errorf("AwardProject: %w", domain.ErrInvalidAmount)
	}

	p, err := s.getProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("AwardProject: %w", err)
	}

	now := time.Now().UTC()
	clientID := p.ClientID
	clientRole := domain.RoleClient

	quotation := &domain.FinancialTransaction{
		ID:                    uuid.New(),
		ProjectID:             projectID,
		ProjectProfessionalID: projectProfessionalID,
		Type:                  domain.TransactionTypeQuotationAccepted,
		Description:           fmt.Sprintf("Quotation accepted for %s", p.Name),
		Amount:                quoteAmount,
		Status:                domain.TransactionStatusInfo,
		RequestedBy:           awardedBy,
		RequestedByRole:       domain.RoleAdmin,
		ActionComplete:        true,
		CreatedAt:             now,
	}
	depositRequest := &domain.FinancialTransaction{
		ID:                    uuid.New(),
		ProjectID:             projectID,
		ProjectProfessionalID: projectProfessionalID,
		Type:                  domain.TransactionTypeEscrowDepositRequest,
		Description:           fmt.Sprintf("Escrow deposit request for %s", p.Name),
		Amount:                quoteAmount,
		Status:                domain.TransactionStatusPending,
		RequestedBy:           awardedBy,
		RequestedByRole:       domain.RoleAdmin,
		ActionBy:              &clientID,
		ActionByRole:          &clientRole,
		ActionComplete:        false,
		CreatedAt:             now,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("AwardProject: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.projects.SetAward(ctx, tx, projectID, quoteAmount, quoteAmount); err != nil {
		return nil, fmt.Errorf("AwardProject: %w", err)
	}
	if err := s.transactions.CreateTx(ctx, tx, quotation); err != nil {
		return nil, fmt.Errorf("AwardProject: quotation: %w", err)
	}
	if err := s.transactions.CreateTx(ctx, tx, depositRequest); err != nil {
		return nil, fmt.Errorf("AwardProject: deposit request: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("AwardProject: commit: %w", err)
	}

	log.Info("project awarded",
		"project_id", projectID,
		"approved_budget", quoteAmount,
	)

	return &AwardResult{Quotation: quotation, DepositRequest: depositRequest}, nil
}
