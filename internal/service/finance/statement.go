package finance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/renolink/renolink-backend/internal/domain"
	"github.com/renolink/renolink-backend/internal/retry"
)

// EscrowStatement is the audit view: the full ordered ledger plus the cached
// balance fields. Read-only.
type EscrowStatement struct {
	Entries             []domain.LedgerEntry
	EscrowHeld          decimal.Decimal
	EscrowRequired      decimal.Decimal
	ApprovedBudget      decimal.Decimal
	EscrowHeldUpdatedAt *time.Time
}

func (s *Service) GetEscrowStatement(ctx context.Context, projectID uuid.UUID) (*EscrowStatement, error) {
	p, err := s.getProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("GetEscrowStatement: %w", err)
	}

	entries, err := retry.Do(ctx, s.retry, func(ctx context.Context) ([]domain.LedgerEntry, error) {
		return s.ledger.ListByProject(ctx, projectID)
	})
	if err != nil {
		return nil, fmt.Errorf("GetEscrowStatement: %w", err)
	}

	return &EscrowStatement{
		Entries:             entries,
		EscrowHeld:          p.EscrowHeld,
		EscrowRequired:      p.EscrowRequired,
		ApprovedBudget:      p.ApprovedBudget,
		EscrowHeldUpdatedAt: p.EscrowHeldUpdatedAt,
	}, nil
}
