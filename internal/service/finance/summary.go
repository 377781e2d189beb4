package finance

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/renolink/renolink-backend/internal/domain"
	"github.com/renolink/renolink-backend/internal/retry"
)

// Summary is the derived per-project financial picture.
//
// EscrowConfirmed deliberately excludes pending escrow_deposit_confirmation
// rows: a deposit never appears as secured funds until it is confirmed.
type Summary struct {
	TotalEscrow             decimal.Decimal
	EscrowConfirmed         decimal.Decimal
	AdvancePaymentRequested decimal.Decimal
	AdvancePaymentApproved  decimal.Decimal
	PaymentsReleased        decimal.Decimal
	Transactions            []domain.FinancialTransaction
}

func (s *Service) GetProjectFinancialSummary(ctx context.Context, projectID uuid.UUID) (*Summary, error) {
	aggs, err := retry.Do(ctx, s.retry, func(ctx context.Context) ([]domain.TransactionAggregate, error) {
		return s.transactions.AggregateByTypeStatus(ctx, projectID)
	})
	if err != nil {
		return nil, fmt.Errorf("GetProjectFinancialSummary: %w", err)
	}

	txs, err := retry.Do(ctx, s.retry, func(ctx context.Context) ([]domain.FinancialTransaction, error) {
		return s.transactions.ListByProject(ctx, projectID, maxTransactionPage)
	})
	if err != nil {
		return nil, fmt.Errorf("GetProjectFinancialSummary: %w", err)
	}

	summary := &Summary{Transactions: txs}
	for _, a := range aggs {
		confirmed := a.Status == domain.TransactionStatusConfirmed
		switch a.Type {
		case domain.TransactionTypeEscrowDeposit:
			summary.TotalEscrow = summary.TotalEscrow.Add(a.Total)
			if confirmed {
				summary.EscrowConfirmed = summary.EscrowConfirmed.Add(a.Total)
			}
		case domain.TransactionTypeEscrowDepositConfirmation:
			if confirmed {
				summary.EscrowConfirmed = summary.EscrowConfirmed.Add(a.Total)
			}
		case domain.TransactionTypePaymentRequest:
			summary.AdvancePaymentRequested = summary.AdvancePaymentRequested.Add(a.Total)
		case domain.TransactionTypeAdvancePaymentApproval:
			if confirmed {
				summary.AdvancePaymentApproved = summary.AdvancePaymentApproved.Add(a.Total)
			}
		case domain.TransactionTypeReleasePayment:
			if confirmed {
				summary.PaymentsReleased = summary.PaymentsReleased.Add(a.Total)
			}
		}
	}

	return summary, nil
}
