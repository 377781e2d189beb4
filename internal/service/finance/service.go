// Package finance is the project financial core: the transaction lifecycle
// engine, the escrow ledger with its balance cache, and the per-project
// summary aggregation.
package finance

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/renolink/renolink-backend/internal/domain"
	"github.com/renolink/renolink-backend/internal/notify"
	"github.com/renolink/renolink-backend/internal/retry"
)

// Newest-first transaction listings are bounded to this page.
const maxTransactionPage = 1000

type transactionStore interface {
	Create(ctx context.Context, t *domain.FinancialTransaction) error
	CreateTx(ctx context.Context, tx *sql.Tx, t *domain.FinancialTransaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.FinancialTransaction, error)
	GetByIDForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.FinancialTransaction, error)
	MarkActioned(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.TransactionStatus, actionBy *uuid.UUID, actionByRole domain.Role, notes *string, actionAt time.Time) (bool, error)
	Reject(ctx context.Context, id uuid.UUID, actionBy uuid.UUID, actionByRole domain.Role, reason string, actionAt time.Time) (bool, error)
	ListByProject(ctx context.Context, projectID uuid.UUID, limit int) ([]domain.FinancialTransaction, error)
	AggregateByTypeStatus(ctx context.Context, projectID uuid.UUID) ([]domain.TransactionAggregate, error)
}

type ledgerStore interface {
	Create(ctx context.Context, tx *sql.Tx, entry *domain.LedgerEntry) error
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]domain.LedgerEntry, error)
}

type projectStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Project, error)
	ApplyEscrowDelta(ctx context.Context, tx *sql.Tx, id uuid.UUID, delta decimal.Decimal) error
	SetAward(ctx context.Context, tx *sql.Tx, id uuid.UUID, approvedBudget, escrowRequired decimal.Decimal) error
}

type professionalStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ProjectProfessional, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]domain.ProjectProfessional, error)
}

type userStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

type notifier interface {
	FundsSecured(ctx context.Context, ev notify.FundsSecuredEvent)
	AdvanceApproved(ctx context.Context, ev notify.AdvanceApprovedEvent)
}

type Service struct {
	transactions  transactionStore
	ledger        ledgerStore
	projects      projectStore
	professionals professionalStore
	users         userStore
	notifier      notifier
	db            *sql.DB
	currency      string
	retry         retry.Config
}

func NewService(
	transactions transactionStore,
	ledger ledgerStore,
	projects projectStore,
	professionals professionalStore,
	users userStore,
	n notifier,
	db *sql.DB,
	currency string,
	retryCfg retry.Config,
) *Service {
	return &Service{
		transactions:  transactions,
		ledger:        ledger,
		projects:      projects,
		professionals: professionals,
		users:         users,
		notifier:      n,
		db:            db,
		currency:      currency,
		retry:         retryCfg,
	}
}

func (s *Service) getTransaction(ctx context.Context, id uuid.UUID) (*domain.FinancialTransaction, error) {
	return retry.Do(ctx, s.retry, func(ctx context.Context) (*domain.FinancialTransaction, error) {
		return s.transactions.GetByID(ctx, id)
	})
}

func (s *Service) getProject(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	return retry.Do(ctx, s.retry, func(ctx context.Context) (*domain.Project, error) {
		return s.projects.GetByID(ctx, id)
	})
}

func (s *Service) GetTransaction(ctx context.Context, id uuid.UUID) (*domain.FinancialTransaction, error) {
	t, err := s.getTransaction(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("GetTransaction: %w", err)
	}
	return t, nil
}

// GetProjectTransactions returns the bounded, newest-first listing.
func (s *Service) GetProjectTransactions(ctx context.Context, projectID uuid.UUID) ([]domain.FinancialTransaction, error) {
	txs, err := retry.Do(ctx, s.retry, func(ctx context.Context) ([]domain.FinancialTransaction, error) {
		return s.transactions.ListByProject(ctx, projectID, maxTransactionPage)
	})
	if err != nil {
		return nil, fmt.Errorf("GetProjectTransactions: %w", err)
	}
	return txs, nil
}

// AuthorizeViewer reports whether userID may read the project's financial
// data: admins always, the project's client, or any linked professional.
func (s *Service) AuthorizeViewer(ctx context.Context, projectID, userID uuid.UUID, role domain.Role) error {
	if role == domain.RoleAdmin || role == domain.RolePlatform {
		return nil
	}

	p, err := s.getProject(ctx, projectID)
	if err != nil {
		return fmt.Errorf("AuthorizeViewer: %w", err)
	}
	if p.ClientID == userID {
		return nil
	}

	links, err := retry.Do(ctx, s.retry, func(ctx context.Context) ([]domain.ProjectProfessional, error) {
		return s.professionals.ListByProject(ctx, projectID)
	})
	if err != nil {
		return fmt.Errorf("AuthorizeViewer: %w", err)
	}
	for _, link := range links {
		if link.ProfessionalID == userID {
			return nil
		}
	}

	return fmt.Errorf("AuthorizeViewer: %w", domain.ErrNotFound)
}
