package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/renolink/renolink-backend/internal/domain"
)

const transactionColumns = `id, project_id, project_professional_id, type, description, notes,
	amount, status, requested_by, requested_by_role, action_by, action_by_role,
	action_at, action_complete, created_at`

type TransactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, t *domain.FinancialTransaction) error {
	if err := insertTransaction(ctx, r.db, t); err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

// CreateTx inserts within an open atomic unit.
func (r *TransactionRepository) CreateTx(ctx context.Context, tx *sql.Tx, t *domain.FinancialTransaction) error {
	if err := insertTransaction(ctx, tx, t); err != nil {
		return fmt.Errorf("CreateTx: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertTransaction(ctx context.Context, q execer, t *domain.FinancialTransaction) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO financial_transactions (
			id, project_id, project_professional_id, type, description, notes,
			amount, status, requested_by, requested_by_role, action_by, action_by_role,
			action_at, action_complete, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		t.ID, t.ProjectID, t.ProjectProfessionalID, t.Type, t.Description, t.Notes,
		t.Amount, t.Status, t.RequestedBy, t.RequestedByRole, t.ActionBy, t.ActionByRole,
		t.ActionAt, t.ActionComplete, t.CreatedAt,
	)
	return err
}

func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.FinancialTransaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM financial_transactions WHERE id = $1`, id,
	)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return t, nil
}

// GetByIDForUpdate locks the transaction row for the duration of the unit.
func (r *TransactionRepository) GetByIDForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.FinancialTransaction, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM financial_transactions WHERE id = $1 FOR UPDATE`, id,
	)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByIDForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByIDForUpdate: %w", err)
	}
	return t, nil
}

func (r *TransactionRepository) ListByProject(ctx context.Context, projectID uuid.UUID, limit int) ([]domain.FinancialTransaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM financial_transactions
		WHERE project_id = $1 ORDER BY created_at DESC LIMIT $2`,
		projectID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByProject: %w", err)
	}
	defer rows.Close()

	var txs []domain.FinancialTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByProject: scan: %w", err)
		}
		txs = append(txs, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByProject: rows: %w", err)
	}
	return txs, nil
}

// MarkActioned performs the guarded terminal transition inside an atomic
// unit. The action_complete = FALSE predicate is what makes two concurrent
// transitions on the same id resolve to exactly one winner; the caller maps
// applied == false to ErrAlreadyTerminal.
func (r *TransactionRepository) MarkActioned(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.TransactionStatus, actionBy *uuid.UUID, actionByRole domain.Role, notes *string, actionAt time.Time) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE financial_transactions
		SET status = $1, action_by = $2, action_by_role = $3, action_at = $4,
			action_complete = TRUE, notes = COALESCE($5, notes)
		WHERE id = $6 AND action_complete = FALSE`,
		status, actionBy, actionByRole, actionAt, notes, id,
	)
	if err != nil {
		return false, fmt.Errorf("MarkActioned: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("MarkActioned: rows affected: %w", err)
	}
	return rows > 0, nil
}

// Reject is the non-ledger terminal transition; it runs as a single guarded
// statement outside any unit.
func (r *TransactionRepository) Reject(ctx context.Context, id uuid.UUID, actionBy uuid.UUID, actionByRole domain.Role, reason string, actionAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE financial_transactions
		SET status = $1, action_by = $2, action_by_role = $3, action_at = $4,
			action_complete = TRUE, notes = $5
		WHERE id = $6 AND action_complete = FALSE`,
		domain.TransactionStatusRejected, actionBy, actionByRole, actionAt, reason, id,
	)
	if err != nil {
		return false, fmt.Errorf("Reject: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("Reject: rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *TransactionRepository) AggregateByTypeStatus(ctx context.Context, projectID uuid.UUID) ([]domain.TransactionAggregate, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT type, status, COALESCE(SUM(amount), 0)
		FROM financial_transactions
		WHERE project_id = $1
		GROUP BY type, status`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("AggregateByTypeStatus: %w", err)
	}
	defer rows.Close()

	var aggs []domain.TransactionAggregate
	for rows.Next() {
		var a domain.TransactionAggregate
		if err := rows.Scan(&a.Type, &a.Status, &a.Total); err != nil {
			return nil, fmt.Errorf("AggregateByTypeStatus: scan: %w", err)
		}
		aggs = append(aggs, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("AggregateByTypeStatus: rows: %w", err)
	}
	return aggs, nil
}

func scanTransaction(s scanner) (*domain.FinancialTransaction, error) {
	var t domain.FinancialTransaction
	var linkID, actionBy uuid.NullUUID
	var actionByRole *string
	var amount decimal.Decimal

	err := s.Scan(
		&t.ID, &t.ProjectID, &linkID, &t.Type, &t.Description, &t.Notes,
		&amount, &t.Status, &t.RequestedBy, &t.RequestedByRole, &actionBy, &actionByRole,
		&t.ActionAt, &t.ActionComplete, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Amount = amount
	if linkID.Valid {
		t.ProjectProfessionalID = &linkID.UUID
	}
	if actionBy.Valid {
		t.ActionBy = &actionBy.UUID
	}
	if actionByRole != nil {
		role := domain.Role(*actionByRole)
		t.ActionByRole = &role
	}

	return &t, nil
}
