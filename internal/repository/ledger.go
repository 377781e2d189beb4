package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/renolink/renolink-backend/internal/domain"
)

const ledgerColumns = `id, project_id, project_professional_id, transaction_id, direction,
	amount, currency, description, created_by, created_at`

// LedgerRepository is append-only: it exposes insert and ordered read, and
// nothing else. There is no update or delete path.
type LedgerRepository struct {
	db *sql.DB
}

func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) Create(ctx context.Context, tx *sql.Tx, entry *domain.LedgerEntry) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO ledger_entries (
			id, project_id, project_professional_id, transaction_id, direction,
			amount, currency, description, created_by, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID, entry.ProjectID, entry.ProjectProfessionalID, entry.TransactionID, entry.Direction,
		entry.Amount, entry.Currency, entry.Description, entry.CreatedBy, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *LedgerRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]domain.LedgerEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_entries
		WHERE project_id = $1 ORDER BY created_at, id`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByProject: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByProject: scan: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByProject: rows: %w", err)
	}
	return entries, nil
}

func scanLedgerEntry(s scanner) (*domain.LedgerEntry, error) {
	var e domain.LedgerEntry
	var linkID uuid.NullUUID

	err := s.Scan(
		&e.ID, &e.ProjectID, &linkID, &e.TransactionID, &e.Direction,
		&e.Amount, &e.Currency, &e.Description, &e.CreatedBy, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if linkID.Valid {
		e.ProjectProfessionalID = &linkID.UUID
	}
	return &e, nil
}
