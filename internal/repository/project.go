package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/renolink/renolink-backend/internal/domain"
)

const projectColumns = `id, name, client_id, status, escrow_held, escrow_required,
	approved_budget, escrow_held_updated_at, created_at`

type ProjectRepository struct {
	db *sql.DB
}

func NewProjectRepository(db *sql.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = $1`, id,
	)
	p, err := scanProject(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return p, nil
}

// GetForUpdate locks the project row, serializing concurrent units that
// touch the same escrow balance.
func (r *ProjectRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.Project, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = $1 FOR UPDATE`, id,
	)
	p, err := scanProject(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return p, nil
}

// ApplyEscrowDelta moves the cached balance inside an atomic unit. The
// GREATEST floor keeps escrow_held from ever reporting negative, even if the
// prior state was inconsistent.
func (r *ProjectRepository) ApplyEscrowDelta(ctx context.Context, tx *sql.Tx, id uuid.UUID, delta decimal.Decimal) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE projects
		SET escrow_held = GREATEST(escrow_held + $1, 0), escrow_held_updated_at = now()
		WHERE id = $2`,
		delta, id,
	)
	if err != nil {
		return fmt.Errorf("ApplyEscrowDelta: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ApplyEscrowDelta: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("ApplyEscrowDelta: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *ProjectRepository) SetAward(ctx context.Context, tx *sql.Tx, id uuid.UUID, approvedBudget, escrowRequired decimal.Decimal) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE projects
		SET approved_budget = $1, escrow_required = $2, status = $3
		WHERE id = $4`,
		approvedBudget, escrowRequired, domain.ProjectStatusAwarded, id,
	)
	if err != nil {
		return fmt.Errorf("SetAward: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("SetAward: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("SetAward: %w", domain.ErrNotFound)
	}
	return nil
}

func scanProject(s scanner) (*domain.Project, error) {
	var p domain.Project
	err := s.Scan(
		&p.ID, &p.Name, &p.ClientID, &p.Status, &p.EscrowHeld, &p.EscrowRequired,
		&p.ApprovedBudget, &p.EscrowHeldUpdatedAt, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
