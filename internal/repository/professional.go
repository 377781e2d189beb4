package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/renolink/renolink-backend/internal/domain"
)

const professionalColumns = `id, project_id, professional_id, status, created_at`

type ProjectProfessionalRepository struct {
	db *sql.DB
}

func NewProjectProfessionalRepository(db *sql.DB) *ProjectProfessionalRepository {
	return &ProjectProfessionalRepository{db: db}
}

func (r *ProjectProfessionalRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.ProjectProfessional, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+professionalColumns+` FROM project_professionals WHERE id = $1`, id,
	)
	pp, err := scanProjectProfessional(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return pp, nil
}

func (r *ProjectProfessionalRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]domain.ProjectProfessional, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+professionalColumns+` FROM project_professionals
		WHERE project_id = $1 ORDER BY created_at`, projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByProject: %w", err)
	}
	defer rows.Close()

	var links []domain.ProjectProfessional
	for rows.Next() {
		pp, err := scanProjectProfessional(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByProject: scan: %w", err)
		}
		links = append(links, *pp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByProject: rows: %w", err)
	}
	return links, nil
}

func scanProjectProfessional(s scanner) (*domain.ProjectProfessional, error) {
	var pp domain.ProjectProfessional
	err := s.Scan(&pp.ID, &pp.ProjectID, &pp.ProfessionalID, &pp.Status, &pp.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &pp, nil
}
