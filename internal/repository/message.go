package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/renolink/renolink-backend/internal/domain"
)

// MessageRepository covers the single chat concern the financial core owns:
// inserting system messages after a committed state transition.
type MessageRepository struct {
	db *sql.DB
}

func NewMessageRepository(db *sql.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(ctx context.Context, m *domain.ProjectMessage) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO project_messages (
			id, project_id, project_professional_id, sender_id, body, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.ProjectID, m.ProjectProfessionalID, m.SenderID, m.Body, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}
