package domain

import (
	"time"

	"github.com/google/uuid"
)

// ProjectMessage is a chat message in a project thread. SenderID nil marks a
// system-authored message. The financial core only ever inserts system
// messages; reading and delivery belong to the chat service.
type ProjectMessage struct {
	ID                    uuid.UUID
	ProjectID             uuid.UUID
	ProjectProfessionalID *uuid.UUID
	SenderID              *uuid.UUID
	Body                  string
	CreatedAt             time.Time
}
