package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ProjectStatus string

const (
	ProjectStatusOpen      ProjectStatus = "open"
	ProjectStatusAwarded   ProjectStatus = "awarded"
	ProjectStatusCompleted ProjectStatus = "completed"
	ProjectStatusCancelled ProjectStatus = "cancelled"
)

// Project carries the financial fields the ledger core owns. EscrowHeld must
// always equal the sum of credit ledger amounts minus debit ledger amounts
// for the project; it is only ever mutated inside the atomic ledger unit.
type Project struct {
	ID                  uuid.UUID
	Name                string
	ClientID            uuid.UUID
	Status              ProjectStatus
	EscrowHeld          decimal.Decimal
	EscrowRequired      decimal.Decimal
	ApprovedBudget      decimal.Decimal
	EscrowHeldUpdatedAt *time.Time
	CreatedAt           time.Time
}

type ProjectProfessionalStatus string

const (
	ProjectProfessionalStatusActive ProjectProfessionalStatus = "active"
	ProjectProfessionalStatusEnded  ProjectProfessionalStatus = "ended"
)

// ProjectProfessional is the relationship between a project and a hired
// professional. It is also the chat-thread key for notification hooks.
type ProjectProfessional struct {
	ID             uuid.UUID
	ProjectID      uuid.UUID
	ProfessionalID uuid.UUID
	Status         ProjectProfessionalStatus
	CreatedAt      time.Time
}
