package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EntryDirection string

const (
	EntryDirectionCredit EntryDirection = "credit"
	EntryDirectionDebit  EntryDirection = "debit"
)

// LedgerEntry is an append-only record of funds entering (credit) or leaving
// (debit) a project's escrow. Entries are never updated or deleted; the
// project's escrow_held balance is a cache of their sum.
type LedgerEntry struct {
	ID                    uuid.UUID
	ProjectID             uuid.UUID
	ProjectProfessionalID *uuid.UUID
	TransactionID         uuid.UUID
	Direction             EntryDirection
	Amount                decimal.Decimal
	Currency              string
	Description           string
	CreatedBy             uuid.UUID
	CreatedAt             time.Time
}
