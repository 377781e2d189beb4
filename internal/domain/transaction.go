package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypeQuotationAccepted         TransactionType = "quotation_accepted"
	TransactionTypeEscrowDepositRequest      TransactionType = "escrow_deposit_request"
	TransactionTypeEscrowDeposit             TransactionType = "escrow_deposit"
	TransactionTypeEscrowDepositConfirmation TransactionType = "escrow_deposit_confirmation"
	TransactionTypePaymentRequest            TransactionType = "payment_request"
	TransactionTypeAdvancePaymentApproval    TransactionType = "advance_payment_approval"
	TransactionTypeAdvancePaymentRejection   TransactionType = "advance_payment_rejection"
	TransactionTypeReleasePayment            TransactionType = "release_payment"
)

func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypeQuotationAccepted,
		TransactionTypeEscrowDepositRequest,
		TransactionTypeEscrowDeposit,
		TransactionTypeEscrowDepositConfirmation,
		TransactionTypePaymentRequest,
		TransactionTypeAdvancePaymentApproval,
		TransactionTypeAdvancePaymentRejection,
		TransactionTypeReleasePayment:
		return true
	}
	return false
}

type TransactionStatus string

const (
	TransactionStatusInfo                 TransactionStatus = "info"
	TransactionStatusPending              TransactionStatus = "pending"
	TransactionStatusConfirmed            TransactionStatus = "confirmed"
	TransactionStatusRejected             TransactionStatus = "rejected"
	TransactionStatusAwaitingConfirmation TransactionStatus = "awaiting_confirmation"
)

type Role string

const (
	RoleClient       Role = "client"
	RoleProfessional Role = "professional"
	RoleAdmin        Role = "admin"
	RolePlatform     Role = "platform"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleClient, RoleProfessional, RoleAdmin, RolePlatform:
		return true
	}
	return false
}

// Informational transaction types are terminal from birth; every other type
// requires an explicit action before it completes.
var actionCompleteDefaults = map[TransactionType]bool{
	TransactionTypeQuotationAccepted:         true,
	TransactionTypeEscrowDepositRequest:      false,
	TransactionTypeEscrowDeposit:             false,
	TransactionTypeEscrowDepositConfirmation: false,
	TransactionTypePaymentRequest:            false,
	TransactionTypeAdvancePaymentApproval:    false,
	TransactionTypeAdvancePaymentRejection:   false,
	TransactionTypeReleasePayment:            false,
}

func DefaultActionComplete(t TransactionType) bool {
	return actionCompleteDefaults[t]
}

// FinancialTransaction records one step of a project's money lifecycle.
// ActionBy nil means the task belongs to any administrator.
type FinancialTransaction struct {
	ID                    uuid.UUID
	ProjectID             uuid.UUID
	ProjectProfessionalID *uuid.UUID
	Type                  TransactionType
	Description           string
	Notes                 *string
	Amount                decimal.Decimal
	Status                TransactionStatus
	RequestedBy           uuid.UUID
	RequestedByRole       Role
	ActionBy              *uuid.UUID
	ActionByRole          *Role
	ActionAt              *time.Time
	ActionComplete        bool
	CreatedAt             time.Time
}

// TransactionAggregate is one (type, status) bucket of summed amounts for a
// project.
type TransactionAggregate struct {
	Type   TransactionType
	Status TransactionStatus
	Total  decimal.Decimal
}
