package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/renolink/renolink-backend/internal/auth"
	"github.com/renolink/renolink-backend/internal/domain"
	"github.com/renolink/renolink-backend/internal/service/finance"
)

type financeService interface {
	Create(ctx context.Context, in finance.CreateTransactionInput) (*domain.FinancialTransaction, error)
	CreateEscrowDepositRequest(ctx context.Context, projectID uuid.UUID, amount decimal.Decimal, description string, requestedBy uuid.UUID, requestedByRole domain.Role) (*domain.FinancialTransaction, error)
	CreateAdvancePaymentRequest(ctx context.Context, projectProfessionalID uuid.UUID, amount decimal.Decimal, description string, requestedBy uuid.UUID) (*domain.FinancialTransaction, error)
	AwardProject(ctx context.Context, projectID uuid.UUID, projectProfessionalID *uuid.UUID, quoteAmount decimal.Decimal, awardedBy uuid.UUID) (*finance.AwardResult, error)
	ConfirmEscrowDeposit(ctx context.Context, transactionID, approvedBy uuid.UUID) (*domain.FinancialTransaction, error)
	ApproveAdvancePayment(ctx context.Context, transactionID, approvedBy uuid.UUID, role domain.Role) (*finance.ApprovalResult, error)
	RejectAdvancePayment(ctx context.Context, transactionID, rejectedBy uuid.UUID, reason string, role domain.Role) (*domain.FinancialTransaction, error)
	ReleasePayment(ctx context.Context, transactionID, releasedBy uuid.UUID) (*domain.FinancialTransaction, error)
	GetProjectTransactions(ctx context.Context, projectID uuid.UUID) ([]domain.FinancialTransaction, error)
	GetProjectFinancialSummary(ctx context.Context, projectID uuid.UUID) (*finance.Summary, error)
	GetEscrowStatement(ctx context.Context, projectID uuid.UUID) (*finance.EscrowStatement, error)
	AuthorizeViewer(ctx context.Context, projectID, userID uuid.UUID, role domain.Role) error
}

type FinanceHandler struct {
	finance financeService
}

func NewFinanceHandler(svc financeService) *FinanceHandler {
	return &FinanceHandler{finance: svc}
}

func principal(r *http.Request) (auth.Principal, *AppError) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		return auth.Principal{}, ErrMissingToken
	}
	return p, nil
}

func requireRole(r *http.Request, roles ...domain.Role) (auth.Principal, *AppError) {
	p, appErr := principal(r)
	if appErr != nil {
		return p, appErr
	}
	for _, role := range roles {
		if p.Role == role {
			return p, nil
		}
	}
	return p, ErrForbidden
}

func pathUUID(r *http.Request, name string) (uuid.UUID, *AppError) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, ErrResourceNotFound
	}
	return id, nil
}

type transactionDTO struct {
	ID                    uuid.UUID                `json:"id"`
	ProjectID             uuid.UUID                `json:"project_id"`
	ProjectProfessionalID *uuid.UUID               `json:"project_professional_id,omitempty"`
	Type                  domain.TransactionType   `json:"type"`
	Description           string                   `json:"description"`
	Notes                 *string                  `json:"notes,omitempty"`
	Amount                decimal.Decimal          `json:"amount"`
	Status                domain.TransactionStatus `json:"status"`
	RequestedBy           uuid.UUID                `json:"requested_by"`
	RequestedByRole       domain.Role              `json:"requested_by_role"`
	ActionBy              *uuid.UUID               `json:"action_by"`
	ActionByRole          *domain.Role             `json:"action_by_role"`
	ActionAt              *time.Time               `json:"action_at,omitempty"`
	ActionComplete        bool                     `json:"action_complete"`
	CreatedAt             time.Time                `json:"created_at"`
}

func toTransactionDTO(t *domain.FinancialTransaction) transactionDTO {
	return transactionDTO{
		ID:                    t.ID,
		ProjectID:             t.ProjectID,
		ProjectProfessionalID: t.ProjectProfessionalID,
		Type:                  t.Type,
		Description:           t.Description,
		Notes:                 t.Notes,
		Amount:                t.Amount,
		Status:                t.Status,
		RequestedBy:           t.RequestedBy,
		RequestedByRole:       t.RequestedByRole,
		ActionBy:              t.ActionBy,
		ActionByRole:          t.ActionByRole,
		ActionAt:              t.ActionAt,
		ActionComplete:        t.ActionComplete,
		CreatedAt:             t.CreatedAt,
	}
}

func toTransactionDTOs(txs []domain.FinancialTransaction) []transactionDTO {
	dtos := make([]transactionDTO, 0, len(txs))
	for i := range txs {
		dtos = append(dtos, toTransactionDTO(&txs[i]))
	}
	return dtos
}

type createTransactionRequest struct {
	ProjectProfessionalID *uuid.UUID      `json:"project_professional_id"`
	Type                  string          `json:"type"`
	Description           string          `json:"description"`
	Notes                 *string         `json:"notes"`
	Amount                decimal.Decimal `json:"amount"`
	ActionComplete        *bool           `json:"action_complete"`
}

func (r createTransactionRequest) Validate() []FieldError {
	var errs []FieldError
	if r.Type == "" {
		errs = append(errs, FieldError{Field: "type", Message: "required"})
	} else if !domain.TransactionType(r.Type).IsValid() {
		errs = append(errs, FieldError{Field: "type", Message: "unknown transaction type"})
	}
	if r.Description == "" {
		errs = append(errs, FieldError{Field: "description", Message: "required"})
	}
	if r.Amount.IsNegative() {
		errs = append(errs, FieldError{Field: "amount", Message: "must not be negative"})
	}
	return errs
}

func (h *FinanceHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	p, appErr := principal(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	projectID, appErr := pathUUID(r, "projectID")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req createTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	t, err := h.finance.Create(r.Context(), finance.CreateTransactionInput{
		ProjectID:             projectID,
		ProjectProfessionalID: req.ProjectProfessionalID,
		Type:                  domain.TransactionType(req.Type),
		Description:           req.Description,
		Notes:                 req.Notes,
		Amount:                req.Amount,
		RequestedBy:           p.UserID,
		RequestedByRole:       p.Role,
		ActionComplete:        req.ActionComplete,
	})
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, toTransactionDTO(t))
}

type awardProjectRequest struct {
	ProjectProfessionalID *uuid.UUID      `json:"project_professional_id"`
	QuoteAmount           decimal.Decimal `json:"quote_amount"`
}

func (h *FinanceHandler) AwardProject(w http.ResponseWriter, r *http.Request) {
	p, appErr := requireRole(r, domain.RoleAdmin)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	projectID, appErr := pathUUID(r, "projectID")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req awardProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	result, err := h.finance.AwardProject(r.Context(), projectID, req.ProjectProfessionalID, req.QuoteAmount, p.UserID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, map[string]any{
		"quotation":       toTransactionDTO(result.Quotation),
		"deposit_request": toTransactionDTO(result.DepositRequest),
	})
}

type amountRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

func (h *FinanceHandler) CreateDepositRequest(w http.ResponseWriter, r *http.Request) {
	p, appErr := requireRole(r, domain.RoleAdmin, domain.RoleProfessional)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	projectID, appErr := pathUUID(r, "projectID")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	t, err := h.finance.CreateEscrowDepositRequest(r.Context(), projectID, req.Amount, req.Description, p.UserID, p.Role)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, toTransactionDTO(t))
}

func (h *FinanceHandler) CreateAdvanceRequest(w http.ResponseWriter, r *http.Request) {
	p, appErr := requireRole(r, domain.RoleProfessional)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	linkID, appErr := pathUUID(r, "linkID")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	t, err := h.finance.CreateAdvancePaymentRequest(r.Context(), linkID, req.Amount, req.Description, p.UserID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, toTransactionDTO(t))
}

func (h *FinanceHandler) ConfirmDeposit(w http.ResponseWriter, r *http.Request) {
	p, appErr := requireRole(r, domain.RoleAdmin)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	txID, appErr := pathUUID(r, "txID")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	t, err := h.finance.ConfirmEscrowDeposit(r.Context(), txID, p.UserID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toTransactionDTO(t))
}

func (h *FinanceHandler) ApproveAdvance(w http.ResponseWriter, r *http.Request) {
	p, appErr := requireRole(r, domain.RoleClient)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	txID, appErr := pathUUID(r, "txID")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	result, err := h.finance.ApproveAdvancePayment(r.Context(), txID, p.UserID, p.Role)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, map[string]any{
		"transaction":     toTransactionDTO(result.Updated),
		"release_payment": toTransactionDTO(result.ReleasePayment),
	})
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *FinanceHandler) RejectAdvance(w http.ResponseWriter, r *http.Request) {
	p, appErr := requireRole(r, domain.RoleClient, domain.RoleAdmin)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	txID, appErr := pathUUID(r, "txID")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req rejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if req.Reason == "" {
		RespondValidationError(w, []FieldError{{Field: "reason", Message: "required"}})
		return
	}

	t, err := h.finance.RejectAdvancePayment(r.Context(), txID, p.UserID, req.Reason, p.Role)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toTransactionDTO(t))
}

func (h *FinanceHandler) Release(w http.ResponseWriter, r *http.Request) {
	p, appErr := requireRole(r, domain.RoleAdmin)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	txID, appErr := pathUUID(r, "txID")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	t, err := h.finance.ReleasePayment(r.Context(), txID, p.UserID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toTransactionDTO(t))
}

// authorizeViewer resolves the project id from the path and checks the caller
// may read its financial data.
func (h *FinanceHandler) authorizeViewer(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	p, appErr := principal(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return uuid.Nil, false
	}

	projectID, appErr := pathUUID(r, "projectID")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return uuid.Nil, false
	}

	if err := h.finance.AuthorizeViewer(r.Context(), projectID, p.UserID, p.Role); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			RespondAppError(w, ErrResourceNotFound, nil)
		} else {
			RespondDomainError(w, err)
		}
		return uuid.Nil, false
	}

	return projectID, true
}

func (h *FinanceHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.authorizeViewer(w, r)
	if !ok {
		return
	}

	txs, err := h.finance.GetProjectTransactions(r.Context(), projectID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toTransactionDTOs(txs))
}

type summaryDTO struct {
	TotalEscrow             decimal.Decimal  `json:"total_escrow"`
	EscrowConfirmed         decimal.Decimal  `json:"escrow_confirmed"`
	AdvancePaymentRequested decimal.Decimal  `json:"advance_payment_requested"`
	AdvancePaymentApproved  decimal.Decimal  `json:"advance_payment_approved"`
	PaymentsReleased        decimal.Decimal  `json:"payments_released"`
	Transactions            []transactionDTO `json:"transactions"`
}

func (h *FinanceHandler) FinancialSummary(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.authorizeViewer(w, r)
	if !ok {
		return
	}

	s, err := h.finance.GetProjectFinancialSummary(r.Context(), projectID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, summaryDTO{
		TotalEscrow:             s.TotalEscrow,
		EscrowConfirmed:         s.EscrowConfirmed,
		AdvancePaymentRequested: s.AdvancePaymentRequested,
		AdvancePaymentApproved:  s.AdvancePaymentApproved,
		PaymentsReleased:        s.PaymentsReleased,
		Transactions:            toTransactionDTOs(s.Transactions),
	})
}

type ledgerEntryDTO struct {
	ID                    uuid.UUID             `json:"id"`
	ProjectProfessionalID *uuid.UUID            `json:"project_professional_id,omitempty"`
	TransactionID         uuid.UUID             `json:"transaction_id"`
	Direction             domain.EntryDirection `json:"direction"`
	Amount                decimal.Decimal       `json:"amount"`
	Currency              string                `json:"currency"`
	Description           string                `json:"description"`
	CreatedBy             uuid.UUID             `json:"created_by"`
	CreatedAt             time.Time             `json:"created_at"`
}

type statementDTO struct {
	Entries             []ledgerEntryDTO `json:"entries"`
	EscrowHeld          decimal.Decimal  `json:"escrow_held"`
	EscrowRequired      decimal.Decimal  `json:"escrow_required"`
	ApprovedBudget      decimal.Decimal  `json:"approved_budget"`
	EscrowHeldUpdatedAt *time.Time       `json:"escrow_held_updated_at,omitempty"`
}

func (h *FinanceHandler) EscrowStatement(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.authorizeViewer(w, r)
	if !ok {
		return
	}

	st, err := h.finance.GetEscrowStatement(r.Context(), projectID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	entries := make([]ledgerEntryDTO, 0, len(st.Entries))
	for _, e := range st.Entries {
		entries = append(entries, ledgerEntryDTO{
			ID:                    e.ID,
			ProjectProfessionalID: e.ProjectProfessionalID,
			TransactionID:         e.TransactionID,
			Direction:             e.Direction,
			Amount:                e.Amount,
			Currency:              e.Currency,
			Description:           e.Description,
			CreatedBy:             e.CreatedBy,
			CreatedAt:             e.CreatedAt,
		})
	}

	RespondSuccess(w, http.StatusOK, statementDTO{
		Entries:             entries,
		EscrowHeld:          st.EscrowHeld,
		EscrowRequired:      st.EscrowRequired,
		ApprovedBudget:      st.ApprovedBudget,
		EscrowHeldUpdatedAt: st.EscrowHeldUpdatedAt,
	})
}
