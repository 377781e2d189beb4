package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renolink/renolink-backend/internal/domain"
)

func newMockDB(t *testing.T) (*TransactionRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewTransactionRepository(db), mock
}

func transactionRow(t *domain.FinancialTransaction) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "project_id", "project_professional_id", "type", "description", "notes",
		"amount", "status", "requested_by", "requested_by_role", "action_by", "action_by_role",
		"action_at", "action_complete", "created_at",
	})
	var linkID, actionBy any
	if t.ProjectProfessionalID != nil {
		linkID = t.ProjectProfessionalID.String()
	}
	if t.ActionBy != nil {
		actionBy = t.ActionBy.String()
	}
	var actionByRole any
	if t.ActionByRole != nil {
		actionByRole = string(*t.ActionByRole)
	}
	var notes any
	if t.Notes != nil {
		notes = *t.Notes
	}
	rows.AddRow(
		t.ID.String(), t.ProjectID.String(), linkID, string(t.Type), t.Description, notes,
		t.Amount.String(), string(t.Status), t.RequestedBy.String(), string(t.RequestedByRole),
		actionBy, actionByRole, t.ActionAt, t.ActionComplete, t.CreatedAt,
	)
	return rows
}

func TestTransactionRepository_GetByID(t *testing.T) {
	repo, mock := newMockDB(t)

	linkID := uuid.New()
	want := &domain.FinancialTransaction{
		ID:                    uuid.New(),
		ProjectID:             uuid.New(),
		ProjectProfessionalID: &linkID,
		Type:                  domain.TransactionTypeEscrowDeposit,
		Description:           "Milestone one deposit",
		Amount:                decimal.RequireFromString("50000"),
		Status:                domain.TransactionStatusPending,
		RequestedBy:           uuid.New(),
		RequestedByRole:       domain.RoleClient,
		CreatedAt:             time.Now().UTC().Truncate(time.Microsecond),
	}

	mock.ExpectQuery(`SELECT .+ FROM financial_transactions WHERE id = \$1`).
		WithArgs(want.ID).
		WillReturnRows(transactionRow(want))

	got, err := repo.GetByID(context.Background(), want.ID)
	require.NoError(t, err)

	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Type, got.Type)
	assert.True(t, got.Amount.Equal(want.Amount))
	require.NotNil(t, got.ProjectProfessionalID)
	assert.Equal(t, linkID, *got.ProjectProfessionalID)
	assert.Nil(t, got.ActionBy)
	assert.Nil(t, got.ActionByRole)
	assert.False(t, got.ActionComplete)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_GetByID_NotFound(t *testing.T) {
	repo, mock := newMockDB(t)

	id := uuid.New()
	mock.ExpectQuery(`SELECT .+ FROM financial_transactions WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByID(context.Background(), id)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_Create(t *testing.T) {
	repo, mock := newMockDB(t)

	tx := &domain.FinancialTransaction{
		ID:              uuid.New(),
		ProjectID:       uuid.New(),
		Type:            domain.TransactionTypePaymentRequest,
		Description:     "Materials advance",
		Amount:          decimal.RequireFromString("10000"),
		Status:          domain.TransactionStatusPending,
		RequestedBy:     uuid.New(),
		RequestedByRole: domain.RoleProfessional,
		CreatedAt:       time.Now().UTC(),
	}

	mock.ExpectExec(`INSERT INTO financial_transactions`).
		WithArgs(
			tx.ID, tx.ProjectID, nil, tx.Type, tx.Description, nil,
			sqlmock.AnyArg(), tx.Status, tx.RequestedBy, tx.RequestedByRole, nil, nil,
			nil, false, sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), tx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_MarkActioned(t *testing.T) {
	tests := []struct {
		name         string
		rowsAffected int64
		wantApplied  bool
	}{
		{name: "first transition wins", rowsAffected: 1, wantApplied: true},
		{name: "already terminal", rowsAffected: 0, wantApplied: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo, mock := newMockDB(t)

			id := uuid.New()
			actor := uuid.New()
			now := time.Now().UTC()

			mock.ExpectBegin()
			mock.ExpectExec(`UPDATE financial_transactions`).
				WithArgs(domain.TransactionStatusConfirmed, &actor, domain.RoleAdmin, sqlmock.AnyArg(), nil, id).
				WillReturnResult(sqlmock.NewResult(0, tc.rowsAffected))
			mock.ExpectRollback()

			sqlTx, err := repo.db.Begin()
			require.NoError(t, err)

			applied, err := repo.MarkActioned(context.Background(), sqlTx, id, domain.TransactionStatusConfirmed, &actor, domain.RoleAdmin, nil, now)
			require.NoError(t, err)
			assert.Equal(t, tc.wantApplied, applied)

			require.NoError(t, sqlTx.Rollback())
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestTransactionRepository_Reject(t *testing.T) {
	repo, mock := newMockDB(t)

	id := uuid.New()
	actor := uuid.New()

	mock.ExpectExec(`UPDATE financial_transactions`).
		WithArgs(domain.TransactionStatusRejected, actor, domain.RoleClient, sqlmock.AnyArg(), "scope not agreed", id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	applied, err := repo.Reject(context.Background(), id, actor, domain.RoleClient, "scope not agreed", time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_AggregateByTypeStatus(t *testing.T) {
	repo, mock := newMockDB(t)

	projectID := uuid.New()
	rows := sqlmock.NewRows([]string{"type", "status", "coalesce"}).
		AddRow("escrow_deposit", "confirmed", "50000").
		AddRow("payment_request", "pending", "10000")

	mock.ExpectQuery(`SELECT type, status, COALESCE`).
		WithArgs(projectID).
		WillReturnRows(rows)

	aggs, err := repo.AggregateByTypeStatus(context.Background(), projectID)
	require.NoError(t, err)
	require.Len(t, aggs, 2)
	assert.Equal(t, domain.TransactionTypeEscrowDeposit, aggs[0].Type)
	assert.Equal(t, domain.TransactionStatusConfirmed, aggs[0].Status)
	assert.True(t, aggs[0].Total.Equal(decimal.RequireFromString("50000")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_ListByProject(t *testing.T) {
	repo, mock := newMockDB(t)

	projectID := uuid.New()
	newer := &domain.FinancialTransaction{
		ID: uuid.New(), ProjectID: projectID,
		Type: domain.TransactionTypeReleasePayment, Amount: decimal.RequireFromString("10000"),
		Status: domain.TransactionStatusPending, RequestedBy: uuid.New(), RequestedByRole: domain.RoleClient,
		CreatedAt: time.Now().UTC(),
	}
	older := &domain.FinancialTransaction{
		ID: uuid.New(), ProjectID: projectID,
		Type: domain.TransactionTypeEscrowDeposit, Amount: decimal.RequireFromString("50000"),
		Status: domain.TransactionStatusConfirmed, RequestedBy: uuid.New(), RequestedByRole: domain.RoleClient,
		CreatedAt: time.Now().UTC().Add(-time.Hour),
	}

	rows := transactionRow(newer)
	rows.AddRow(
		older.ID.String(), older.ProjectID.String(), nil, string(older.Type), older.Description, nil,
		older.Amount.String(), string(older.Status), older.RequestedBy.String(), string(older.RequestedByRole),
		nil, nil, nil, older.ActionComplete, older.CreatedAt,
	)

	mock.ExpectQuery(`SELECT .+ FROM financial_transactions\s+WHERE project_id = \$1 ORDER BY created_at DESC LIMIT \$2`).
		WithArgs(projectID, 1000).
		WillReturnRows(rows)

	txs, err := repo.ListByProject(context.Background(), projectID, 1000)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, newer.ID, txs[0].ID)
	assert.Equal(t, older.ID, txs[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
