package finance_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renolink/renolink-backend/internal/domain"
	"github.com/renolink/renolink-backend/internal/notify"
	"github.com/renolink/renolink-backend/internal/repository"
	"github.com/renolink/renolink-backend/internal/retry"
	"github.com/renolink/renolink-backend/internal/service/finance"
	"github.com/renolink/renolink-backend/internal/testutil"
)

// TestDepositReleaseEndToEnd drives the full money path against a real
// Postgres: award, deposit, confirm, advance request, approval, release. At
// the end the cached balance must match the ledger replay.
func TestDepositReleaseEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	client := testutil.SeedTestUser(t, db, "client@renolink.test", "Client", domain.RoleClient)
	pro := testutil.SeedTestUser(t, db, "pro@renolink.test", "Pro", domain.RoleProfessional)
	admin := testutil.SeedTestUser(t, db, "admin@renolink.test", "Admin", domain.RoleAdmin)
	projectID := testutil.SeedTestProject(t, db, "Kitchen remodel", client.ID)
	linkID := testutil.SeedProjectProfessional(t, db, projectID, pro.ID)

	chatRepo := repository.NewMessageRepository(db)
	svc := finance.NewService(
		repository.NewTransactionRepository(db),
		repository.NewLedgerRepository(db),
		repository.NewProjectRepository(db),
		repository.NewProjectProfessionalRepository(db),
		repository.NewUserRepository(db),
		notify.NewNotifier(chatRepo, nil, "https://app.renolink.test"),
		db,
		"USD",
		retry.DefaultConfig(),
	)

	award, err := svc.AwardProject(ctx, projectID, &linkID, decimal.RequireFromString("120000"), admin.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusPending, award.DepositRequest.Status)

	deposit, err := svc.Create(ctx, finance.CreateTransactionInput{
		ProjectID:             projectID,
		ProjectProfessionalID: &linkID,
		Type:                  domain.TransactionTypeEscrowDeposit,
		Description:           "Initial escrow deposit",
		Amount:                decimal.RequireFromString("50000"),
		RequestedBy:           client.ID,
		RequestedByRole:       domain.RoleClient,
	})
	require.NoError(t, err)

	confirmed, err := svc.ConfirmEscrowDeposit(ctx, deposit.ID, admin.ID)
	require.NoError(t, err)
	assert.True(t, confirmed.ActionComplete)

	held := testutil.GetEscrowHeld(t, db, projectID)
	assert.True(t, held.Equal(decimal.RequireFromString("50000")), "escrow_held = %s", held)

	// A duplicate confirm must lose the guarded transition and change nothing.
	_, err = svc.ConfirmEscrowDeposit(ctx, deposit.ID, admin.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAlreadyTerminal)
	assert.Equal(t, 1, testutil.CountLedgerEntries(t, db, projectID))

	request, err := svc.CreateAdvancePaymentRequest(ctx, linkID, decimal.RequireFromString("10000"), "Materials", pro.ID)
	require.NoError(t, err)

	result, err := svc.ApproveAdvancePayment(ctx, request.ID, client.ID, domain.RoleClient)
	require.NoError(t, err)
	require.NotNil(t, result.ReleasePayment)
	assert.Nil(t, result.ReleasePayment.ActionBy)

	_, err = svc.ReleasePayment(ctx, result.ReleasePayment.ID, admin.ID)
	require.NoError(t, err)

	held = testutil.GetEscrowHeld(t, db, projectID)
	assert.True(t, held.Equal(decimal.RequireFromString("40000")), "escrow_held = %s", held)
	assert.Equal(t, 2, testutil.CountLedgerEntries(t, db, projectID))

	// Replay the ledger and compare against the cached balance.
	entries, err := repository.NewLedgerRepository(db).ListByProject(ctx, projectID)
	require.NoError(t, err)
	sum := decimal.Zero
	for _, e := range entries {
		if e.Direction == domain.EntryDirectionCredit {
			sum = sum.Add(e.Amount)
		} else {
			sum = sum.Sub(e.Amount)
		}
	}
	assert.True(t, held.Equal(sum), "cached balance %s diverged from ledger %s", held, sum)

	summary, err := svc.GetProjectFinancialSummary(ctx, projectID)
	require.NoError(t, err)
	assert.True(t, summary.TotalEscrow.Equal(decimal.RequireFromString("50000")))
	assert.True(t, summary.EscrowConfirmed.Equal(decimal.RequireFromString("50000")))
	assert.True(t, summary.AdvancePaymentRequested.Equal(decimal.RequireFromString("10000")))
	assert.True(t, summary.PaymentsReleased.Equal(decimal.RequireFromString("10000")))
}
