package finance

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/renolink/renolink-backend/internal/domain"
	"github.com/renolink/renolink-backend/internal/notify"
	"github.com/renolink/renolink-backend/internal/retry"
)

// In-memory stores backing the lifecycle tests. The *sql.Tx handles passed by
// the service are ignored; begin/commit pairs are asserted via sqlmock.
type fakeState struct {
	mu           sync.Mutex
	transactions map[uuid.UUID]domain.FinancialTransaction
	ledger       []domain.LedgerEntry
	projects     map[uuid.UUID]domain.Project
	links        map[uuid.UUID]domain.ProjectProfessional
	users        map[uuid.UUID]domain.User

	// createFailures makes the next N transaction inserts fail, for retry
	// behavior tests.
	createFailures int
}

func newFakeState() *fakeState {
	return &fakeState{
		transactions: make(map[uuid.UUID]domain.FinancialTransaction),
		projects:     make(map[uuid.UUID]domain.Project),
		links:        make(map[uuid.UUID]domain.ProjectProfessional),
		users:        make(map[uuid.UUID]domain.User),
	}
}

type fakeTransactionStore struct{ s *fakeState }

func (f *fakeTransactionStore) Create(_ context.Context, t *domain.FinancialTransaction) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.createFailures > 0 {
		f.s.createFailures--
		return errTransient
	}
	f.s.transactions[t.ID] = *t
	return nil
}

func (f *fakeTransactionStore) CreateTx(ctx context.Context, _ *sql.Tx, t *domain.FinancialTransaction) error {
	return f.Create(ctx, t)
}

func (f *fakeTransactionStore) GetByID(_ context.Context, id uuid.UUID) (*domain.FinancialTransaction, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	t, ok := f.s.transactions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := t
	return &cp, nil
}

func (f *fakeTransactionStore) GetByIDForUpdate(ctx context.Context, _ *sql.Tx, id uuid.UUID) (*domain.FinancialTransaction, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeTransactionStore) MarkActioned(_ context.Context, _ *sql.Tx, id uuid.UUID, status domain.TransactionStatus, actionBy *uuid.UUID, actionByRole domain.Role, notes *string, actionAt time.Time) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	t, ok := f.s.transactions[id]
	if !ok || t.ActionComplete {
		return false, nil
	}
	t.Status = status
	t.ActionBy = actionBy
	t.ActionByRole = &actionByRole
	t.ActionAt = &actionAt
	t.ActionComplete = true
	if notes != nil {
		t.Notes = notes
	}
	f.s.transactions[id] = t
	return true, nil
}

func (f *fakeTransactionStore) Reject(_ context.Context, id uuid.UUID, actionBy uuid.UUID, actionByRole domain.Role, reason string, actionAt time.Time) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	t, ok := f.s.transactions[id]
	if !ok || t.ActionComplete {
		return false, nil
	}
	t.Status = domain.TransactionStatusRejected
	t.ActionBy = &actionBy
	t.ActionByRole = &actionByRole
	t.ActionAt = &actionAt
	t.ActionComplete = true
	t.Notes = &reason
	f.s.transactions[id] = t
	return true, nil
}

func (f *fakeTransactionStore) ListByProject(_ context.Context, projectID uuid.UUID, limit int) ([]domain.FinancialTransaction, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var txs []domain.FinancialTransaction
	for _, t := range f.s.transactions {
		if t.ProjectID == projectID {
			txs = append(txs, t)
		}
	}
	sort.Slice(txs, func(i, j int) bool { return txs[i].CreatedAt.After(txs[j].CreatedAt) })
	if len(txs) > limit {
		txs = txs[:limit]
	}
	return txs, nil
}

func (f *fakeTransactionStore) AggregateByTypeStatus(_ context.Context, projectID uuid.UUID) ([]domain.TransactionAggregate, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	type key struct {
		t domain.TransactionType
		s domain.TransactionStatus
	}
	buckets := make(map[key]decimal.Decimal)
	for _, t := range f.s.transactions {
		if t.ProjectID != projectID {
			continue
		}
		k := key{t.Type, t.Status}
		buckets[k] = buckets[k].Add(t.Amount)
	}
	var aggs []domain.TransactionAggregate
	for k, total := range buckets {
		aggs = append(aggs, domain.TransactionAggregate{Type: k.t, Status: k.s, Total: total})
	}
	return aggs, nil
}

type fakeLedgerStore struct{ s *fakeState }

func (f *fakeLedgerStore) Create(_ context.Context, _ *sql.Tx, entry *domain.LedgerEntry) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	f.s.ledger = append(f.s.ledger, *entry)
	return nil
}

func (f *fakeLedgerStore) ListByProject(_ context.Context, projectID uuid.UUID) ([]domain.LedgerEntry, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var entries []domain.LedgerEntry
	for _, e := range f.s.ledger {
		if e.ProjectID == projectID {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

type fakeProjectStore struct{ s *fakeState }

func (f *fakeProjectStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Project, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	p, ok := f.s.projects[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := p
	return &cp, nil
}

func (f *fakeProjectStore) GetForUpdate(ctx context.Context, _ *sql.Tx, id uuid.UUID) (*domain.Project, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeProjectStore) ApplyEscrowDelta(_ context.Context, _ *sql.Tx, id uuid.UUID, delta decimal.Decimal) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	p, ok := f.s.projects[id]
	if !ok {
		return domain.ErrNotFound
	}
	held := p.EscrowHeld.Add(delta)
	if held.IsNegative() {
		held = decimal.Zero
	}
	now := time.Now().UTC()
	p.EscrowHeld = held
	p.EscrowHeldUpdatedAt = &now
	f.s.projects[id] = p
	return nil
}

func (f *fakeProjectStore) SetAward(_ context.Context, _ *sql.Tx, id uuid.UUID, approvedBudget, escrowRequired decimal.Decimal) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	p, ok := f.s.projects[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.ApprovedBudget = approvedBudget
	p.EscrowRequired = escrowRequired
	p.Status = domain.ProjectStatusAwarded
	f.s.projects[id] = p
	return nil
}

type fakeProfessionalStore struct{ s *fakeState }

func (f *fakeProfessionalStore) GetByID(_ context.Context, id uuid.UUID) (*domain.ProjectProfessional, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	link, ok := f.s.links[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := link
	return &cp, nil
}

func (f *fakeProfessionalStore) ListByProject(_ context.Context, projectID uuid.UUID) ([]domain.ProjectProfessional, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var links []domain.ProjectProfessional
	for _, link := range f.s.links {
		if link.ProjectID == projectID {
			links = append(links, link)
		}
	}
	return links, nil
}

type fakeUserStore struct{ s *fakeState }

func (f *fakeUserStore) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	u, ok := f.s.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := u
	return &cp, nil
}

type fakeNotifier struct {
	mu              sync.Mutex
	fundsSecured    []notify.FundsSecuredEvent
	advanceApproved []notify.AdvanceApprovedEvent
}

func (f *fakeNotifier) FundsSecured(_ context.Context, ev notify.FundsSecuredEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fundsSecured = append(f.fundsSecured, ev)
}

func (f *fakeNotifier) AdvanceApproved(_ context.Context, ev notify.AdvanceApprovedEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.advanceApproved = append(f.advanceApproved, ev)
}

var errTransient = &transientError{}

type transientError struct{}

func (*transientError) Error() string { return "connection reset" }

func fastRetry() retry.Config {
	return retry.Config{
		MaxAttempts:    3,
		AttemptTimeout: time.Second,
		BaseDelay:      time.Millisecond,
	}
}

// newTestService wires the lifecycle engine to in-memory stores. units is how
// many atomic begin/commit pairs the test is expected to open.
func newTestService(t *testing.T, units int) (*Service, *fakeState, *fakeNotifier) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	for range units {
		mock.ExpectBegin()
		mock.ExpectCommit()
	}

	state := newFakeState()
	n := &fakeNotifier{}
	svc := NewService(
		&fakeTransactionStore{s: state},
		&fakeLedgerStore{s: state},
		&fakeProjectStore{s: state},
		&fakeProfessionalStore{s: state},
		&fakeUserStore{s: state},
		n,
		db,
		"USD",
		fastRetry(),
	)
	return svc, state, n
}

func seedProject(state *fakeState, name string) (uuid.UUID, uuid.UUID) {
	clientID := uuid.New()
	projectID := uuid.New()
	state.users[clientID] = domain.User{ID: clientID, Email: "client@test.com", Name: "Client", Role: domain.RoleClient}
	state.projects[projectID] = domain.Project{
		ID:       projectID,
		Name:     name,
		ClientID: clientID,
		Status:   domain.ProjectStatusOpen,
	}
	return projectID, clientID
}

func seedProfessionalLink(state *fakeState, projectID uuid.UUID) (uuid.UUID, uuid.UUID) {
	proID := uuid.New()
	linkID := uuid.New()
	state.users[proID] = domain.User{ID: proID, Email: "pro@test.com", Name: "Pro", Role: domain.RoleProfessional}
	state.links[linkID] = domain.ProjectProfessional{
		ID:             linkID,
		ProjectID:      projectID,
		ProfessionalID: proID,
		Status:         domain.ProjectProfessionalStatusActive,
	}
	return linkID, proID
}
