package reconciliation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"statement-reconciliation-backend/internal/models"
	"statement-reconciliation-backend/internal/repository"
	"statement-reconciliation-backend/internal/services/parsers"
	"statement-reconciliation-backend/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedPair(t *testing.T) (*Guard, *models.BankTransaction, *models.BankTransaction, *models.PlannedTransaction, *models.PlannedTransaction) {
	db := testutil.NewDB(t)
	source := testutil.SeedSource(t, db, parsers.PresetIngCSV, models.AssignmentAutoMonth)
	plan := testutil.SeedPlan(t, db, "2026-02-01", false)
	tx1 := testutil.SeedBankTx(t, db, source.ID, &plan.ID, "REWE", -4999, "2026-02-03")
	tx2 := testutil.SeedBankTx(t, db, source.ID, &plan.ID, "EDEKA", -2500, "2026-02-04")
	p1 := testutil.SeedPlanned(t, db, plan.ID, "Lebensmittel", models.DirectionExpense, 5000, "2026-02-03")
	p2 := testutil.SeedPlanned(t, db, plan.ID, "Drogerie", models.DirectionExpense, 2500, "2026-02-04")
	return NewGuard(repository.NewReconciliationRepository(db)), tx1, tx2, p1, p2
}

func TestGuardCreatesAndReportsConflicts(t *testing.T) {
	guard, tx1, tx2, p1, p2 := seedPair(t)
	ctx := context.Background()
	user := testutil.Ptr("user-1")

	first, err := guard.Create(ctx, Link{BankTransactionID: tx1.ID, PlannedTransactionID: p1.ID, MatchedBy: user})
	require.NoError(t, err)
	require.Equal(t, StatusCreated, first.Status)
	require.Equal(t, models.MatchTypeManual, first.Reconciliation.MatchType)
	require.Nil(t, first.Reconciliation.Confidence)
	require.False(t, first.Reconciliation.MatchedAt.IsZero())

	bank, err := guard.Create(ctx, Link{BankTransactionID: tx1.ID, PlannedTransactionID: p2.ID})
	require.NoError(t, err)
	require.Equal(t, StatusBankConflict, bank.Status)
	require.Equal(t, first.Reconciliation.ID, bank.Reconciliation.ID)

	planned, err := guard.Create(ctx, Link{BankTransactionID: tx2.ID, PlannedTransactionID: p1.ID})
	require.NoError(t, err)
	require.Equal(t, StatusPlannedConflict, planned.Status)
	require.Equal(t, first.Reconciliation.ID, planned.Reconciliation.ID)

	auto, err := guard.Create(ctx, Link{BankTransactionID: tx2.ID, PlannedTransactionID: p2.ID, MatchType: models.MatchTypeAuto, Confidence: testutil.Ptr(91)})
	require.NoError(t, err)
	require.Equal(t, StatusCreated, auto.Status)
	require.Equal(t, 91, *auto.Reconciliation.Confidence)
}

func TestGuardConcurrentConfirmationsHaveOneWinner(t *testing.T) {
	guard, tx1, _, p1, p2 := seedPair(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	start := make(chan struct{})
	results := make([]Result, 2)
	errs := make([]error, 2)
	for i, planned := range []uuid.UUID{p1.ID, p2.ID} {
		i, planned := i, planned
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			results[i], errs[i] = guard.Create(ctx, Link{BankTransactionID: tx1.ID, PlannedTransactionID: planned})
		}()
	}
	close(start)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	var created, conflict *Result
	for i := range results {
		switch results[i].Status {
		case StatusCreated:
			created = &results[i]
		case StatusBankConflict:
			conflict = &results[i]
		}
	}
	require.NotNil(t, created)
	require.NotNil(t, conflict)
	assert.Equal(t, created.Reconciliation.ID, conflict.Reconciliation.ID)
	assert.Equal(t, created.Reconciliation.PlannedTransactionID, conflict.Reconciliation.PlannedTransactionID)
}

type failingStore struct {
	LinkStore
	err error
}

func (f failingStore) Create(context.Context, *models.TransactionReconciliation) error { return f.err }

func (f failingStore) ByBankTransaction(context.Context, uuid.UUID) (*models.TransactionReconciliation, error) {
	return nil, repository.ErrNotFound
}

func (f failingStore) ByPlannedTransaction(context.Context, uuid.UUID) (*models.TransactionReconciliation, error) {
	return nil, repository.ErrNotFound
}

func TestGuardSurfacesUnexpectedErrors(t *testing.T) {
	boom := errors.New("connection reset")
	_, err := NewGuard(failingStore{err: boom}).Create(context.Background(), Link{BankTransactionID: uuid.New(), PlannedTransactionID: uuid.New()})
	require.ErrorIs(t, err, boom)

	// a conflict whose winner vanished cannot be resolved into a result
	uv := &repository.UniqueViolation{Column: "bank_transaction_id", Err: boom}
	_, err = NewGuard(failingStore{err: uv}).Create(context.Background(), Link{BankTransactionID: uuid.New(), PlannedTransactionID: uuid.New()})
	require.Error(t, err)
	require.True(t, repository.IsUniqueViolation(err, "bank_transaction_id"))
}
