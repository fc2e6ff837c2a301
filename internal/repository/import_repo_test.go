package repository

import (
	"context"
	"testing"

	"statement-reconciliation-backend/internal/models"
	"statement-reconciliation-backend/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func importedRow(sourceID, importID uuid.UUID, dedupeKey string) models.BankTransaction {
	return models.BankTransaction{
		ID:                uuid.New(),
		SourceID:          sourceID,
		DedupeKey:         dedupeKey,
		FirstSeenImportID: importID,
		LastSeenImportID:  importID,
		BookingDate:       "2026-02-02",
		AmountCents:       -8500,
		Currency:          "EUR",
		Status:            "booked",
		PlanAssignment:    models.AssignmentNone,
		ImportSeenCount:   1,
	}
}

// Two commits that both saw the key as new must still count two sightings.
func TestUpsertIncrementsSeenCountOnConflict(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewImportRepository(db)
	ctx := context.Background()
	source := testutil.SeedSource(t, db, "ing_csv_v1", models.AssignmentNone)

	firstImport, secondImport := uuid.New(), uuid.New()
	original := importedRow(source.ID, firstImport, "key-1")
	require.NoError(t, repo.UpsertBankTransactions(ctx, []models.BankTransaction{original}))

	late := importedRow(source.ID, secondImport, "key-1")
	require.NoError(t, repo.UpsertBankTransactions(ctx, []models.BankTransaction{late}))

	txs, err := repo.TransactionsForSource(ctx, source.ID)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.Equal(t, original.ID, txs[0].ID)
	require.Equal(t, 2, txs[0].ImportSeenCount)
	require.Equal(t, firstImport, txs[0].FirstSeenImportID)
	require.Equal(t, secondImport, txs[0].LastSeenImportID)
}

func TestUpsertKeepsDistinctKeysApart(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewImportRepository(db)
	ctx := context.Background()
	source := testutil.SeedSource(t, db, "ing_csv_v1", models.AssignmentNone)

	importID := uuid.New()
	rows := []models.BankTransaction{
		importedRow(source.ID, importID, "key-1"),
		importedRow(source.ID, importID, "key-2"),
	}
	require.NoError(t, repo.UpsertBankTransactions(ctx, rows))

	existing, err := repo.ExistingByDedupeKeys(ctx, source.ID, []string{"key-1", "key-2", "key-3"})
	require.NoError(t, err)
	require.Len(t, existing, 2)
	require.Equal(t, 1, existing["key-1"].ImportSeenCount)
	require.Equal(t, 1, existing["key-2"].ImportSeenCount)
}
