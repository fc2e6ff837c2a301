// Package testutil provides an in-memory database and seed helpers for tests.
package testutil

import (
	"context"
	"fmt"
	"testing"

	"statement-reconciliation-backend/internal/config"
	"statement-reconciliation-backend/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// NewDB opens a private in-memory sqlite database with the full schema.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	db, err := config.InitDB(config.DatabaseConfig{Driver: "sqlite", DSN: dsn})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func Ptr[T any](v T) *T { return &v }

func SeedSource(t testing.TB, db *gorm.DB, preset, policy string) *models.ImportSource {
	t.Helper()
	s := &models.ImportSource{
		ID:                    uuid.New(),
		Name:                  "Girokonto",
		Preset:                preset,
		SourceKind:            "bank_account",
		BankName:              "Testbank",
		DefaultPlanAssignment: policy,
		IsActive:              true,
	}
	require.NoError(t, db.WithContext(context.Background()).Create(s).Error)
	return s
}

func SeedPlan(t testing.TB, db *gorm.DB, date string, archived bool) *models.Plan {
	t.Helper()
	p := &models.Plan{ID: uuid.New(), Name: "Plan " + date, Date: date, IsArchived: archived}
	require.NoError(t, db.Create(p).Error)
	return p
}

func SeedPlanned(t testing.TB, db *gorm.DB, planID uuid.UUID, name, typ string, amount int64, dueDate string) *models.PlannedTransaction {
	t.Helper()
	item := &models.PlannedTransaction{
		ID:      uuid.New(),
		PlanID:  planID,
		Name:    name,
		Type:    typ,
		Amount:  amount,
		DueDate: dueDate,
	}
	require.NoError(t, db.Create(item).Error)
	return item
}

// SeedBankTx stores a bank transaction assigned to planID. counterparty may be empty.
func SeedBankTx(t testing.TB, db *gorm.DB, sourceID uuid.UUID, planID *uuid.UUID, counterparty string, amount int64, bookingDate string) *models.BankTransaction {
	t.Helper()
	importID := uuid.New()
	tx := &models.BankTransaction{
		ID:                uuid.New(),
		SourceID:          sourceID,
		DedupeKey:         uuid.NewString(),
		FirstSeenImportID: importID,
		LastSeenImportID:  importID,
		BookingDate:       bookingDate,
		AmountCents:       amount,
		Currency:          "EUR",
		Status:            "booked",
		PlanID:            planID,
		PlanAssignment:    models.AssignmentAutoMonth,
		ImportSeenCount:   1,
	}
	if planID == nil {
		tx.PlanAssignment = models.AssignmentNone
	}
	if counterparty != "" {
		tx.Counterparty = &counterparty
	}
	require.NoError(t, db.Create(tx).Error)
	return tx
}
