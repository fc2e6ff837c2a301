package reconciliation

import (
	"context"
	"errors"
	"fmt"

	"statement-reconciliation-backend/internal/models"
	"statement-reconciliation-backend/internal/repository"

	"github.com/google/uuid"
)

const (
	StatusCreated         = "created"
	StatusBankConflict    = "bank_conflict"
	StatusPlannedConflict = "planned_conflict"
)

// Link is a requested bank-to-planned association.
type Link struct {
	BankTransactionID    uuid.UUID
	PlannedTransactionID uuid.UUID
	MatchType            string
	Confidence           *int
	MatchedBy            *string
}

// Result carries the created link, or the existing one that blocked it.
type Result struct {
	Status         string                            `json:"status"`
	Reconciliation *models.TransactionReconciliation `json:"reconciliation"`
}

type LinkStore interface {
	Create(ctx context.Context, rec *models.TransactionReconciliation) error
	ByBankTransaction(ctx context.Context, bankTxID uuid.UUID) (*models.TransactionReconciliation, error)
	ByPlannedTransaction(ctx context.Context, plannedTxID uuid.UUID) (*models.TransactionReconciliation, error)
}

// Guard creates reconciliations without locks. The unique indexes on both
// link columns decide races; the loser reads back the winning row.
type Guard struct {
	store LinkStore
}

func NewGuard(store LinkStore) *Guard {
	return &Guard{store: store}
}

// Create must not run inside a database transaction: on postgres the failed
// insert would abort it before the conflicting row can be read.
func (g *Guard) Create(ctx context.Context, link Link) (Result, error) {
	rec := &models.TransactionReconciliation{
		BankTransactionID:    link.BankTransactionID,
		PlannedTransactionID: link.PlannedTransactionID,
		MatchType:            link.MatchType,
		Confidence:           link.Confidence,
		MatchedByUserID:      link.MatchedBy,
	}
	if rec.MatchType == "" {
		rec.MatchType = models.MatchTypeManual
	}

	err := g.store.Create(ctx, rec)
	if err == nil {
		return Result{Status: StatusCreated, Reconciliation: rec}, nil
	}
	var uv *repository.UniqueViolation
	if !errors.As(err, &uv) {
		return Result{}, fmt.Errorf("create reconciliation: %w", err)
	}
	return g.resolveConflict(ctx, link, uv)
}

func (g *Guard) resolveConflict(ctx context.Context, link Link, uv *repository.UniqueViolation) (Result, error) {
	if uv.Column == "planned_transaction_id" {
		if res, ok, err := g.byPlanned(ctx, link.PlannedTransactionID); ok || err != nil {
			return res, err
		}
		if res, ok, err := g.byBank(ctx, link.BankTransactionID); ok || err != nil {
			return res, err
		}
	} else {
		if res, ok, err := g.byBank(ctx, link.BankTransactionID); ok || err != nil {
			return res, err
		}
		if res, ok, err := g.byPlanned(ctx, link.PlannedTransactionID); ok || err != nil {
			return res, err
		}
	}
	// the winning row was removed again before it could be read
	return Result{}, fmt.Errorf("unresolved reconciliation conflict: %w", uv)
}

func (g *Guard) byBank(ctx context.Context, id uuid.UUID) (Result, bool, error) {
	rec, err := g.store.ByBankTransaction(ctx, id)
	return conflictResult(StatusBankConflict, rec, err)
}

func (g *Guard) byPlanned(ctx context.Context, id uuid.UUID) (Result, bool, error) {
	rec, err := g.store.ByPlannedTransaction(ctx, id)
	return conflictResult(StatusPlannedConflict, rec, err)
}

func conflictResult(status string, rec *models.TransactionReconciliation, err error) (Result, bool, error) {
	if errors.Is(err, repository.ErrNotFound) {
		return Result{}, false, nil
	}
	if err != nil {
		return Result{}, false, fmt.Errorf("read conflicting reconciliation: %w", err)
	}
	return Result{Status: status, Reconciliation: rec}, true, nil
}
