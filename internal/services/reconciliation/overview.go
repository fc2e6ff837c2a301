package reconciliation

import (
	"context"
	"time"

	"statement-reconciliation-backend/internal/apperror"
	"statement-reconciliation-backend/internal/models"

	"github.com/google/uuid"
)

type PlannedItem struct {
	models.PlannedTransaction
	Reconciliations    []LinkedTransaction `json:"reconciliations"`
	MatchedAmountCents int64               `json:"matchedAmountCents"`
	RemainingCents     int64               `json:"remainingCents"`
	Status             string              `json:"status"`
}

type LinkedTransaction struct {
	ID              uuid.UUID              `json:"id"`
	MatchType       string                 `json:"matchType"`
	Confidence      *int                   `json:"confidence"`
	MatchedAt       time.Time              `json:"matchedAt"`
	BankTransaction models.BankTransaction `json:"bankTransaction"`
}

type DismissedTransaction struct {
	ID              uuid.UUID              `json:"id"`
	Reason          *string                `json:"reason"`
	DismissedAt     time.Time              `json:"dismissedAt"`
	BankTransaction models.BankTransaction `json:"bankTransaction"`
}

// Summary amounts are in cents. Actual values ignore dismissed transactions.
type Summary struct {
	PlannedIncome  int64 `json:"plannedIncome"`
	PlannedExpense int64 `json:"plannedExpense"`
	PlannedNet     int64 `json:"plannedNet"`
	ActualIncome   int64 `json:"actualIncome"`
	ActualExpense  int64 `json:"actualExpense"`
	ActualNet      int64 `json:"actualNet"`
}

type Overview struct {
	Plan         models.Plan              `json:"plan"`
	Summary      Summary                  `json:"summary"`
	PlannedItems []PlannedItem            `json:"plannedItems"`
	Unmatched    []models.BankTransaction `json:"unmatchedBankTransactions"`
	Dismissals   []DismissedTransaction   `json:"dismissals"`
}

// Overview assembles the reconciliation state of one plan. Only links whose
// bank transaction is assigned to the plan count towards matched amounts.
func (s *ReconciliationService) Overview(ctx context.Context, planID uuid.UUID) (*Overview, error) {
	plan, err := s.Plan(ctx, planID)
	if err != nil {
		return nil, err
	}

	planned, err := s.plans.PlannedTransactions(ctx, planID)
	if err != nil {
		return nil, apperror.Internal("load planned transactions", err)
	}
	bankTxs, err := s.store.PlanBankTransactions(ctx, planID)
	if err != nil {
		return nil, apperror.Internal("load bank transactions", err)
	}
	recs, err := s.store.ForPlan(ctx, planID)
	if err != nil {
		return nil, apperror.Internal("load reconciliations", err)
	}
	dismissals, err := s.store.DismissalsForPlan(ctx, planID)
	if err != nil {
		return nil, apperror.Internal("load dismissals", err)
	}
	unmatched, err := s.store.UnmatchedForPlan(ctx, planID)
	if err != nil {
		return nil, apperror.Internal("load unmatched transactions", err)
	}

	bankByID := make(map[uuid.UUID]models.BankTransaction, len(bankTxs))
	for _, tx := range bankTxs {
		bankByID[tx.ID] = tx
	}
	linksByPlanned := make(map[uuid.UUID][]LinkedTransaction)
	for _, rec := range recs {
		tx, ok := bankByID[rec.BankTransactionID]
		if !ok {
			continue
		}
		linksByPlanned[rec.PlannedTransactionID] = append(linksByPlanned[rec.PlannedTransactionID], LinkedTransaction{
			ID:              rec.ID,
			MatchType:       rec.MatchType,
			Confidence:      rec.Confidence,
			MatchedAt:       rec.MatchedAt,
			BankTransaction: tx,
		})
	}

	out := &Overview{
		Plan:         *plan,
		PlannedItems: make([]PlannedItem, 0, len(planned)),
		Unmatched:    unmatched,
		Dismissals:   make([]DismissedTransaction, 0, len(dismissals)),
	}
	if out.Unmatched == nil {
		out.Unmatched = []models.BankTransaction{}
	}

	for _, pt := range planned {
		links := linksByPlanned[pt.ID]
		if links == nil {
			links = []LinkedTransaction{}
		}
		var matched int64
		for _, l := range links {
			matched += absCents(l.BankTransaction.AmountCents)
		}
		out.PlannedItems = append(out.PlannedItems, PlannedItem{
			PlannedTransaction: pt,
			Reconciliations:    links,
			MatchedAmountCents: matched,
			RemainingCents:     max(0, absCents(pt.Amount)-matched),
			Status:             models.PlannedStatus(pt.Amount, matched),
		})

		switch pt.Type {
		case models.DirectionIncome:
			out.Summary.PlannedIncome += pt.Amount
		case models.DirectionExpense:
			out.Summary.PlannedExpense += pt.Amount
		}
	}

	dismissed := make(map[uuid.UUID]bool, len(dismissals))
	for _, d := range dismissals {
		dismissed[d.BankTransactionID] = true
		tx, ok := bankByID[d.BankTransactionID]
		if !ok {
			continue
		}
		out.Dismissals = append(out.Dismissals, DismissedTransaction{
			ID:              d.ID,
			Reason:          d.Reason,
			DismissedAt:     d.CreatedAt,
			BankTransaction: tx,
		})
	}

	for _, tx := range bankTxs {
		if dismissed[tx.ID] {
			continue
		}
		if tx.AmountCents > 0 {
			out.Summary.ActualIncome += tx.AmountCents
		} else {
			out.Summary.ActualExpense += -tx.AmountCents
		}
	}
	out.Summary.PlannedNet = out.Summary.PlannedIncome - out.Summary.PlannedExpense
	out.Summary.ActualNet = out.Summary.ActualIncome - out.Summary.ActualExpense
	return out, nil
}

func absCents(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
