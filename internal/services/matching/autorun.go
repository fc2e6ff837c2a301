package matching

import (
	"cmp"
	"context"
	"slices"
	"time"

	"statement-reconciliation-backend/internal/apperror"
	"statement-reconciliation-backend/internal/logger"
	"statement-reconciliation-backend/internal/models"
	"statement-reconciliation-backend/internal/repository"
	"statement-reconciliation-backend/internal/services/reconciliation"

	"github.com/google/uuid"
)

type Workspace interface {
	Overview(ctx context.Context, planID uuid.UUID) (*reconciliation.Overview, error)
	RecordAutoMatch(ctx context.Context, planID uuid.UUID, rec *models.TransactionReconciliation, userID *string)
}

type Linker interface {
	Create(ctx context.Context, link reconciliation.Link) (reconciliation.Result, error)
}

type RuleSource interface {
	ActiveForSources(ctx context.Context, sourceIDs []uuid.UUID) ([]models.MatchRule, error)
}

type Stats struct {
	Processed          int `json:"processed"`
	Matched            int `json:"matched"`
	Suggested          int `json:"suggested"`
	SkippedAmbiguous   int `json:"skippedAmbiguous"`
	SkippedNoCandidate int `json:"skippedNoCandidate"`
}

type AppliedMatch struct {
	BankTransactionID    uuid.UUID `json:"bankTransactionId"`
	PlannedTransactionID uuid.UUID `json:"plannedTransactionId"`
	Confidence           int       `json:"confidence"`
	ReasonCodes          []string  `json:"reasonCodes"`
}

type Suggestion struct {
	BankTransactionID uuid.UUID   `json:"bankTransactionId"`
	Candidates        []Candidate `json:"candidates"`
}

type RunResult struct {
	DryRun      bool           `json:"dryRun"`
	Stats       Stats          `json:"stats"`
	Applied     []AppliedMatch `json:"applied"`
	Suggestions []Suggestion   `json:"suggestions"`
}

type AutoReconciler struct {
	cfg       Config
	workspace Workspace
	linker    Linker
	rules     RuleSource
}

func NewAutoReconciler(cfg Config, workspace Workspace, linker Linker, rules RuleSource) *AutoReconciler {
	return &AutoReconciler{cfg: cfg, workspace: workspace, linker: linker, rules: rules}
}

// Run scores every unmatched, undismissed bank transaction of the plan and
// links the confident ones. With dryRun nothing is written.
func (a *AutoReconciler) Run(ctx context.Context, planID uuid.UUID, dryRun bool, userID *string) (*RunResult, error) {
	start := time.Now()
	ov, err := a.workspace.Overview(ctx, planID)
	if err != nil {
		return nil, err
	}
	if ov.Plan.IsArchived {
		return nil, apperror.Policy("Plan ist archiviert - keine Änderungen möglich")
	}

	result := &RunResult{DryRun: dryRun, Applied: []AppliedMatch{}, Suggestions: []Suggestion{}}
	if len(ov.Unmatched) == 0 {
		return result, nil
	}

	activeRules, err := a.ruleIndex(ctx, ov.Unmatched)
	if err != nil {
		return nil, apperror.Internal("load match rules", err)
	}

	for i := range ov.Unmatched {
		tx := &ov.Unmatched[i]
		result.Stats.Processed++

		direction, ok := DirectionOf(tx.AmountCents)
		if !ok {
			result.Stats.SkippedNoCandidate++
			continue
		}
		fingerprint := MerchantFingerprint(tx)
		if fingerprint == "" {
			result.Stats.SkippedNoCandidate++
			continue
		}

		ranked := a.rank(tx, direction, fingerprint, ov.PlannedItems, activeRules)
		decision := a.cfg.Decide(ranked)

		switch decision.Kind {
		case DecisionNone:
			result.Stats.SkippedNoCandidate++

		case DecisionAmbiguous:
			result.Stats.SkippedAmbiguous++
			result.Stats.Suggested++
			result.Suggestions = append(result.Suggestions, Suggestion{BankTransactionID: tx.ID, Candidates: decision.Candidates})

		case DecisionSuggest:
			result.Stats.Suggested++
			result.Suggestions = append(result.Suggestions, Suggestion{BankTransactionID: tx.ID, Candidates: decision.Candidates})

		case DecisionAuto:
			cand := decision.Candidates[0]
			applied := AppliedMatch{
				BankTransactionID:    tx.ID,
				PlannedTransactionID: cand.PlannedTransactionID,
				Confidence:           cand.Confidence,
				ReasonCodes:          cand.ReasonCodes,
			}
			if dryRun {
				result.Stats.Matched++
				result.Applied = append(result.Applied, applied)
				continue
			}

			confidence := cand.Confidence
			res, err := a.linker.Create(ctx, reconciliation.Link{
				BankTransactionID:    tx.ID,
				PlannedTransactionID: cand.PlannedTransactionID,
				MatchType:            models.MatchTypeAuto,
				Confidence:           &confidence,
				MatchedBy:            userID,
			})
			if err != nil {
				return nil, apperror.Internal("create auto reconciliation", err)
			}
			if res.Status != reconciliation.StatusCreated {
				// someone else linked one of the two sides in the meantime
				result.Stats.SkippedNoCandidate++
				continue
			}
			a.workspace.RecordAutoMatch(ctx, planID, res.Reconciliation, userID)
			result.Stats.Matched++
			result.Applied = append(result.Applied, applied)
		}
	}

	logger.L.Info("auto reconcile finished",
		"plan_id", planID, "dry_run", dryRun,
		"processed", result.Stats.Processed, "matched", result.Stats.Matched,
		"suggested", result.Stats.Suggested, "skipped_ambiguous", result.Stats.SkippedAmbiguous,
		"skipped_no_candidate", result.Stats.SkippedNoCandidate,
		"duration_ms", time.Since(start).Milliseconds())
	return result, nil
}

func (a *AutoReconciler) ruleIndex(ctx context.Context, txs []models.BankTransaction) (map[repository.RuleKey]bool, error) {
	var sourceIDs []uuid.UUID
	seen := make(map[uuid.UUID]bool)
	for _, tx := range txs {
		if !seen[tx.SourceID] {
			seen[tx.SourceID] = true
			sourceIDs = append(sourceIDs, tx.SourceID)
		}
	}
	rules, err := a.rules.ActiveForSources(ctx, sourceIDs)
	if err != nil {
		return nil, err
	}
	index := make(map[repository.RuleKey]bool, len(rules))
	for _, r := range rules {
		index[repository.RuleKey{
			SourceID:            r.SourceID,
			Direction:           r.Direction,
			MerchantFingerprint: r.MerchantFingerprint,
			TargetName:          r.TargetPlannedNameNormalized,
		}] = true
	}
	return index, nil
}

// rank scores every planned item of the transaction's direction, best first.
func (a *AutoReconciler) rank(tx *models.BankTransaction, direction, fingerprint string, items []reconciliation.PlannedItem, rules map[repository.RuleKey]bool) []Candidate {
	subject := Transaction{BookingDate: tx.BookingDate, AmountCents: tx.AmountCents, Fingerprint: fingerprint}
	var out []Candidate
	for _, item := range items {
		if item.Type != direction {
			continue
		}
		hasRule := rules[repository.RuleKey{
			SourceID:            tx.SourceID,
			Direction:           direction,
			MerchantFingerprint: fingerprint,
			TargetName:          TargetName(item.Name),
		}]
		out = append(out, a.cfg.Score(subject, Target{
			ID:      item.ID,
			Name:    item.Name,
			Note:    item.Note,
			Amount:  item.Amount,
			DueDate: item.DueDate,
			Status:  item.Status,
		}, hasRule))
	}
	slices.SortStableFunc(out, func(x, y Candidate) int { return cmp.Compare(y.Score, x.Score) })
	return out
}
