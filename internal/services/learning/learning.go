// Package learning keeps merchant match rules up to date from manual confirmations.
package learning

import (
	"context"
	"errors"
	"fmt"

	"statement-reconciliation-backend/internal/logger"
	"statement-reconciliation-backend/internal/models"
	"statement-reconciliation-backend/internal/repository"
	"statement-reconciliation-backend/internal/services/matching"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const minToleranceCents = 100

var toleranceRate = decimal.RequireFromString("0.03")

// Stats is the running amount profile of a rule.
type Stats struct {
	AvgAmountCents       int64
	AmountToleranceCents int64
	ConfirmCount         int
}

// ComputeStats folds one more confirmed amount into a rule's average.
func ComputeStats(existingAvg int64, existingCount int, newAmountCents int64) Stats {
	count := max(0, existingCount)
	avg := max(0, existingAvg)
	amount := newAmountCents
	if amount < 0 {
		amount = -amount
	}

	next := amount
	if count > 0 {
		total := decimal.NewFromInt(avg).Mul(decimal.NewFromInt(int64(count))).Add(decimal.NewFromInt(amount))
		next = total.Div(decimal.NewFromInt(int64(count + 1))).Round(0).IntPart()
	}
	tol := decimal.NewFromInt(next).Mul(toleranceRate).Round(0).IntPart()

	return Stats{
		AvgAmountCents:       next,
		AmountToleranceCents: max(minToleranceCents, tol),
		ConfirmCount:         count + 1,
	}
}

type BankLookup interface {
	BankTransactionByID(ctx context.Context, id uuid.UUID) (*models.BankTransaction, error)
}

type PlannedLookup interface {
	PlannedTransactionByID(ctx context.Context, id uuid.UUID) (*models.PlannedTransaction, error)
}

type RuleStore interface {
	FindByKey(ctx context.Context, key repository.RuleKey) (*models.MatchRule, error)
	Create(ctx context.Context, rule *models.MatchRule) error
	Save(ctx context.Context, rule *models.MatchRule) error
}

type Learner struct {
	bank    BankLookup
	planned PlannedLookup
	rules   RuleStore
}

func NewLearner(bank BankLookup, planned PlannedLookup, rules RuleStore) *Learner {
	return &Learner{bank: bank, planned: planned, rules: rules}
}

// LearnFromManual creates or updates the rule for a confirmed link. It returns
// nil when either side is outside planID or the merchant cannot be identified.
func (l *Learner) LearnFromManual(ctx context.Context, planID, bankTxID, plannedTxID uuid.UUID) (*models.MatchRule, error) {
	bankTx, err := l.bank.BankTransactionByID(ctx, bankTxID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load bank transaction: %w", err)
	}
	if bankTx.PlanID == nil || *bankTx.PlanID != planID {
		return nil, nil
	}

	planned, err := l.planned.PlannedTransactionByID(ctx, plannedTxID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load planned transaction: %w", err)
	}
	if planned.PlanID != planID {
		return nil, nil
	}

	fingerprint := matching.MerchantFingerprint(bankTx)
	if fingerprint == "" {
		return nil, nil
	}
	direction, ok := matching.DirectionOf(bankTx.AmountCents)
	if !ok {
		direction = planned.Type
	}
	key := repository.RuleKey{
		SourceID:            bankTx.SourceID,
		Direction:           direction,
		MerchantFingerprint: fingerprint,
		TargetName:          matching.TargetName(planned.Name),
	}

	// a concurrent confirmation may create the rule between lookup and insert
	for attempt := 0; attempt < 2; attempt++ {
		rule, err := l.rules.FindByKey(ctx, key)
		if errors.Is(err, repository.ErrNotFound) {
			rule, err = l.create(ctx, key, planned, bankTx.AmountCents)
			if repository.IsUniqueViolation(err, "") {
				continue
			}
			return rule, err
		}
		if err != nil {
			return nil, fmt.Errorf("load match rule: %w", err)
		}
		return l.update(ctx, rule, planned, bankTx.AmountCents)
	}
	return nil, fmt.Errorf("match rule %s/%s kept conflicting", key.Direction, key.MerchantFingerprint)
}

func (l *Learner) create(ctx context.Context, key repository.RuleKey, planned *models.PlannedTransaction, amount int64) (*models.MatchRule, error) {
	stats := ComputeStats(0, 0, amount)
	rule := &models.MatchRule{
		SourceID:                    key.SourceID,
		Direction:                   key.Direction,
		MerchantFingerprint:         key.MerchantFingerprint,
		TargetPlannedNameNormalized: key.TargetName,
		TargetCategoryID:            planned.CategoryID,
		AvgAmountCents:              stats.AvgAmountCents,
		AmountToleranceCents:        stats.AmountToleranceCents,
		ConfirmCount:                stats.ConfirmCount,
		Active:                      true,
	}
	if err := l.rules.Create(ctx, rule); err != nil {
		return nil, fmt.Errorf("create match rule: %w", err)
	}
	logger.L.Info("match rule learned", "rule_id", rule.ID, "fingerprint", key.MerchantFingerprint, "target", key.TargetName)
	return rule, nil
}

func (l *Learner) update(ctx context.Context, rule *models.MatchRule, planned *models.PlannedTransaction, amount int64) (*models.MatchRule, error) {
	stats := ComputeStats(rule.AvgAmountCents, rule.ConfirmCount, amount)
	rule.AvgAmountCents = stats.AvgAmountCents
	rule.AmountToleranceCents = stats.AmountToleranceCents
	rule.ConfirmCount = stats.ConfirmCount
	rule.Active = true
	if planned.CategoryID != nil {
		rule.TargetCategoryID = planned.CategoryID
	}
	if err := l.rules.Save(ctx, rule); err != nil {
		return nil, fmt.Errorf("update match rule: %w", err)
	}
	logger.L.Debug("match rule reinforced", "rule_id", rule.ID, "confirm_count", rule.ConfirmCount)
	return rule, nil
}
