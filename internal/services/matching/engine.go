// Package matching scores bank transactions against planned transactions and
// applies confident matches.
package matching

import (
	"statement-reconciliation-backend/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	ReasonRuleMerchantSource = "RULE_MERCHANT_SOURCE"
	ReasonTextSimilarity     = "TEXT_SIMILARITY"
	ReasonAmountExact        = "AMOUNT_EXACT"
	ReasonAmountNear         = "AMOUNT_NEAR"
	ReasonAmountTolerance    = "AMOUNT_TOLERANCE"
	ReasonDueDateNear        = "DUEDATE_NEAR"
	ReasonStatusPenalty      = "STATUS_PENALTY"
)

// DueDateStep awards Score when the booking is at most Days away from the due date.
type DueDateStep struct {
	Days  float64
	Score int
}

// Config holds the scoring weights and decision thresholds. The amount
// tolerance is max(AmountToleranceFloor, planned * AmountToleranceRate).
type Config struct {
	RuleLockScore        int
	TextSimilarityMax    int
	AmountExactScore     int
	AmountNearScore      int
	AmountNearCents      int64
	AmountToleranceScore int
	AmountToleranceFloor int64
	AmountToleranceRate  decimal.Decimal
	DueDateSteps         []DueDateStep
	FulfilledPenalty     int
	OverdrawnPenalty     int

	AutoThreshold    int
	SuggestThreshold int
	AmbiguityDelta   int
}

func DefaultConfig() Config {
	return Config{
		RuleLockScore:        90,
		TextSimilarityMax:    20,
		AmountExactScore:     25,
		AmountNearScore:      20,
		AmountNearCents:      100,
		AmountToleranceScore: 12,
		AmountToleranceFloor: 200,
		AmountToleranceRate:  decimal.RequireFromString("0.02"),
		DueDateSteps:         []DueDateStep{{Days: 3, Score: 10}, {Days: 7, Score: 7}, {Days: 14, Score: 3}},
		FulfilledPenalty:     10,
		OverdrawnPenalty:     20,
		AutoThreshold:        85,
		SuggestThreshold:     65,
		AmbiguityDelta:       8,
	}
}

// WithThresholds replaces the decision thresholds that are set (non-zero).
func (c Config) WithThresholds(auto, suggest, delta int) Config {
	if auto > 0 {
		c.AutoThreshold = auto
	}
	if suggest > 0 {
		c.SuggestThreshold = suggest
	}
	if delta > 0 {
		c.AmbiguityDelta = delta
	}
	return c
}

// Transaction is the bank side of a scoring pair.
type Transaction struct {
	BookingDate string
	AmountCents int64
	Fingerprint string
}

// Target is the planned side of a scoring pair. Status is the current
// fulfilment state of the planned transaction.
type Target struct {
	ID      uuid.UUID
	Name    string
	Note    *string
	Amount  int64
	DueDate string
	Status  string
}

type Candidate struct {
	PlannedTransactionID uuid.UUID `json:"plannedTransactionId"`
	Confidence           int       `json:"confidence"`
	ReasonCodes          []string  `json:"reasonCodes"`
	// Score is unclamped and only used for ranking.
	Score int `json:"-"`
}

// Score rates how well tx fits target. hasRule means an active learned rule
// exists for the pair; it replaces the amount checks and status penalty.
func (c Config) Score(tx Transaction, target Target, hasRule bool) Candidate {
	score := 0
	reasons := []string{}

	// 1. learned merchant rule
	if hasRule {
		score += c.RuleLockScore
		reasons = append(reasons, ReasonRuleMerchantSource)
	}

	// 2. text overlap with name and note
	text := target.Name
	if target.Note != nil {
		text += " " + *target.Note
	}
	if sim := TokenOverlap(tx.Fingerprint, text, c.TextSimilarityMax); sim > 0 {
		score += sim
		reasons = append(reasons, ReasonTextSimilarity)
	}

	// 3. amount distance
	if !hasRule {
		planned := abs64(target.Amount)
		delta := abs64(abs64(tx.AmountCents) - planned)
		tolerance := max(c.AmountToleranceFloor, decimal.NewFromInt(planned).Mul(c.AmountToleranceRate).Round(0).IntPart())
		switch {
		case delta == 0:
			score += c.AmountExactScore
			reasons = append(reasons, ReasonAmountExact)
		case delta <= c.AmountNearCents:
			score += c.AmountNearScore
			reasons = append(reasons, ReasonAmountNear)
		case delta <= tolerance:
			score += c.AmountToleranceScore
			reasons = append(reasons, ReasonAmountTolerance)
		}
	}

	// 4. due date proximity
	days := DayDistance(tx.BookingDate, target.DueDate)
	for _, step := range c.DueDateSteps {
		if days <= step.Days {
			score += step.Score
			reasons = append(reasons, ReasonDueDateNear)
			break
		}
	}

	// 5. already covered targets are less likely
	if !hasRule {
		switch target.Status {
		case models.PlannedStatusFulfilled:
			score -= c.FulfilledPenalty
			reasons = append(reasons, ReasonStatusPenalty)
		case models.PlannedStatusOverdrawn:
			score -= c.OverdrawnPenalty
			reasons = append(reasons, ReasonStatusPenalty)
		}
	}

	return Candidate{
		PlannedTransactionID: target.ID,
		Confidence:           clamp(score),
		ReasonCodes:          reasons,
		Score:                score,
	}
}

func clamp(score int) int {
	return min(100, max(0, score))
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
