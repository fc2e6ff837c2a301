package repository

import (
	"context"

	"statement-reconciliation-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RuleKey struct {
	SourceID            uuid.UUID
	Direction           string
	MerchantFingerprint string
	TargetName          string
}

type MatchRuleRepository struct {
	base
}

func NewMatchRuleRepository(db *gorm.DB) *MatchRuleRepository {
	return &MatchRuleRepository{base{db: db}}
}

func (r *MatchRuleRepository) ActiveForSources(ctx context.Context, sourceIDs []uuid.UUID) ([]models.MatchRule, error) {
	if len(sourceIDs) == 0 {
		return nil, nil
	}
	var rules []models.MatchRule
	err := r.conn(ctx).
		Where("active = ? AND source_id IN ?", true, sourceIDs).
		Find(&rules).Error
	return rules, classify(err)
}

func (r *MatchRuleRepository) FindByKey(ctx context.Context, key RuleKey) (*models.MatchRule, error) {
	var rule models.MatchRule
	err := r.conn(ctx).
		Where("source_id = ? AND direction = ? AND merchant_fingerprint = ? AND target_planned_name_normalized = ?",
			key.SourceID, key.Direction, key.MerchantFingerprint, key.TargetName).
		First(&rule).Error
	if err != nil {
		return nil, classify(err)
	}
	return &rule, nil
}

func (r *MatchRuleRepository) Create(ctx context.Context, rule *models.MatchRule) error {
	return classify(r.conn(ctx).Create(rule).Error)
}

// Save persists every field of an existing rule, zero values included.
func (r *MatchRuleRepository) Save(ctx context.Context, rule *models.MatchRule) error {
	return classify(r.conn(ctx).Save(rule).Error)
}
