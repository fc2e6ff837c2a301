package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MatchRule is a learned association between a merchant and a planned item name.
type MatchRule struct {
	ID                          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	SourceID                    uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:uq_match_rule_key,priority:1" json:"sourceId"`
	Direction                   string     `gorm:"size:8;not null;uniqueIndex:uq_match_rule_key,priority:2" json:"direction"`
	MerchantFingerprint         string     `gorm:"not null;uniqueIndex:uq_match_rule_key,priority:3" json:"merchantFingerprint"`
	TargetPlannedNameNormalized string     `gorm:"not null;uniqueIndex:uq_match_rule_key,priority:4" json:"targetPlannedNameNormalized"`
	TargetCategoryID            *uuid.UUID `gorm:"type:uuid" json:"targetCategoryId"`
	AvgAmountCents              int64      `gorm:"not null" json:"avgAmountCents"`
	AmountToleranceCents        int64      `gorm:"not null" json:"amountToleranceCents"`
	ConfirmCount                int        `gorm:"not null" json:"confirmCount"`
	Active                      bool       `gorm:"not null;index" json:"active"`
	CreatedAt                   time.Time  `json:"createdAt"`
	UpdatedAt                   time.Time  `json:"updatedAt"`
}

func (MatchRule) TableName() string { return "kassensturz_match_rules" }

func (r *MatchRule) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
