package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	AuditActionManualMatch = "manual_match"
	AuditActionAutoMatch   = "auto_match"
	AuditActionUnmatch     = "unmatch"
	AuditActionDismiss     = "dismiss"
	AuditActionUndismiss   = "undismiss"
)

type MatchAuditLog struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	PlanID            *uuid.UUID `gorm:"type:uuid;index" json:"planId"`
	BankTransactionID uuid.UUID  `gorm:"type:uuid;index" json:"bankTransactionId"`
	Action            string     `gorm:"size:16;not null" json:"action"`
	PreviousPlanned   *uuid.UUID `gorm:"type:uuid" json:"previousPlanned"`
	NewPlanned        *uuid.UUID `gorm:"type:uuid" json:"newPlanned"`
	PerformedBy       string     `json:"performedBy"`
	Reason            string     `json:"reason"`
	CreatedAt         time.Time  `json:"createdAt"`
}

// All lists every model for AutoMigrate.
func All() []any {
	return []any{
		&ImportSource{},
		&StatementImport{},
		&BankTransaction{},
		&TransactionReconciliation{},
		&Dismissal{},
		&MatchRule{},
		&Plan{},
		&PlannedTransaction{},
		&MatchAuditLog{},
	}
}

func (l *MatchAuditLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
