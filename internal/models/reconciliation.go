package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	MatchTypeManual = "manual"
	MatchTypeAuto   = "auto"
)

// Unique index names. The repository maps a violated index back to its column.
const (
	IndexReconciliationBank    = "uq_reconciliation_bank_tx"
	IndexReconciliationPlanned = "uq_reconciliation_planned_tx"
)

// TransactionReconciliation links one bank transaction to one planned transaction.
// Each side takes part in at most one link.
type TransactionReconciliation struct {
	ID                   uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	BankTransactionID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_reconciliation_bank_tx" json:"bankTransactionId"`
	PlannedTransactionID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_reconciliation_planned_tx" json:"plannedTransactionId"`
	MatchType            string    `gorm:"size:16;not null" json:"matchType"`
	Confidence           *int      `json:"confidence"`
	MatchedAt            time.Time `gorm:"not null" json:"matchedAt"`
	MatchedByUserID      *string   `json:"matchedByUserId"`
}

func (r *TransactionReconciliation) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.MatchedAt.IsZero() {
		r.MatchedAt = time.Now().UTC()
	}
	return nil
}

// Dismissal marks a bank transaction as deliberately not belonging to its plan's budget.
type Dismissal struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	PlanID            uuid.UUID `gorm:"type:uuid;not null;index" json:"planId"`
	BankTransactionID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_dismissal_bank_tx" json:"bankTransactionId"`
	Reason            *string   `json:"reason"`
	DismissedByUserID *string   `json:"dismissedByUserId"`
	CreatedAt         time.Time `json:"createdAt"`
}

func (Dismissal) TableName() string { return "kassensturz_dismissals" }

func (d *Dismissal) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
