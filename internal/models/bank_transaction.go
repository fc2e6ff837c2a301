package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// BankTransaction is an imported statement line. (SourceID, DedupeKey) is unique,
// which keeps re-imports of the same file idempotent.
type BankTransaction struct {
	ID                    uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	SourceID              uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:uq_bank_tx_source_dedupe,priority:1" json:"sourceId"`
	DedupeKey             string         `gorm:"size:64;not null;uniqueIndex:uq_bank_tx_source_dedupe,priority:2" json:"dedupeKey"`
	FirstSeenImportID     uuid.UUID      `gorm:"type:uuid;not null" json:"firstSeenImportId"`
	LastSeenImportID      uuid.UUID      `gorm:"type:uuid;not null" json:"lastSeenImportId"`
	ExternalTransactionID *string        `json:"externalTransactionId"`
	BookingDate           string         `gorm:"size:10;not null;index" json:"bookingDate"`
	ValueDate             *string        `gorm:"size:10" json:"valueDate"`
	AmountCents           int64          `gorm:"not null" json:"amountCents"`
	Currency              string         `gorm:"size:3;not null" json:"currency"`
	OriginalAmountCents   *int64         `json:"originalAmountCents"`
	OriginalCurrency      *string        `gorm:"size:3" json:"originalCurrency"`
	Counterparty          *string        `json:"counterparty"`
	BookingText           *string        `json:"bookingText"`
	Description           *string        `json:"description"`
	Purpose               *string        `json:"purpose"`
	Status                string         `gorm:"size:16;not null;index" json:"status"`
	BalanceAfterCents     *int64         `json:"balanceAfterCents"`
	BalanceCurrency       *string        `gorm:"size:3" json:"balanceCurrency"`
	Country               *string        `json:"country"`
	CardLast4             *string        `gorm:"size:4" json:"cardLast4"`
	Cardholder            *string        `json:"cardholder"`
	RawData               datatypes.JSON `json:"rawData"`
	PlanID                *uuid.UUID     `gorm:"type:uuid;index" json:"planId"`
	PlanAssignment        string         `gorm:"size:16;not null;default:none" json:"planAssignment"`
	ImportSeenCount       int            `gorm:"not null;default:1" json:"importSeenCount"`
	CreatedAt             time.Time      `json:"createdAt"`
	UpdatedAt             time.Time      `json:"updatedAt"`
}

func (t *BankTransaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
