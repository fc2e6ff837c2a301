package models

import (
	"github.com/google/uuid"
)

const (
	DirectionIncome  = "income"
	DirectionExpense = "expense"
)

// Plan is a monthly budget. Owned by the budgeting side; read here only.
type Plan struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name       string    `json:"name"`
	Date       string    `gorm:"size:10;not null;index" json:"date"`
	IsArchived bool      `gorm:"not null;default:false" json:"isArchived"`
}

// PlannedTransaction is one budget line of a plan. Amount is in cents.
type PlannedTransaction struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	PlanID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"planId"`
	Name       string     `gorm:"not null" json:"name"`
	Note       *string    `json:"note"`
	Type       string     `gorm:"size:8;not null" json:"type"`
	DueDate    string     `gorm:"size:10" json:"dueDate"`
	Amount     int64      `gorm:"not null" json:"amount"`
	CategoryID *uuid.UUID `gorm:"type:uuid" json:"categoryId"`
}

// Fulfilment states of a planned transaction, derived from matched amounts.
const (
	PlannedStatusOpen      = "open"
	PlannedStatusPartial   = "partial"
	PlannedStatusFulfilled = "fulfilled"
	PlannedStatusOverdrawn = "overdrawn"
)

// PlannedStatus compares the absolute matched amount with the absolute planned amount.
func PlannedStatus(plannedCents, matchedCents int64) string {
	planned := abs(plannedCents)
	switch {
	case matchedCents == 0:
		return PlannedStatusOpen
	case matchedCents < planned:
		return PlannedStatusPartial
	case matchedCents == planned:
		return PlannedStatusFulfilled
	default:
		return PlannedStatusOverdrawn
	}
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
