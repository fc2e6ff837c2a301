package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	AssignmentAutoMonth = "auto_month"
	AssignmentManual    = "manual"
	AssignmentNone      = "none"
)

// ImportSource is a configured statement origin such as a giro account or a credit card.
type ImportSource struct {
	ID                    uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name                  string    `gorm:"not null" json:"name"`
	Preset                string    `gorm:"size:32;not null" json:"preset"`
	SourceKind            string    `gorm:"size:16;not null;default:bank_account" json:"sourceKind"`
	BankName              string    `json:"bankName"`
	AccountLabel          *string   `json:"accountLabel"`
	DefaultPlanAssignment string    `gorm:"size:16;not null;default:auto_month" json:"defaultPlanAssignment"`
	IsActive              bool      `gorm:"not null" json:"isActive"`
	CreatedAt             time.Time `json:"createdAt"`
	UpdatedAt             time.Time `json:"updatedAt"`
}

func (s *ImportSource) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
