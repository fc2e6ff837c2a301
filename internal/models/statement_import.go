package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ImportPhasePreview = "preview"
	ImportPhaseCommit  = "commit"

	ImportStatusSuccess = "success"
	ImportStatusFailed  = "failed"
)

// StatementImport is the audit record of one preview or commit attempt. Rows are never updated.
type StatementImport struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SourceID          uuid.UUID `gorm:"type:uuid;not null;index" json:"sourceId"`
	FileName          string    `json:"fileName"`
	FileSHA256        string    `gorm:"column:file_sha256;size:64" json:"fileSha256"`
	FileType          string    `gorm:"size:8" json:"fileType"`
	Phase             string    `gorm:"size:16;not null" json:"phase"`
	Status            string    `gorm:"size:16;not null" json:"status"`
	PreviewCount      int       `json:"previewCount"`
	ImportedCount     int       `json:"importedCount"`
	UpdatedCount      int       `json:"updatedCount"`
	SkippedCount      int       `json:"skippedCount"`
	ErrorMessage      *string   `json:"errorMessage"`
	TriggeredByUserID *string   `json:"triggeredByUserId"`
	CreatedAt         time.Time `json:"createdAt"`
}

func (i *StatementImport) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
