package importer

import (
	"context"

	"statement-reconciliation-backend/internal/apperror"
	"statement-reconciliation-backend/internal/logger"
	"statement-reconciliation-backend/internal/models"
	"statement-reconciliation-backend/internal/services/parsers"

	"github.com/google/uuid"
)

type SourceSummary struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Preset string    `json:"preset"`
}

type PreviewCounts struct {
	TotalRows          int `json:"totalRows"`
	RowsAfterFileDedup int `json:"rowsAfterFileDedup"`
	DuplicateInFile    int `json:"duplicateInFile"`
	New                int `json:"new"`
	WouldUpdate        int `json:"wouldUpdate"`
}

type AssignmentCounts struct {
	Assigned   int `json:"assigned"`
	Unassigned int `json:"unassigned"`
}

type Sample struct {
	BookingDate       string  `json:"bookingDate"`
	AmountCents       int64   `json:"amountCents"`
	Currency          string  `json:"currency"`
	Status            string  `json:"status"`
	Description       *string `json:"description"`
	Counterparty      *string `json:"counterparty"`
	DedupeKey         string  `json:"dedupeKey"`
	HasPlanAssignment bool    `json:"hasPlanAssignment"`
}

type PreviewResult struct {
	PreviewImportID uuid.UUID        `json:"previewImportId"`
	Source          SourceSummary    `json:"source"`
	Parser          parsers.Meta     `json:"parser"`
	Counts          PreviewCounts    `json:"counts"`
	Assignment      AssignmentCounts `json:"assignment"`
	Warnings        []string         `json:"warnings"`
	Samples         []Sample         `json:"samples"`
}

type CommitResult struct {
	ImportID   uuid.UUID `json:"importId"`
	Inserted   int       `json:"inserted"`
	Updated    int       `json:"updated"`
	Skipped    int       `json:"skipped"`
	Assigned   int       `json:"assigned"`
	Unassigned int       `json:"unassigned"`
	Warnings   []string  `json:"warnings"`
}

type plannedWrite struct {
	rows       []models.BankTransaction
	inserted   int
	updated    int
	assigned   int
	unassigned int
}

// plan turns the prepared rows into the exact values a commit would store.
func (s *Service) plan(p *prepared, existing map[string]models.BankTransaction, importID uuid.UUID) (plannedWrite, error) {
	now := s.now()
	w := plannedWrite{rows: make([]models.BankTransaction, 0, len(p.unique))}
	for i, row := range p.unique {
		incoming, err := toModel(row, p.source.ID, importID, p.assignments[i], now)
		if err != nil {
			return plannedWrite{}, err
		}
		if prev, ok := existing[row.DedupeKey]; ok {
			incoming = MergeExisting(prev, incoming)
			w.updated++
		} else {
			w.inserted++
		}
		if incoming.PlanID != nil {
			w.assigned++
		} else {
			w.unassigned++
		}
		w.rows = append(w.rows, incoming)
	}
	return w, nil
}

// Preview parses and classifies an upload without writing bank transactions.
func (s *Service) Preview(ctx context.Context, req Request) (*PreviewResult, error) {
	p, err := s.prepare(ctx, req)
	if err != nil {
		s.logFailure(ctx, p, models.ImportPhasePreview, req.UserID, err)
		return nil, err
	}

	w, err := s.plan(p, p.existing, uuid.Nil)
	if err != nil {
		err = apperror.Internal("build preview rows", err)
		s.logFailure(ctx, p, models.ImportPhasePreview, req.UserID, err)
		return nil, err
	}

	audit := &models.StatementImport{
		ID:                uuid.New(),
		SourceID:          p.source.ID,
		FileName:          p.fileName,
		FileSHA256:        p.fileSHA256,
		FileType:          p.fileType,
		Phase:             models.ImportPhasePreview,
		Status:            models.ImportStatusSuccess,
		PreviewCount:      len(p.parsed.Rows),
		SkippedCount:      p.duplicateInFile,
		TriggeredByUserID: req.UserID,
		CreatedAt:         s.now(),
	}
	if err := s.repo.CreateStatementImport(ctx, audit); err != nil {
		return nil, apperror.Internal("record preview", err)
	}

	samples := make([]Sample, 0, min(maxSamples, len(w.rows)))
	for _, r := range w.rows[:min(maxSamples, len(w.rows))] {
		samples = append(samples, Sample{
			BookingDate:       r.BookingDate,
			AmountCents:       r.AmountCents,
			Currency:          r.Currency,
			Status:            r.Status,
			Description:       r.Description,
			Counterparty:      r.Counterparty,
			DedupeKey:         r.DedupeKey,
			HasPlanAssignment: r.PlanID != nil,
		})
	}

	logger.L.Info("import previewed",
		"source_id", p.source.ID, "file", p.fileName, "rows", len(p.parsed.Rows),
		"new", w.inserted, "would_update", w.updated)

	return &PreviewResult{
		PreviewImportID: audit.ID,
		Source:          SourceSummary{ID: p.source.ID, Name: p.source.Name, Preset: p.source.Preset},
		Parser:          p.parsed.Meta,
		Counts: PreviewCounts{
			TotalRows:          len(p.parsed.Rows),
			RowsAfterFileDedup: len(p.unique),
			DuplicateInFile:    p.duplicateInFile,
			New:                w.inserted,
			WouldUpdate:        w.updated,
		},
		Assignment: AssignmentCounts{Assigned: w.assigned, Unassigned: w.unassigned},
		Warnings:   nonNil(p.warnings),
		Samples:    samples,
	}, nil
}

// Commit upserts every unique row and the audit record in one transaction.
func (s *Service) Commit(ctx context.Context, req Request) (*CommitResult, error) {
	p, err := s.prepare(ctx, req)
	if err != nil {
		s.logFailure(ctx, p, models.ImportPhaseCommit, req.UserID, err)
		return nil, err
	}

	importID := uuid.New()
	var w plannedWrite
	err = s.tx.Transaction(ctx, func(ctx context.Context) error {
		// rows may have been stored by a concurrent commit since prepare
		existing, err := s.repo.ExistingByDedupeKeys(ctx, p.source.ID, p.dedupeKeys())
		if err != nil {
			return err
		}
		w, err = s.plan(p, existing, importID)
		if err != nil {
			return err
		}

		audit := &models.StatementImport{
			ID:                importID,
			SourceID:          p.source.ID,
			FileName:          p.fileName,
			FileSHA256:        p.fileSHA256,
			FileType:          p.fileType,
			Phase:             models.ImportPhaseCommit,
			Status:            models.ImportStatusSuccess,
			PreviewCount:      len(p.parsed.Rows),
			ImportedCount:     w.inserted,
			UpdatedCount:      w.updated,
			SkippedCount:      p.duplicateInFile,
			TriggeredByUserID: req.UserID,
			CreatedAt:         s.now(),
		}
		if err := s.repo.CreateStatementImport(ctx, audit); err != nil {
			return err
		}
		return s.repo.UpsertBankTransactions(ctx, w.rows)
	})
	if err != nil {
		err = apperror.Internal("commit import", err)
		s.logFailure(ctx, p, models.ImportPhaseCommit, req.UserID, err)
		return nil, err
	}

	logger.L.Info("import committed",
		"import_id", importID, "source_id", p.source.ID, "file", p.fileName,
		"inserted", w.inserted, "updated", w.updated, "skipped", p.duplicateInFile)

	return &CommitResult{
		ImportID:   importID,
		Inserted:   w.inserted,
		Updated:    w.updated,
		Skipped:    p.duplicateInFile,
		Assigned:   w.assigned,
		Unassigned: w.unassigned,
		Warnings:   nonNil(p.warnings),
	}, nil
}

// ImportTypes lists the supported statement formats.
func (s *Service) ImportTypes() []parsers.Descriptor {
	return parsers.Descriptors()
}

func nonNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}
