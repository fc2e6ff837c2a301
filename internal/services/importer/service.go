// Package importer runs statement uploads through parsing, deduplication,
// plan assignment and the idempotent upsert into bank_transactions.
package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"statement-reconciliation-backend/internal/apperror"
	"statement-reconciliation-backend/internal/logger"
	"statement-reconciliation-backend/internal/models"
	"statement-reconciliation-backend/internal/repository"
	"statement-reconciliation-backend/internal/services/dedupe"
	"statement-reconciliation-backend/internal/services/normalize"
	"statement-reconciliation-backend/internal/services/parsers"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const maxSamples = 10

type Repository interface {
	SourceByID(ctx context.Context, id uuid.UUID) (*models.ImportSource, error)
	ExistingByDedupeKeys(ctx context.Context, sourceID uuid.UUID, keys []string) (map[string]models.BankTransaction, error)
	CreateStatementImport(ctx context.Context, imp *models.StatementImport) error
	UpsertBankTransactions(ctx context.Context, rows []models.BankTransaction) error
}

type Transactor interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type PlanLookup interface {
	ActivePlansInMonth(ctx context.Context, month string) ([]models.Plan, error)
}

// Request is one uploaded statement file.
type Request struct {
	SourceID    uuid.UUID
	FileName    string
	ContentType string
	Data        []byte
	UserID      *string
}

type Service struct {
	repo  Repository
	tx    Transactor
	plans PlanLookup
	now   func() time.Time
}

func NewService(repo Repository, tx Transactor, plans PlanLookup) *Service {
	return &Service{
		repo:  repo,
		tx:    tx,
		plans: plans,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

type assignment struct {
	PlanID *uuid.UUID
	Mode   string
}

type prepared struct {
	source          *models.ImportSource
	descriptor      parsers.Descriptor
	fileName        string
	fileType        string
	fileSHA256      string
	parsed          *parsers.ParsedFile
	unique          []dedupe.KeyedRow
	duplicateInFile int
	assignments     []assignment
	existing        map[string]models.BankTransaction
	warnings        []string
}

func (p *prepared) dedupeKeys() []string {
	keys := make([]string, len(p.unique))
	for i, r := range p.unique {
		keys[i] = r.DedupeKey
	}
	return keys
}

// prepare runs every read-only step. The returned value carries whatever was
// resolved before a failure so the caller can write a failed audit row.
func (s *Service) prepare(ctx context.Context, req Request) (*prepared, error) {
	source, err := s.repo.SourceByID(ctx, req.SourceID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.NotFound("Import-Quelle wurde nicht gefunden.")
	}
	if err != nil {
		return nil, apperror.Internal("load import source", err)
	}

	p := &prepared{source: source, fileName: req.FileName}
	if p.fileName == "" {
		p.fileName = "upload"
	}
	p.fileSHA256 = dedupe.FileSHA256(req.Data)

	if !source.IsActive {
		return p, apperror.Validation("Import-Quelle ist deaktiviert.")
	}

	parser, err := parsers.Lookup(source.Preset)
	if err != nil {
		return p, err
	}
	p.descriptor = parser.Descriptor()

	p.fileType, err = detectFileType(p.fileName, req.ContentType, req.Data)
	if err != nil {
		return p, err
	}
	if !p.descriptor.HasExtension(p.fileName) {
		return p, apperror.Validation(fmt.Sprintf(
			"Falscher Dateityp für %s. Erwartet: %s.",
			p.descriptor.Name, strings.Join(p.descriptor.Extensions, ", "),
		))
	}
	if err := checkContent(p.descriptor.FileType, req.Data); err != nil {
		return p, err
	}

	p.parsed, err = parser.Parse(p.fileName, req.Data)
	if err != nil {
		return p, err
	}
	p.unique, p.duplicateInFile = dedupe.InFile(p.parsed.Rows)
	p.warnings = append(p.warnings, p.parsed.Warnings...)

	p.assignments, err = s.resolveAssignments(ctx, source.DefaultPlanAssignment, p.unique)
	if err != nil {
		return p, apperror.Internal("resolve plan assignments", err)
	}
	if n := countUnassigned(p.assignments); n > 0 && source.DefaultPlanAssignment == models.AssignmentAutoMonth {
		p.warnings = append(p.warnings, fmt.Sprintf(
			"%d Transaktionen konnten keinem eindeutigen Monatsplan zugeordnet werden.", n))
	}

	p.existing, err = s.repo.ExistingByDedupeKeys(ctx, source.ID, p.dedupeKeys())
	if err != nil {
		return p, apperror.Internal("load existing transactions", err)
	}
	return p, nil
}

// resolveAssignments assigns a row to a plan only when exactly one active plan
// exists for the row's booking month.
func (s *Service) resolveAssignments(ctx context.Context, policy string, rows []dedupe.KeyedRow) ([]assignment, error) {
	out := make([]assignment, len(rows))
	if policy != models.AssignmentAutoMonth {
		for i := range out {
			out[i] = assignment{Mode: models.AssignmentNone}
		}
		return out, nil
	}

	planByMonth := make(map[string]*uuid.UUID)
	for i, r := range rows {
		month := normalize.MonthOf(r.BookingDate)
		planID, seen := planByMonth[month]
		if !seen {
			plans, err := s.plans.ActivePlansInMonth(ctx, month)
			if err != nil {
				return nil, err
			}
			if len(plans) == 1 {
				id := plans[0].ID
				planID = &id
			}
			planByMonth[month] = planID
		}
		if planID != nil {
			out[i] = assignment{PlanID: planID, Mode: models.AssignmentAutoMonth}
		} else {
			out[i] = assignment{Mode: models.AssignmentNone}
		}
	}
	return out, nil
}

func countUnassigned(as []assignment) int {
	n := 0
	for _, a := range as {
		if a.PlanID == nil {
			n++
		}
	}
	return n
}

func (s *Service) logFailure(ctx context.Context, p *prepared, phase string, userID *string, cause error) {
	if p == nil || p.source == nil {
		return
	}
	msg := cause.Error()
	audit := &models.StatementImport{
		SourceID:          p.source.ID,
		FileName:          p.fileName,
		FileSHA256:        p.fileSHA256,
		FileType:          p.fileType,
		Phase:             phase,
		Status:            models.ImportStatusFailed,
		ErrorMessage:      &msg,
		TriggeredByUserID: userID,
		CreatedAt:         s.now(),
	}
	if err := s.repo.CreateStatementImport(context.WithoutCancel(ctx), audit); err != nil {
		logger.L.Error("failed to record failed import", "source_id", p.source.ID, "phase", phase, "error", err)
	}
}

func toModel(row dedupe.KeyedRow, sourceID, importID uuid.UUID, a assignment, now time.Time) (models.BankTransaction, error) {
	raw, err := json.Marshal(row.RawData)
	if err != nil {
		return models.BankTransaction{}, err
	}
	return models.BankTransaction{
		ID:                    uuid.New(),
		SourceID:              sourceID,
		DedupeKey:             row.DedupeKey,
		FirstSeenImportID:     importID,
		LastSeenImportID:      importID,
		ExternalTransactionID: row.ExternalID,
		BookingDate:           row.BookingDate,
		ValueDate:             row.ValueDate,
		AmountCents:           row.AmountCents,
		Currency:              row.Currency,
		OriginalAmountCents:   row.OriginalAmountCents,
		OriginalCurrency:      row.OriginalCurrency,
		Counterparty:          row.Counterparty,
		BookingText:           row.BookingText,
		Description:           row.Description,
		Purpose:               row.Purpose,
		Status:                row.Status,
		BalanceAfterCents:     row.BalanceAfterCents,
		BalanceCurrency:       row.BalanceCurrency,
		Country:               row.Country,
		CardLast4:             row.CardLast4,
		Cardholder:            row.Cardholder,
		RawData:               datatypes.JSON(raw),
		PlanID:                a.PlanID,
		PlanAssignment:        a.Mode,
		ImportSeenCount:       1,
		CreatedAt:             now,
		UpdatedAt:             now,
	}, nil
}

func detectFileType(fileName, contentType string, data []byte) (string, error) {
	lower := strings.ToLower(fileName)
	switch {
	case strings.HasSuffix(lower, ".csv"):
		return parsers.FileTypeCSV, nil
	case strings.HasSuffix(lower, ".xlsx"):
		return parsers.FileTypeXLSX, nil
	}

	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "spreadsheet"), strings.Contains(ct, "excel"):
		return parsers.FileTypeXLSX, nil
	case strings.Contains(ct, "csv"):
		return parsers.FileTypeCSV, nil
	}

	detected := mimetype.Detect(data)
	switch {
	case detected.Is(xlsxMIME):
		return parsers.FileTypeXLSX, nil
	case detected.Is("text/csv"):
		return parsers.FileTypeCSV, nil
	}
	return "", apperror.Validation("Dateityp wird nicht unterstützt. Erlaubt sind CSV oder XLSX.")
}

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// checkContent rejects uploads whose bytes contradict the expected format,
// e.g. a workbook renamed to .csv.
func checkContent(fileType string, data []byte) error {
	zipped := false
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		if m.Is("application/zip") {
			zipped = true
			break
		}
	}
	switch {
	case fileType == parsers.FileTypeCSV && zipped:
		return apperror.Validation("Die Datei ist keine CSV-Datei.")
	case fileType == parsers.FileTypeXLSX && !zipped:
		return apperror.Validation("Die Datei ist keine gültige XLSX-Datei.")
	}
	return nil
}
