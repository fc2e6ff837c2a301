package importer

import (
	"context"
	"testing"

	"statement-reconciliation-backend/internal/apperror"
	"statement-reconciliation-backend/internal/models"
	"statement-reconciliation-backend/internal/repository"
	"statement-reconciliation-backend/internal/services/parsers"
	"statement-reconciliation-backend/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

const ingFile = "Umsatzanzeige;Datei erstellt am: 01.03.2026\n" +
	"\n" +
	"Buchung;Wertstellungsdatum;Auftraggeber/Empfänger;Buchungstext;Verwendungszweck;Saldo;Währung;Betrag;Währung\n" +
	"14.02.2026;14.02.2026;REWE Markt GmbH;Lastschrift;Einkauf;2.514,33;EUR;-140,47;EUR\n" +
	"14.02.2026;14.02.2026;REWE Markt GmbH;Lastschrift;Einkauf;2.514,33;EUR;-140,47;EUR\n" +
	"02.02.2026;02.02.2026;Stadtwerke;Lastschrift;Strom Februar;2.654,80;EUR;-85,00;EUR\n" +
	"30.01.2026;30.01.2026;Arbeitgeber AG;Gehalt/Rente;Gehalt;2.739,80;EUR;3.250,00;EUR\n"

type fixture struct {
	db      *gorm.DB
	svc     *Service
	imports *repository.ImportRepository
	source  *models.ImportSource
}

func newFixture(t *testing.T, policy string) *fixture {
	db := testutil.NewDB(t)
	imports := repository.NewImportRepository(db)
	svc := NewService(imports, repository.NewTxManager(db), repository.NewPlanRepository(db))
	return &fixture{
		db:      db,
		svc:     svc,
		imports: imports,
		source:  testutil.SeedSource(t, db, parsers.PresetIngCSV, policy),
	}
}

func (f *fixture) request(name string, data string) Request {
	return Request{SourceID: f.source.ID, FileName: name, ContentType: "text/csv", Data: []byte(data), UserID: testutil.Ptr("user-1")}
}

func TestPreviewWritesOnlyAuditRow(t *testing.T) {
	f := newFixture(t, models.AssignmentAutoMonth)
	testutil.SeedPlan(t, f.db, "2026-02-01", false)
	ctx := context.Background()

	res, err := f.svc.Preview(ctx, f.request("umsatz.csv", ingFile))
	require.NoError(t, err)

	require.Equal(t, PreviewCounts{TotalRows: 4, RowsAfterFileDedup: 3, DuplicateInFile: 1, New: 3, WouldUpdate: 0}, res.Counts)
	require.Equal(t, AssignmentCounts{Assigned: 2, Unassigned: 1}, res.Assignment)
	require.Equal(t, parsers.Meta{Preset: parsers.PresetIngCSV, FileType: parsers.FileTypeCSV, TotalRows: 4}, res.Parser)
	require.Equal(t, f.source.ID, res.Source.ID)
	require.Len(t, res.Samples, 3)
	require.True(t, res.Samples[0].HasPlanAssignment)
	require.False(t, res.Samples[2].HasPlanAssignment)
	require.Contains(t, res.Warnings, "1 Transaktionen konnten keinem eindeutigen Monatsplan zugeordnet werden.")

	txs, err := f.imports.TransactionsForSource(ctx, f.source.ID)
	require.NoError(t, err)
	require.Empty(t, txs)

	audits, err := f.imports.StatementImports(ctx, f.source.ID)
	require.NoError(t, err)
	require.Len(t, audits, 1)
	require.Equal(t, models.ImportPhasePreview, audits[0].Phase)
	require.Equal(t, models.ImportStatusSuccess, audits[0].Status)
	require.Equal(t, 4, audits[0].PreviewCount)
	require.Equal(t, 1, audits[0].SkippedCount)
	require.Equal(t, res.PreviewImportID, audits[0].ID)
}

func TestCommitIsIdempotentAndKeepsManualAssignment(t *testing.T) {
	f := newFixture(t, models.AssignmentAutoMonth)
	feb := testutil.SeedPlan(t, f.db, "2026-02-01", false)
	ctx := context.Background()

	first, err := f.svc.Commit(ctx, f.request("umsatz.csv", ingFile))
	require.NoError(t, err)
	require.Equal(t, 3, first.Inserted)
	require.Equal(t, 0, first.Updated)
	require.Equal(t, 1, first.Skipped)
	require.Equal(t, 2, first.Assigned)
	require.Equal(t, 1, first.Unassigned)

	txs, err := f.imports.TransactionsForSource(ctx, f.source.ID)
	require.NoError(t, err)
	require.Len(t, txs, 3)

	// user moves the January salary into the February plan by hand
	var salary models.BankTransaction
	for _, tx := range txs {
		if tx.BookingDate == "2026-01-30" {
			salary = tx
		}
	}
	require.Nil(t, salary.PlanID)
	_, err = repository.NewReconciliationRepository(f.db).AssignPlan(ctx, salary.ID, &feb.ID, models.AssignmentManual)
	require.NoError(t, err)

	// a January plan appears; it must not override the manual choice
	testutil.SeedPlan(t, f.db, "2026-01-01", false)

	second, err := f.svc.Commit(ctx, f.request("umsatz.csv", ingFile))
	require.NoError(t, err)
	require.Equal(t, 0, second.Inserted)
	require.Equal(t, 3, second.Updated)
	require.Equal(t, 3, second.Assigned)

	after, err := f.imports.TransactionsForSource(ctx, f.source.ID)
	require.NoError(t, err)
	require.Len(t, after, 3)
	for _, tx := range after {
		require.Equal(t, 2, tx.ImportSeenCount)
		require.Equal(t, first.ImportID, tx.FirstSeenImportID)
		require.Equal(t, second.ImportID, tx.LastSeenImportID)
		if tx.ID == salary.ID {
			require.Equal(t, models.AssignmentManual, tx.PlanAssignment)
			require.Equal(t, feb.ID, *tx.PlanID)
		} else {
			require.Equal(t, models.AssignmentAutoMonth, tx.PlanAssignment)
			require.Equal(t, feb.ID, *tx.PlanID)
		}
	}

	audits, err := f.imports.StatementImports(ctx, f.source.ID)
	require.NoError(t, err)
	require.Len(t, audits, 2)
	for _, a := range audits {
		require.Equal(t, models.ImportPhaseCommit, a.Phase)
		require.Equal(t, models.ImportStatusSuccess, a.Status)
	}
}

func TestAutoMonthNeedsExactlyOnePlan(t *testing.T) {
	f := newFixture(t, models.AssignmentAutoMonth)
	testutil.SeedPlan(t, f.db, "2026-02-01", false)
	testutil.SeedPlan(t, f.db, "2026-02-15", false)
	testutil.SeedPlan(t, f.db, "2026-01-01", true)

	res, err := f.svc.Preview(context.Background(), f.request("umsatz.csv", ingFile))
	require.NoError(t, err)
	require.Equal(t, AssignmentCounts{Assigned: 0, Unassigned: 3}, res.Assignment)
	require.Contains(t, res.Warnings, "3 Transaktionen konnten keinem eindeutigen Monatsplan zugeordnet werden.")
}

func TestPolicyNoneNeverAssigns(t *testing.T) {
	f := newFixture(t, models.AssignmentNone)
	testutil.SeedPlan(t, f.db, "2026-02-01", false)

	res, err := f.svc.Commit(context.Background(), f.request("umsatz.csv", ingFile))
	require.NoError(t, err)
	require.Equal(t, 0, res.Assigned)
	require.Equal(t, 3, res.Unassigned)
	require.Empty(t, res.Warnings)
}

func TestUnknownSource(t *testing.T) {
	f := newFixture(t, models.AssignmentNone)
	req := f.request("umsatz.csv", ingFile)
	req.SourceID = uuid.New()

	_, err := f.svc.Preview(context.Background(), req)
	require.True(t, apperror.IsKind(err, apperror.KindNotFound))
}

func TestInactiveSourceLogsFailure(t *testing.T) {
	f := newFixture(t, models.AssignmentNone)
	require.NoError(t, f.db.Model(f.source).Update("is_active", false).Error)
	ctx := context.Background()

	_, err := f.svc.Commit(ctx, f.request("umsatz.csv", ingFile))
	require.True(t, apperror.IsKind(err, apperror.KindValidation))

	audits, err := f.imports.StatementImports(ctx, f.source.ID)
	require.NoError(t, err)
	require.Len(t, audits, 1)
	require.Equal(t, models.ImportStatusFailed, audits[0].Status)
	require.Equal(t, models.ImportPhaseCommit, audits[0].Phase)
	require.Equal(t, "Import-Quelle ist deaktiviert.", *audits[0].ErrorMessage)
}

func TestFatalParseErrorLogsFailure(t *testing.T) {
	f := newFixture(t, models.AssignmentNone)
	ctx := context.Background()

	_, err := f.svc.Preview(ctx, f.request("umsatz.csv", "irgendwas;ohne;kopfzeile\n"))
	require.True(t, apperror.IsKind(err, apperror.KindValidation))

	audits, err := f.imports.StatementImports(ctx, f.source.ID)
	require.NoError(t, err)
	require.Len(t, audits, 1)
	require.Equal(t, models.ImportStatusFailed, audits[0].Status)
	require.Equal(t, parsers.FileTypeCSV, audits[0].FileType)
	require.NotEmpty(t, audits[0].FileSHA256)
	require.Contains(t, *audits[0].ErrorMessage, "Kopfzeile nicht gefunden")
}

func TestWrongExtensionForSource(t *testing.T) {
	f := newFixture(t, models.AssignmentNone)
	_, err := f.svc.Preview(context.Background(), f.request("umsatz.xlsx", ingFile))
	require.True(t, apperror.IsKind(err, apperror.KindValidation))
	require.Contains(t, err.Error(), "Erwartet: .csv")
}

func TestDetectFileType(t *testing.T) {
	ft, err := detectFileType("a.CSV", "", nil)
	require.NoError(t, err)
	require.Equal(t, parsers.FileTypeCSV, ft)

	ft, err = detectFileType("upload", "application/vnd.ms-excel", nil)
	require.NoError(t, err)
	require.Equal(t, parsers.FileTypeXLSX, ft)

	ft, err = detectFileType("upload", "text/csv", nil)
	require.NoError(t, err)
	require.Equal(t, parsers.FileTypeCSV, ft)

	_, err = detectFileType("auszug.pdf", "application/pdf", []byte("%PDF-1.7"))
	require.True(t, apperror.IsKind(err, apperror.KindValidation))
}

func TestCheckContentRejectsRenamedWorkbook(t *testing.T) {
	wb := excelize.NewFile()
	buf, err := wb.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, wb.Close())

	require.True(t, apperror.IsKind(checkContent(parsers.FileTypeCSV, buf.Bytes()), apperror.KindValidation))
	require.NoError(t, checkContent(parsers.FileTypeXLSX, buf.Bytes()))
	require.True(t, apperror.IsKind(checkContent(parsers.FileTypeXLSX, []byte(ingFile)), apperror.KindValidation))
	require.NoError(t, checkContent(parsers.FileTypeCSV, []byte(ingFile)))
}
