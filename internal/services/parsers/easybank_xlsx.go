package parsers

import (
	"bytes"
	"strings"

	"statement-reconciliation-backend/internal/apperror"
	"statement-reconciliation-backend/internal/services/normalize"

	"github.com/xuri/excelize/v2"
)

var easybankRequiredColumns = []string{
	"Referenznummer",
	"Buchungsdatum",
	"Betrag",
	"Beschreibung",
	"Typ",
	"Status",
}

// EasybankXLSX parses the easybank credit card export. The sheet repeats
// "Buchungsdatum": the first column is the booking date, the second the value date.
type EasybankXLSX struct{}

func (EasybankXLSX) Descriptor() Descriptor {
	return Descriptor{
		Preset:     PresetEasybankXLSX,
		Name:       "easybank Kreditkarte (XLSX)",
		FileType:   FileTypeXLSX,
		Extensions: []string{".xlsx"},
		MimeTypes: []string{
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			"application/zip",
		},
	}
}

type easybankColumns struct {
	reference, bookingDate, valueDate, amount, description, typ, status int
	cardNumber, originalAmount, country, cardholder, details           int
}

func (p EasybankXLSX) Parse(fileName string, data []byte) (*ParsedFile, error) {
	if !p.Descriptor().HasExtension(fileName) {
		return nil, apperror.Validation("Ungültiger Dateityp für easybank-Import. Erwartet wird eine XLSX-Datei.")
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, apperror.Validation("EasyBank-XLSX konnte nicht gelesen werden: Datei ist keine gültige Arbeitsmappe.")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperror.Validation("EasyBank-XLSX enthält kein Tabellenblatt.")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, apperror.Validation("EasyBank-XLSX konnte nicht gelesen werden: Tabellenblatt ist beschädigt.")
	}

	headerAt, err := LocateHeader(rows, easybankRequiredColumns, "EasyBank-XLSX")
	if err != nil {
		return nil, err
	}
	h := BuildHeaderIndex(rows[headerAt])
	cols := easybankColumns{
		reference:      h.Column("Referenznummer", 0),
		bookingDate:    h.Column("Buchungsdatum", 0),
		valueDate:      h.Column("Buchungsdatum", 1),
		amount:         h.Column("Betrag", 0),
		description:    h.Column("Beschreibung", 0),
		typ:            h.Column("Typ", 0),
		status:         h.Column("Status", 0),
		cardNumber:     h.Column("Kartennummer", 0),
		originalAmount: h.Column("Originalbetrag", 0),
		country:        h.Column("Land", 0),
		cardholder:     h.Column("Karteninhaber", 0),
		details:        h.Column("Details", 0),
	}

	out := &ParsedFile{}
	for i := headerAt + 1; i < len(rows); i++ {
		if isBlankRow(rows[i]) {
			continue
		}
		row, ok := cols.toRow(rows[i])
		if !ok {
			out.Warnings = append(out.Warnings, rowSkippedWarning(i+1))
			continue
		}
		out.Rows = append(out.Rows, row)
	}

	out.Meta = Meta{Preset: PresetEasybankXLSX, FileType: FileTypeXLSX, TotalRows: len(out.Rows)}
	return out, nil
}

func (c easybankColumns) toRow(cells []string) (Row, bool) {
	get := func(idx int) string { return cellAt(cells, idx) }
	optional := func(idx int) *string {
		if idx < 0 {
			return nil
		}
		return normalize.Text(get(idx))
	}

	bookingDate, ok := normalize.GermanDate(get(c.bookingDate))
	if !ok {
		return Row{}, false
	}
	amount, ok := normalize.GermanMoney(get(c.amount), "EUR")
	if !ok {
		return Row{}, false
	}

	typ := normalize.Text(get(c.typ))
	row := Row{
		ExternalID:  optional(c.reference),
		BookingDate: bookingDate,
		AmountCents: signByType(amount.Cents, typ),
		Currency:    amount.Currency,
		BookingText: typ,
		Description: normalize.Text(get(c.description)),
		Purpose:     optional(c.details),
		Status:      easybankStatus(get(c.status)),
		Country:     optional(c.country),
		Cardholder:  optional(c.cardholder),
		RawData: map[string]*string{
			"referenznummer":     optional(c.reference),
			"buchungsdatum":      normalize.Text(get(c.bookingDate)),
			"wertstellungsdatum": optional(c.valueDate),
			"betrag":             normalize.Text(get(c.amount)),
			"beschreibung":       normalize.Text(get(c.description)),
			"typ":                typ,
			"status":             normalize.Text(get(c.status)),
			"kartennummer":       optional(c.cardNumber),
			"originalbetrag":     optional(c.originalAmount),
			"land":               optional(c.country),
			"karteninhaber":      optional(c.cardholder),
			"details":            optional(c.details),
		},
	}
	if c.valueDate >= 0 {
		if valueDate, ok := normalize.GermanDate(get(c.valueDate)); ok {
			row.ValueDate = &valueDate
		}
	}
	if c.cardNumber >= 0 {
		row.CardLast4 = normalize.CardLast4(get(c.cardNumber))
	}
	if c.originalAmount >= 0 {
		if original, ok := normalize.GermanMoney(get(c.originalAmount), amount.Currency); ok {
			row.OriginalAmountCents = &original.Cents
			row.OriginalCurrency = &original.Currency
		}
	}
	return row, true
}

// signByType applies the debit/credit label, since the export may print unsigned amounts.
func signByType(cents int64, typ *string) int64 {
	if typ == nil {
		return cents
	}
	t := strings.ToLower(*typ)
	abs := cents
	if abs < 0 {
		abs = -abs
	}
	switch {
	case strings.Contains(t, "belastung"):
		return -abs
	case strings.Contains(t, "gutschrift"):
		return abs
	}
	return cents
}

func easybankStatus(raw string) string {
	s := normalize.Lower(raw)
	switch {
	case strings.Contains(s, "vorgemerkt"), strings.Contains(s, "noch nicht abgerechnet"):
		return StatusPending
	case s == "", s == "-", strings.Contains(s, "gebucht"), strings.Contains(s, "abgerechnet"):
		return StatusBooked
	}
	return StatusUnknown
}
