package parsers

import (
	"bytes"
	"regexp"
	"strings"
	"unicode/utf8"

	"statement-reconciliation-backend/internal/apperror"
	"statement-reconciliation-backend/internal/services/normalize"

	"golang.org/x/text/encoding/charmap"
)

var ingRequiredColumns = []string{
	"Buchung",
	"Wertstellungsdatum",
	"Auftraggeber/Empfänger",
	"Buchungstext",
	"Verwendungszweck",
	"Saldo",
	"Betrag",
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// IngCSV parses the ING-DiBa "Umsatzanzeige" export: semicolon separated,
// free-text preamble, quoted multi-line fields, usually Latin-1 encoded.
type IngCSV struct{}

func (IngCSV) Descriptor() Descriptor {
	return Descriptor{
		Preset:     PresetIngCSV,
		Name:       "ING Girokonto (CSV)",
		FileType:   FileTypeCSV,
		Extensions: []string{".csv"},
		MimeTypes:  []string{"text/csv", "text/plain", "application/vnd.ms-excel"},
	}
}

type ingColumns struct {
	booking, value, counterparty, bookingText, purpose int
	balance, balanceCurrency, amount, amountCurrency   int
}

func (p IngCSV) Parse(fileName string, data []byte) (*ParsedFile, error) {
	if !p.Descriptor().HasExtension(fileName) {
		return nil, apperror.Validation("Ungültiger Dateityp für ING-Import. Erwartet wird eine CSV-Datei.")
	}

	records, lines := readSemicolonRecords(string(decodeLatin1Fallback(data)))

	headerAt, err := LocateHeader(records, ingRequiredColumns, "ING-CSV")
	if err != nil {
		return nil, err
	}
	h := BuildHeaderIndex(records[headerAt])
	cols := ingColumns{
		booking:         h.Column("Buchung", 0),
		value:           h.Column("Wertstellungsdatum", 0),
		counterparty:    h.Column("Auftraggeber/Empfänger", 0),
		bookingText:     h.Column("Buchungstext", 0),
		purpose:         h.Column("Verwendungszweck", 0),
		balance:         h.Column("Saldo", 0),
		balanceCurrency: h.Column("Währung", 0),
		amount:          h.Column("Betrag", 0),
		amountCurrency:  h.Column("Währung", 1),
	}

	out := &ParsedFile{}
	for i := headerAt + 1; i < len(records); i++ {
		rec := records[i]
		if isBlankRow(rec) {
			continue
		}
		row, ok := cols.toRow(rec)
		if !ok {
			out.Warnings = append(out.Warnings, rowSkippedWarning(lines[i]))
			continue
		}
		out.Rows = append(out.Rows, row)
	}

	out.Meta = Meta{Preset: PresetIngCSV, FileType: FileTypeCSV, TotalRows: len(out.Rows)}
	return out, nil
}

func (c ingColumns) toRow(rec []string) (Row, bool) {
	get := func(idx int) string { return cellAt(rec, idx) }

	bookingDate, ok := normalize.GermanDate(get(c.booking))
	if !ok {
		return Row{}, false
	}

	amountCurrency := normalize.TextValue(get(c.amountCurrency))
	if amountCurrency == "" {
		amountCurrency = normalize.TextValue(get(c.balanceCurrency))
	}
	amount, ok := normalize.GermanMoney(get(c.amount), normalize.Currency(amountCurrency, "EUR"))
	if !ok {
		return Row{}, false
	}

	row := Row{
		BookingDate:  bookingDate,
		AmountCents:  amount.Cents,
		Currency:     amount.Currency,
		Counterparty: normalize.Text(get(c.counterparty)),
		BookingText:  normalize.Text(get(c.bookingText)),
		Purpose:      normalize.Text(get(c.purpose)),
		Status:       StatusBooked,
		RawData: map[string]*string{
			"buchung":                normalize.Text(get(c.booking)),
			"wertstellungsdatum":     normalize.Text(get(c.value)),
			"auftraggeberEmpfaenger": normalize.Text(get(c.counterparty)),
			"buchungstext":           normalize.Text(get(c.bookingText)),
			"verwendungszweck":       normalize.Text(get(c.purpose)),
			"saldo":                  normalize.Text(get(c.balance)),
			"saldoWaehrung":          normalize.Text(get(c.balanceCurrency)),
			"betrag":                 normalize.Text(get(c.amount)),
			"betragWaehrung":         normalize.Text(get(c.amountCurrency)),
		},
	}
	if valueDate, ok := normalize.GermanDate(get(c.value)); ok {
		row.ValueDate = &valueDate
	}
	balanceFallback := normalize.Currency(get(c.balanceCurrency), "EUR")
	if balance, ok := normalize.GermanMoney(get(c.balance), balanceFallback); ok {
		row.BalanceAfterCents = &balance.Cents
		row.BalanceCurrency = &balance.Currency
	}
	return row, true
}

// decodeLatin1Fallback returns data as text, decoding Windows-1252 when the bytes are not UTF-8.
func decodeLatin1Fallback(data []byte) []byte {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return data
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return data
	}
	return decoded
}

// readSemicolonRecords splits the file into records and remembers the physical
// line each record starts on. A line that leaves a quote open is joined with
// the following lines until the quote closes. Joining stops at the next booking
// line, so a stray quote costs at most its own row.
func readSemicolonRecords(text string) ([][]string, []int) {
	physical := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	var (
		records [][]string
		lines   []int
	)
	for i := 0; i < len(physical); i++ {
		record, last := physical[i], i
		if quoteOpen(record) {
			joined := record
			for j := i + 1; j < len(physical) && !bookingLineRe.MatchString(physical[j]); j++ {
				joined += "\n" + physical[j]
				if !quoteOpen(joined) {
					record, last = joined, j
					break
				}
			}
		}
		records = append(records, splitSemicolonLine(record))
		lines = append(lines, i+1)
		i = last
	}
	return records, lines
}

var bookingLineRe = regexp.MustCompile(`^\s*\d{2}\.\d{2}\.\d{4};`)

func quoteOpen(s string) bool {
	return strings.Count(s, `"`)%2 == 1
}

// splitSemicolonLine splits one record on semicolons outside quotes. A doubled
// quote inside quotes is a literal quote; any other quote toggles quoting.
func splitSemicolonLine(record string) []string {
	var (
		fields   []string
		current  strings.Builder
		inQuotes bool
	)
	for i := 0; i < len(record); i++ {
		ch := record[i]
		switch {
		case ch == '"' && inQuotes && i+1 < len(record) && record[i+1] == '"':
			current.WriteByte('"')
			i++
		case ch == '"':
			inQuotes = !inQuotes
		case ch == ';' && !inQuotes:
			fields = append(fields, current.String())
			current.Reset()
		default:
			current.WriteByte(ch)
		}
	}
	return append(fields, current.String())
}
