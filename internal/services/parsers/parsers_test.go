package parsers

import (
	"fmt"
	"testing"

	"statement-reconciliation-backend/internal/apperror"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

const ingSample = "Umsatzanzeige;Datei erstellt am: 15.02.2026 09:12\n" +
	"\n" +
	"IBAN;DE12 5001 0517 0000 0000 00\n" +
	"Kontoname;Girokonto\n" +
	"Zeitraum;01.02.2026 - 15.02.2026\n" +
	"Saldo;2.514,33;EUR\n" +
	"\n" +
	"Buchung;Wertstellungsdatum;Auftraggeber/Empfänger;Buchungstext;Verwendungszweck;Saldo;Währung;Betrag;Währung\n" +
	"14.02.2026;14.02.2026;REWE Markt GmbH;Lastschrift;\"Erste Zeile\nzweite Zeile; mit Semikolon und \"\"Zitat\"\"\";2.514,33;EUR;-140,47;EUR\n" +
	"13.02.2026;13.02.2026;Arbeitgeber AG;Gehalt/Rente;Gehalt Februar;2.654,80;EUR;3.250,00;EUR\n" +
	"kein Datum;13.02.2026;Kaputt;Lastschrift;x;0,00;EUR;-1,00;EUR\n" +
	";;;;;;;;\n"

func TestIngCSVParse(t *testing.T) {
	parsed, err := IngCSV{}.Parse("Umsatzanzeige.csv", []byte(ingSample))
	require.NoError(t, err)
	require.Len(t, parsed.Rows, 2)
	require.Equal(t, Meta{Preset: PresetIngCSV, FileType: FileTypeCSV, TotalRows: 2}, parsed.Meta)

	first := parsed.Rows[0]
	require.Equal(t, "2026-02-14", first.BookingDate)
	require.Equal(t, "2026-02-14", *first.ValueDate)
	require.Equal(t, int64(-14047), first.AmountCents)
	require.Equal(t, "EUR", first.Currency)
	require.Equal(t, "REWE Markt GmbH", *first.Counterparty)
	require.Equal(t, "Lastschrift", *first.BookingText)
	require.Equal(t, `Erste Zeile zweite Zeile; mit Semikolon und "Zitat"`, *first.Purpose)
	require.Equal(t, int64(251433), *first.BalanceAfterCents)
	require.Equal(t, "EUR", *first.BalanceCurrency)
	require.Equal(t, StatusBooked, first.Status)
	require.Nil(t, first.ExternalID)
	require.Nil(t, first.Description)
	require.Equal(t, "-140,47", *first.RawData["betrag"])

	require.Equal(t, int64(325000), parsed.Rows[1].AmountCents)

	require.Len(t, parsed.Warnings, 1)
	require.Equal(t, "Zeile 12 konnte nicht importiert werden und wurde übersprungen.", parsed.Warnings[0])
}

func TestIngCSVStrayQuoteSkipsOnlyItsRow(t *testing.T) {
	data := "Buchung;Wertstellungsdatum;Auftraggeber/Empfänger;Buchungstext;Verwendungszweck;Saldo;Währung;Betrag;Währung\n" +
		"03.02.2026;03.02.2026;\"Spende\" Verein;Gutschrift;Spende;100,00;EUR;50,00;EUR\n" +
		"04.02.2026;04.02.2026;Bäckerei \"Korn;Lastschrift;Brot;95,00;EUR;-5,00;EUR\n" +
		"05.02.2026;05.02.2026;Stadtwerke;Lastschrift;Strom;10,00;EUR;-85,00;EUR\n" +
		"06.02.2026;06.02.2026;Arbeitgeber AG;Gehalt/Rente;Gehalt;3.260,00;EUR;3.250,00;EUR\n"

	parsed, err := IngCSV{}.Parse("export.csv", []byte(data))
	require.NoError(t, err)
	require.Len(t, parsed.Rows, 3)

	require.Equal(t, "Spende Verein", *parsed.Rows[0].Counterparty)
	require.Equal(t, int64(5000), parsed.Rows[0].AmountCents)
	require.Equal(t, "Stadtwerke", *parsed.Rows[1].Counterparty)
	require.Equal(t, int64(325000), parsed.Rows[2].AmountCents)

	require.Equal(t, []string{"Zeile 3 konnte nicht importiert werden und wurde übersprungen."}, parsed.Warnings)
}

func TestSplitSemicolonLine(t *testing.T) {
	require.Equal(t, []string{"a", "b;c", `d"e`, ""}, splitSemicolonLine(`a;"b;c";"d""e";`))
	require.Equal(t, []string{"Spende Verein", "x"}, splitSemicolonLine(`"Spende" Verein;x`))
	require.Equal(t, []string{""}, splitSemicolonLine(""))
}

func TestIngCSVLatin1(t *testing.T) {
	encoded, err := charmap.Windows1252.NewEncoder().String(ingSample)
	require.NoError(t, err)

	parsed, err := IngCSV{}.Parse("export.CSV", []byte(encoded))
	require.NoError(t, err)
	require.Len(t, parsed.Rows, 2)
	require.Equal(t, int64(-14047), parsed.Rows[0].AmountCents)
}

func TestIngCSVDeterministic(t *testing.T) {
	a, err := IngCSV{}.Parse("a.csv", []byte(ingSample))
	require.NoError(t, err)
	b, err := IngCSV{}.Parse("a.csv", []byte(ingSample))
	require.NoError(t, err)
	require.Equal(t, a.Rows, b.Rows)
}

func TestIngCSVRejectsWrongExtension(t *testing.T) {
	_, err := IngCSV{}.Parse("export.xlsx", []byte(ingSample))
	require.True(t, apperror.IsKind(err, apperror.KindValidation))
}

func TestIngCSVMissingHeader(t *testing.T) {
	_, err := IngCSV{}.Parse("export.csv", []byte("Buchung;Betrag\n01.01.2026;1,00\n"))
	require.True(t, apperror.IsKind(err, apperror.KindValidation))
	require.Contains(t, err.Error(), "Kopfzeile nicht gefunden")
}

var easybankHeader = []any{
	"Referenznummer", "Buchungsdatum", "Buchungsdatum", "Betrag", "Beschreibung", "Typ", "Status",
	"Kartennummer", "Originalbetrag", "Mögliche Zahlpläne", "Land", "Karteninhaber", "Kartennetzwerk",
	"Kontaktlose Bezahlung", "Details",
}

func buildEasybankXLSX(t *testing.T, dataRows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	line := 1
	for i := 0; i < 12; i++ {
		row := []any{fmt.Sprintf("Metadaten %d", i+1), "Wert"}
		require.NoError(t, f.SetSheetRow(sheet, fmt.Sprintf("A%d", line), &row))
		line++
	}
	require.NoError(t, f.SetSheetRow(sheet, fmt.Sprintf("A%d", line), &easybankHeader))
	line++
	for _, r := range dataRows {
		r := r
		require.NoError(t, f.SetSheetRow(sheet, fmt.Sprintf("A%d", line), &r))
		line++
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func easybankFixture(t *testing.T) []byte {
	return buildEasybankXLSX(t, [][]any{
		{"REF-20260214-001", "14.02.2026", "15.02.2026", "-45,23 €", "REWE Markt Wien", "Belastung", "abgerechnet",
			"**** **** **** 1234", "", "", "AT", "Anna Beispiel", "Mastercard", "Ja", "POS Zahlung Lebensmittel"},
		{"REF-20260213-002", "13.02.2026", "14.02.2026", "25,99 €", "NETFLIX.COM", "Belastung", "noch nicht abgerechnet",
			"**** **** **** 1234", "-27,99 USD", "", "US", "Anna Beispiel", "Mastercard", "Nein", "Abo"},
		{"REF-20260201-003", "01.02.2026", "01.02.2026", "+3.250,00 €", "Gehalt", "Gutschrift", "-",
			"", "", "", "AT", "Anna Beispiel", "", "", ""},
		{"REF-BROKEN", "irgendwann", "", "-1,00 €", "Kaputt", "Belastung", "abgerechnet"},
	})
}

func TestEasybankXLSXParse(t *testing.T) {
	parsed, err := EasybankXLSX{}.Parse("easybank.xlsx", easybankFixture(t))
	require.NoError(t, err)
	require.Len(t, parsed.Rows, 3)
	require.Equal(t, 3, parsed.Meta.TotalRows)
	require.Equal(t, FileTypeXLSX, parsed.Meta.FileType)

	rewe := parsed.Rows[0]
	require.Equal(t, "REF-20260214-001", *rewe.ExternalID)
	require.Equal(t, "2026-02-14", rewe.BookingDate)
	require.Equal(t, "2026-02-15", *rewe.ValueDate)
	require.Equal(t, int64(-4523), rewe.AmountCents)
	require.Equal(t, "EUR", rewe.Currency)
	require.Equal(t, "REWE Markt Wien", *rewe.Description)
	require.Equal(t, "Belastung", *rewe.BookingText)
	require.Equal(t, "POS Zahlung Lebensmittel", *rewe.Purpose)
	require.Equal(t, StatusBooked, rewe.Status)
	require.Equal(t, "1234", *rewe.CardLast4)
	require.Equal(t, "AT", *rewe.Country)
	require.Equal(t, "Anna Beispiel", *rewe.Cardholder)
	require.Nil(t, rewe.OriginalAmountCents)
	require.Nil(t, rewe.Counterparty)

	netflix := parsed.Rows[1]
	require.Equal(t, int64(-2599), netflix.AmountCents, "debit keyword forces a negative amount")
	require.Equal(t, StatusPending, netflix.Status)
	require.Equal(t, int64(-2799), *netflix.OriginalAmountCents)
	require.Equal(t, "USD", *netflix.OriginalCurrency)

	salary := parsed.Rows[2]
	require.Equal(t, int64(325000), salary.AmountCents)
	require.Equal(t, StatusBooked, salary.Status)
	require.Nil(t, salary.CardLast4)
	require.Nil(t, salary.Purpose)

	require.Equal(t, []string{"Zeile 17 konnte nicht importiert werden und wurde übersprungen."}, parsed.Warnings)
}

func TestEasybankCreditKeywordForcesPositive(t *testing.T) {
	data := buildEasybankXLSX(t, [][]any{
		{"REF-1", "02.02.2026", "", "-10,00 €", "Erstattung", "Gutschrift", "gebucht"},
	})
	parsed, err := EasybankXLSX{}.Parse("x.xlsx", data)
	require.NoError(t, err)
	require.Len(t, parsed.Rows, 1)
	require.Equal(t, int64(1000), parsed.Rows[0].AmountCents)
	require.Nil(t, parsed.Rows[0].ValueDate)
}

func TestEasybankStatusVocabulary(t *testing.T) {
	require.Equal(t, StatusPending, easybankStatus("Vorgemerkt"))
	require.Equal(t, StatusPending, easybankStatus("noch nicht abgerechnet"))
	require.Equal(t, StatusBooked, easybankStatus(""))
	require.Equal(t, StatusBooked, easybankStatus("-"))
	require.Equal(t, StatusBooked, easybankStatus("Gebucht"))
	require.Equal(t, StatusUnknown, easybankStatus("storniert"))
}

func TestEasybankRejectsGarbage(t *testing.T) {
	_, err := EasybankXLSX{}.Parse("x.xlsx", []byte("not a zip"))
	require.True(t, apperror.IsKind(err, apperror.KindValidation))

	_, err = EasybankXLSX{}.Parse("x.csv", easybankFixture(t))
	require.True(t, apperror.IsKind(err, apperror.KindValidation))
}

func TestHeaderIndexDisambiguatesRepeatedLabels(t *testing.T) {
	h := BuildHeaderIndex([]string{"Referenznummer", " Buchungsdatum ", "BUCHUNGSDATUM", "Währung", "Waehrung"})
	require.Equal(t, 1, h.Column("Buchungsdatum", 0))
	require.Equal(t, 2, h.Column("buchungsdatum", 1))
	require.Equal(t, -1, h.Column("Buchungsdatum", 2))
	require.Equal(t, 3, h.Column("Wahrung", 0))
	require.Equal(t, -1, h.Column("Details", 0))
}

func TestLocateHeaderSkipsPreamble(t *testing.T) {
	rows := [][]string{
		{"Kontoauszug"},
		{"Typ", "Status"},
		{"Typ", "Status", "Betrag"},
	}
	at, err := LocateHeader(rows, []string{"typ", "betrag", "status"}, "Test")
	require.NoError(t, err)
	require.Equal(t, 2, at)
}

func TestLookup(t *testing.T) {
	p, err := Lookup(PresetEasybankXLSX)
	require.NoError(t, err)
	require.Equal(t, FileTypeXLSX, p.Descriptor().FileType)

	_, err = Lookup("mt940")
	require.True(t, apperror.IsKind(err, apperror.KindValidation))

	descs := Descriptors()
	require.Len(t, descs, 2)
	require.Equal(t, PresetEasybankXLSX, descs[0].Preset)
	require.True(t, descs[1].HasExtension("Umsatz.CSV"))
}
