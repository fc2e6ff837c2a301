// Package normalize turns raw statement cell text into canonical values.
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	germanDateRe  = regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})\.(\d{4})$`)
	germanMoneyRe = regexp.MustCompile(`^([+-])?\s*([\d.]+(?:,\d{1,2})?|\d+)(?:\s*(€|[A-Za-z]{3}))?$`)
	hundred       = decimal.NewFromInt(100)
)

// Money is a signed amount in minor units with its ISO currency code.
type Money struct {
	Cents    int64
	Currency string
}

// Text collapses whitespace runs and trims. Empty input yields nil.
func Text(raw string) *string {
	s := strings.Join(strings.Fields(raw), " ")
	if s == "" {
		return nil
	}
	return &s
}

// TextValue is Text without the pointer; absent becomes "".
func TextValue(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

// Currency maps € to EUR and uppercases codes, using fallback when raw is blank.
func Currency(raw, fallback string) string {
	s := TextValue(raw)
	if s == "" {
		return fallback
	}
	if s == "€" {
		return "EUR"
	}
	return strings.ToUpper(s)
}

// GermanDate converts D.M.YYYY to YYYY-MM-DD. Impossible calendar dates fail.
func GermanDate(raw string) (string, bool) {
	m := germanDateRe.FindStringSubmatch(TextValue(raw))
	if m == nil {
		return "", false
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	iso := fmt.Sprintf("%s-%02d-%02d", m[3], month, day)
	if _, err := time.Parse(time.DateOnly, iso); err != nil {
		return "", false
	}
	return iso, true
}

// GermanMoney parses amounts like "-1.234,56 €", "+3.250,00 EUR" or "-140,47".
func GermanMoney(raw, fallbackCurrency string) (Money, bool) {
	m := germanMoneyRe.FindStringSubmatch(TextValue(raw))
	if m == nil {
		return Money{}, false
	}

	numeric := strings.ReplaceAll(m[2], ".", "")
	numeric = strings.Replace(numeric, ",", ".", 1)
	value, err := decimal.NewFromString(numeric)
	if err != nil {
		return Money{}, false
	}

	cents := value.Mul(hundred).Round(0).IntPart()
	if m[1] == "-" {
		cents = -cents
	}
	return Money{Cents: cents, Currency: Currency(m[3], fallbackCurrency)}, true
}

// CardLast4 returns the final four digits of a masked card number.
func CardLast4(raw string) *string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
	if len(digits) < 4 {
		return nil
	}
	last := digits[len(digits)-4:]
	return &last
}

// MonthOf returns the YYYY-MM prefix of an ISO date.
func MonthOf(isoDate string) string {
	if len(isoDate) < 7 {
		return isoDate
	}
	return isoDate[:7]
}

// StripDiacritics decomposes s and drops combining marks, so "Empfänger" becomes "Empfanger".
func StripDiacritics(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Lower is TextValue lower-cased; used for canonical comparisons.
func Lower(raw string) string {
	return strings.ToLower(TextValue(raw))
}
