package matching

import (
	"math"
	"regexp"
	"strings"
	"time"

	"statement-reconciliation-backend/internal/models"
	"statement-reconciliation-backend/internal/services/normalize"
)

var (
	legalSuffixRe = regexp.MustCompile(`\b(gmbh|ag|kg|mbh|ug|eg|e\.k\.|ek|ev|e\.v\.)\b`)
	digitsRe      = regexp.MustCompile(`\d+`)
	nonLetterRe   = regexp.MustCompile(`[^a-z\s]`)
)

var stopWords = map[string]struct{}{
	"der": {}, "die": {}, "das": {}, "und": {}, "oder": {}, "the": {},
	"shop": {}, "markt": {}, "store": {}, "zahlung": {}, "lastschrift": {}, "sepa": {},
}

// NormalizeForMatching reduces free text to lowercase ASCII words without
// legal-form suffixes or digits.
func NormalizeForMatching(raw string) string {
	s := normalize.TextValue(raw)
	if s == "" {
		return ""
	}
	s = strings.ToLower(normalize.StripDiacritics(s))
	s = legalSuffixRe.ReplaceAllString(s, " ")
	s = digitsRe.ReplaceAllString(s, " ")
	s = nonLetterRe.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// MerchantFingerprint normalizes the first non-empty of counterparty,
// description, purpose and booking text.
func MerchantFingerprint(tx *models.BankTransaction) string {
	for _, v := range []*string{tx.Counterparty, tx.Description, tx.Purpose, tx.BookingText} {
		if v != nil && normalize.TextValue(*v) != "" {
			return NormalizeForMatching(*v)
		}
	}
	return ""
}

// TargetName is the normalized planned item name used in rule keys.
func TargetName(name string) string {
	return NormalizeForMatching(name)
}

func tokenize(raw string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range strings.Fields(NormalizeForMatching(raw)) {
		if len(tok) < 2 {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		out[tok] = struct{}{}
	}
	return out
}

// TokenOverlap scores shared tokens relative to the larger token set,
// scaled to maxScore.
func TokenOverlap(left, right string, maxScore int) int {
	l, r := tokenize(left), tokenize(right)
	if len(l) == 0 || len(r) == 0 {
		return 0
	}
	overlap := 0
	for tok := range l {
		if _, ok := r[tok]; ok {
			overlap++
		}
	}
	if overlap == 0 {
		return 0
	}
	denom := max(len(l), len(r))
	return int(math.Round(float64(maxScore) * float64(overlap) / float64(denom)))
}

// DirectionOf maps the amount sign to a direction. Zero has none.
func DirectionOf(amountCents int64) (string, bool) {
	switch {
	case amountCents > 0:
		return models.DirectionIncome, true
	case amountCents < 0:
		return models.DirectionExpense, true
	}
	return "", false
}

// DayDistance returns whole days between two ISO dates, or +Inf when either
// date does not parse.
func DayDistance(left, right string) float64 {
	l, err := time.Parse("2006-01-02", left)
	if err != nil {
		return math.Inf(1)
	}
	r, err := time.Parse("2006-01-02", right)
	if err != nil {
		return math.Inf(1)
	}
	return math.Floor(math.Abs(l.Sub(r).Hours()) / 24)
}
