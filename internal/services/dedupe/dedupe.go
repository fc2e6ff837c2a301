// Package dedupe computes content keys for statement rows.
package dedupe

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"statement-reconciliation-backend/internal/services/normalize"
	"statement-reconciliation-backend/internal/services/parsers"
)

// KeyedRow is a parsed row together with its dedupe key.
type KeyedRow struct {
	parsers.Row
	DedupeKey string
}

// Key returns the hex SHA-256 identifying the real-world transaction behind row.
// A vendor reference wins; otherwise every canonical field takes part.
func Key(row parsers.Row) string {
	if row.ExternalID != nil {
		if id := normalize.TextValue(*row.ExternalID); id != "" {
			return digest("external:" + strings.ToLower(id))
		}
	}

	parts := []string{
		row.BookingDate,
		str(row.ValueDate),
		strconv.FormatInt(row.AmountCents, 10),
		row.Currency,
		int64Str(row.BalanceAfterCents),
		str(row.BalanceCurrency),
		canonical(row.Counterparty),
		canonical(row.BookingText),
		canonical(row.Description),
		canonical(row.Purpose),
		canonical(row.Country),
		canonical(row.CardLast4),
		canonical(row.Cardholder),
	}
	return digest(strings.Join(parts, "|"))
}

// InFile keys rows in order and drops repeats, keeping the first occurrence.
func InFile(rows []parsers.Row) ([]KeyedRow, int) {
	seen := make(map[string]struct{}, len(rows))
	unique := make([]KeyedRow, 0, len(rows))
	duplicates := 0
	for _, r := range rows {
		key := Key(r)
		if _, ok := seen[key]; ok {
			duplicates++
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, KeyedRow{Row: r, DedupeKey: key})
	}
	return unique, duplicates
}

// FileSHA256 hashes the raw upload for import bookkeeping.
func FileSHA256(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func digest(s string) string {
	return FileSHA256([]byte(s))
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func int64Str(p *int64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatInt(*p, 10)
}

func canonical(p *string) string {
	if p == nil {
		return ""
	}
	return normalize.Lower(*p)
}
