package parsers

import (
	"fmt"
	"strings"

	"statement-reconciliation-backend/internal/apperror"
	"statement-reconciliation-backend/internal/services/normalize"
)

// HeaderKey canonicalises a column label: whitespace collapsed, lower-cased, diacritics removed.
func HeaderKey(label string) string {
	return strings.ToLower(normalize.StripDiacritics(normalize.TextValue(label)))
}

// HeaderIndex maps a header key to every column carrying it, in column order.
type HeaderIndex map[string][]int

func BuildHeaderIndex(cells []string) HeaderIndex {
	idx := make(HeaderIndex, len(cells))
	for i, c := range cells {
		key := HeaderKey(c)
		if key == "" {
			continue
		}
		idx[key] = append(idx[key], i)
	}
	return idx
}

// Column returns the position of the nth (0-based) column labelled name, or -1.
func (h HeaderIndex) Column(name string, nth int) int {
	cols := h[HeaderKey(name)]
	if nth < len(cols) {
		return cols[nth]
	}
	return -1
}

func (h HeaderIndex) Has(name string) bool {
	return len(h[HeaderKey(name)]) > 0
}

// LocateHeader returns the index of the first row containing all required labels.
func LocateHeader(rows [][]string, required []string, format string) (int, error) {
	for i, row := range rows {
		idx := BuildHeaderIndex(row)
		found := true
		for _, name := range required {
			if !idx.Has(name) {
				found = false
				break
			}
		}
		if found {
			return i, nil
		}
	}
	return -1, apperror.Validation(fmt.Sprintf(
		"%s konnte nicht gelesen werden: Kopfzeile nicht gefunden (erwartet: %s).",
		format, strings.Join(required, ", "),
	))
}
