// Package parsers turns vendor statement exports into normalized transaction rows.
package parsers

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"statement-reconciliation-backend/internal/apperror"
)

const (
	PresetIngCSV       = "ing_csv_v1"
	PresetEasybankXLSX = "easybank_xlsx_v1"

	FileTypeCSV  = "csv"
	FileTypeXLSX = "xlsx"

	StatusBooked  = "booked"
	StatusPending = "pending"
	StatusUnknown = "unknown"
)

// Row is one normalized statement line.
type Row struct {
	ExternalID          *string
	BookingDate         string
	ValueDate           *string
	AmountCents         int64
	Currency            string
	OriginalAmountCents *int64
	OriginalCurrency    *string
	Counterparty        *string
	BookingText         *string
	Description         *string
	Purpose             *string
	Status              string
	BalanceAfterCents   *int64
	BalanceCurrency     *string
	Country             *string
	CardLast4           *string
	Cardholder          *string
	RawData             map[string]*string
}

type Meta struct {
	Preset    string `json:"preset"`
	FileType  string `json:"fileType"`
	TotalRows int    `json:"totalRows"`
}

type ParsedFile struct {
	Rows     []Row
	Warnings []string
	Meta     Meta
}

// Descriptor describes an import type offered to users.
type Descriptor struct {
	Preset     string   `json:"preset"`
	Name       string   `json:"name"`
	FileType   string   `json:"fileType"`
	Extensions []string `json:"extensions"`
	MimeTypes  []string `json:"mimeTypes"`
}

type Parser interface {
	Descriptor() Descriptor
	Parse(fileName string, data []byte) (*ParsedFile, error)
}

var registry = map[string]Parser{
	PresetIngCSV:       IngCSV{},
	PresetEasybankXLSX: EasybankXLSX{},
}

// Lookup returns the parser registered for preset.
func Lookup(preset string) (Parser, error) {
	p, ok := registry[preset]
	if !ok {
		return nil, apperror.Validation(fmt.Sprintf("Import-Typ wird nicht unterstützt: %s", preset))
	}
	return p, nil
}

// Descriptors lists all registered import types ordered by preset.
func Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(registry))
	for _, p := range registry {
		out = append(out, p.Descriptor())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Preset < out[j].Preset })
	return out
}

// HasExtension reports whether fileName ends with one of d's extensions.
func (d Descriptor) HasExtension(fileName string) bool {
	ext := strings.ToLower(filepath.Ext(fileName))
	for _, e := range d.Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

func rowSkippedWarning(rowNumber int) string {
	return fmt.Sprintf("Zeile %d konnte nicht importiert werden und wurde übersprungen.", rowNumber)
}

func isBlankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func cellAt(cells []string, idx int) string {
	if idx < 0 || idx >= len(cells) {
		return ""
	}
	return cells[idx]
}
