package repository

import (
	"errors"
	"fmt"
	"strings"

	"statement-reconciliation-backend/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("record not found")

const pgUniqueViolation = "23505"

// constraintColumns maps unique index names to the column they protect.
var constraintColumns = map[string]string{
	models.IndexReconciliationBank:    "bank_transaction_id",
	models.IndexReconciliationPlanned: "planned_transaction_id",
	"uq_dismissal_bank_tx":            "bank_transaction_id",
}

// UniqueViolation reports an insert rejected by a unique constraint.
// Column is empty when the driver does not say which constraint fired.
type UniqueViolation struct {
	Constraint string
	Column     string
	Err        error
}

func (e *UniqueViolation) Error() string {
	return fmt.Sprintf("unique violation (constraint=%q column=%q): %v", e.Constraint, e.Column, e.Err)
}

func (e *UniqueViolation) Unwrap() error { return e.Err }

// IsUniqueViolation reports whether err is a unique violation, optionally on column.
func IsUniqueViolation(err error, column string) bool {
	var uv *UniqueViolation
	if !errors.As(err, &uv) {
		return false
	}
	return column == "" || uv.Column == "" || uv.Column == column
}

// classify translates driver errors into ErrNotFound and *UniqueViolation.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return &UniqueViolation{
			Constraint: pgErr.ConstraintName,
			Column:     constraintColumns[pgErr.ConstraintName],
			Err:        err,
		}
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) && liteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return &UniqueViolation{Column: sqliteColumn(liteErr.Error()), Err: err}
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return &UniqueViolation{Err: err}
	}
	return err
}

// sqliteColumn extracts "col" from "UNIQUE constraint failed: table.col".
// Composite keys yield an empty column.
func sqliteColumn(msg string) string {
	_, cols, ok := strings.Cut(msg, "UNIQUE constraint failed: ")
	if !ok || strings.Contains(cols, ",") {
		return ""
	}
	if _, col, ok := strings.Cut(cols, "."); ok {
		return strings.TrimSpace(col)
	}
	return strings.TrimSpace(cols)
}
