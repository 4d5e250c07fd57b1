package services

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// The import pipeline distinguishes four error kinds:
//
//   - StructuralError: missing required columns, aborts the whole batch
//   - RowError (format): unparseable date or numeric cell, aborts one row
//   - ConstraintViolation: BASE sum over the ceiling; the row is persisted
//     anyway, flagged Invalido, so bad data stays visible for correction
//   - RowError (persistence): lookup/write failure, aborts one row
//
// Row-scoped errors are caught, counted and recorded as text by the batch
// loop; only structural errors propagate past it.

// StructuralError aborts a batch before any row is processed.
type StructuralError struct {
	Missing []string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("El archivo CSV no tiene las cabeceras requeridas. Faltan: %s",
		strings.Join(e.Missing, ", "))
}

// RowErrorKind classifies row-scoped failures.
type RowErrorKind int

const (
	RowFormat RowErrorKind = iota
	RowPersistence
)

// RowError is a failure scoped to a single record. It carries the structured
// fields (row number, column, raw value) and is only formatted to text at the
// reporting boundary.
type RowError struct {
	Kind   RowErrorKind
	Row    int
	Column string
	Value  string
	Msg    string
	Err    error
}

func (e *RowError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "error de fila"
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// newDateFormatError builds the row-level rejection for an unparseable date.
func newDateFormatError(row int, value, formatHint string) *RowError {
	return &RowError{
		Kind:   RowFormat,
		Row:    row,
		Column: "Fecha",
		Value:  value,
		Msg:    fmt.Sprintf("Formato de fecha inválido '%s'. Use %s.", value, formatHint),
	}
}

// newNumberFormatError builds the row-level rejection for an unparseable
// decimal cell.
func newNumberFormatError(row int, column, value string, err error) *RowError {
	return &RowError{
		Kind:   RowFormat,
		Row:    row,
		Column: column,
		Value:  value,
		Msg:    fmt.Sprintf("Valor numérico inválido '%s' en columna '%s'", value, column),
		Err:    err,
	}
}

// ConstraintViolation signals a BASE factor sum above the ceiling. It does
// not abort the row: ingestion persists the record in the Invalido state and
// embeds this message in the tax-detail description.
type ConstraintViolation struct {
	Sum decimal.Decimal
}

func (e *ConstraintViolation) Error() string {
	return fmt.Sprintf("Error: Suma de factores base (%s) > 1", e.Sum)
}
