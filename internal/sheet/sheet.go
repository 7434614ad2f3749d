// Package sheet exposes the spreadsheet as a small tabular-store capability.
// Rows and columns are 1-based, matching what users see in the sheet UI.
package sheet

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a named sheet does not exist
var ErrNotFound = errors.New("sheet not found")

// Workbook is the tabular store consumed by the notification pipeline
type Workbook interface {
	// SheetNames lists sheets in workbook order.
	SheetNames(ctx context.Context) ([]string, error)
	// Size returns the last row and last column holding data.
	Size(ctx context.Context, name string) (rows, cols int, err error)
	// Read returns up to numRows rows starting at startRow. Rows may be
	// shorter than the sheet width when trailing cells are empty.
	Read(ctx context.Context, name string, startRow, numRows int) ([][]string, error)
	WriteRow(ctx context.Context, name string, row int, values []string) error
	WriteCell(ctx context.Context, name string, row, col int, value string) error
	AppendRow(ctx context.Context, name string, values []string) error
	DeleteRows(ctx context.Context, name string, startRow, count int) error
	CreateSheet(ctx context.Context, name string) error
}

// Cell returns the 1-based col of values, or "" when out of range
func Cell(values []string, col int) string {
	if col < 1 || col > len(values) {
		return ""
	}
	return values[col-1]
}

// Header reads the first row of a sheet
func Header(ctx context.Context, wb Workbook, name string) ([]string, error) {
	rows, err := wb.Read(ctx, name, 1, 1)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Exists reports whether name is a sheet of wb
func Exists(ctx context.Context, wb Workbook, name string) (bool, error) {
	names, err := wb.SheetNames(ctx)
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// Ensure creates name with the given header row when it does not exist yet.
// It reports whether the sheet was created.
func Ensure(ctx context.Context, wb Workbook, name string, header []string) (bool, error) {
	ok, err := Exists(ctx, wb, name)
	if err != nil {
		return false, err
	}
	if ok {
		return false, nil
	}
	if err := wb.CreateSheet(ctx, name); err != nil {
		return false, fmt.Errorf("failed to create sheet %q: %w", name, err)
	}
	if err := wb.WriteRow(ctx, name, 1, header); err != nil {
		return false, fmt.Errorf("failed to write header of %q: %w", name, err)
	}
	return true, nil
}

// Trim deletes the oldest data rows of name so that at most max remain
// below the header. It returns the number of rows deleted.
func Trim(ctx context.Context, wb Workbook, name string, max int) (int, error) {
	rows, _, err := wb.Size(ctx, name)
	if err != nil {
		return 0, err
	}
	excess := rows - 1 - max
	if excess <= 0 {
		return 0, nil
	}
	if err := wb.DeleteRows(ctx, name, 2, excess); err != nil {
		return 0, fmt.Errorf("failed to trim %q: %w", name, err)
	}
	return excess, nil
}
