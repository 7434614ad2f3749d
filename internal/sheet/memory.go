package sheet

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process Workbook used for tests and dry runs
type Memory struct {
	mu     sync.Mutex
	order  []string
	sheets map[string][][]string
}

var _ Workbook = (*Memory)(nil)

// NewMemory creates an empty workbook
func NewMemory() *Memory {
	return &Memory{sheets: make(map[string][][]string)}
}

// AddSheet creates or replaces a sheet with the given rows
func (m *Memory) AddSheet(name string, rows ...[]string) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sheets[name]; !ok {
		m.order = append(m.order, name)
	}
	m.sheets[name] = copyRows(rows)
	return m
}

// Rows returns a copy of every row of name
func (m *Memory) Rows(name string) [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyRows(m.sheets[name])
}

// SheetNames lists sheets in creation order
func (m *Memory) SheetNames(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.order...), nil
}

// Size returns the last non-empty row and the widest row
func (m *Memory) Size(ctx context.Context, name string) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, ok := m.sheets[name]
	if !ok {
		return 0, 0, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	last, cols := 0, 0
	for i, r := range rows {
		w := width(r)
		if w > 0 {
			last = i + 1
		}
		if w > cols {
			cols = w
		}
	}
	return last, cols, nil
}

// Read returns a copy of the requested rows
func (m *Memory) Read(ctx context.Context, name string, startRow, numRows int) ([][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, ok := m.sheets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if startRow < 1 || numRows < 1 || startRow > len(rows) {
		return nil, nil
	}
	end := startRow - 1 + numRows
	if end > len(rows) {
		end = len(rows)
	}
	return copyRows(rows[startRow-1 : end]), nil
}

// WriteRow overwrites row starting at column 1
func (m *Memory) WriteRow(ctx context.Context, name string, row int, values []string) error {
	for i, v := range values {
		if err := m.WriteCell(ctx, name, row, i+1, v); err != nil {
			return err
		}
	}
	return nil
}

// WriteCell sets one cell, growing the sheet as needed
func (m *Memory) WriteCell(ctx context.Context, name string, row, col int, value string) error {
	if row < 1 || col < 1 {
		return fmt.Errorf("invalid cell %d,%d", row, col)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, ok := m.sheets[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	for len(rows) < row {
		rows = append(rows, nil)
	}
	r := rows[row-1]
	for len(r) < col {
		r = append(r, "")
	}
	r[col-1] = value
	rows[row-1] = r
	m.sheets[name] = rows
	return nil
}

// AppendRow adds values after the last non-empty row
func (m *Memory) AppendRow(ctx context.Context, name string, values []string) error {
	last, _, err := m.Size(ctx, name)
	if err != nil {
		return err
	}
	return m.WriteRow(ctx, name, last+1, values)
}

// DeleteRows removes count rows starting at startRow, shifting the rest up
func (m *Memory) DeleteRows(ctx context.Context, name string, startRow, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, ok := m.sheets[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if startRow < 1 || count < 1 || startRow > len(rows) {
		return nil
	}
	end := startRow - 1 + count
	if end > len(rows) {
		end = len(rows)
	}
	m.sheets[name] = append(rows[:startRow-1], rows[end:]...)
	return nil
}

// CreateSheet adds an empty sheet
func (m *Memory) CreateSheet(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sheets[name]; ok {
		return fmt.Errorf("sheet %q already exists", name)
	}
	m.order = append(m.order, name)
	m.sheets[name] = nil
	return nil
}

func width(r []string) int {
	for i := len(r); i > 0; i-- {
		if r[i-1] != "" {
			return i
		}
	}
	return 0
}

func copyRows(rows [][]string) [][]string {
	if rows == nil {
		return nil
	}
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}
