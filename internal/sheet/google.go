package sheet

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"po-notifier-go/internal/gauth"
)

// Google is a Workbook backed by a Google Sheets spreadsheet
type Google struct {
	service       *sheets.Service
	spreadsheetID string
	retry         *gauth.Retrier
}

var _ Workbook = (*Google)(nil)

// NewGoogle creates a Sheets v4 client for spreadsheetID
func NewGoogle(ctx context.Context, spreadsheetID string, opts ...option.ClientOption) (*Google, error) {
	service, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return &Google{service: service, spreadsheetID: spreadsheetID, retry: gauth.NewRetrier()}, nil
}

func (g *Google) properties(ctx context.Context) ([]*sheets.SheetProperties, error) {
	var ss *sheets.Spreadsheet
	err := g.retry.Do(ctx, "get spreadsheet", func() (err error) {
		ss, err = g.service.Spreadsheets.Get(g.spreadsheetID).
			Fields("sheets.properties").Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get spreadsheet: %w", err)
	}
	props := make([]*sheets.SheetProperties, 0, len(ss.Sheets))
	for _, s := range ss.Sheets {
		if s.Properties != nil {
			props = append(props, s.Properties)
		}
	}
	return props, nil
}

func (g *Google) sheetID(ctx context.Context, name string) (int64, error) {
	props, err := g.properties(ctx)
	if err != nil {
		return 0, err
	}
	for _, p := range props {
		if p.Title == name {
			return p.SheetId, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// SheetNames lists sheet titles in tab order
func (g *Google) SheetNames(ctx context.Context) ([]string, error) {
	props, err := g.properties(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(props))
	for _, p := range props {
		names = append(names, p.Title)
	}
	return names, nil
}

// Size reports the last populated row of column A and the width of the
// header row. Every sheet this service writes fills column A on each row.
func (g *Google) Size(ctx context.Context, name string) (int, int, error) {
	var resp *sheets.BatchGetValuesResponse
	err := g.retry.Do(ctx, "size "+name, func() (err error) {
		resp, err = g.service.Spreadsheets.Values.BatchGet(g.spreadsheetID).
			Ranges(quote(name)+"!A:A", quote(name)+"!1:1").
			MajorDimension("ROWS").Context(ctx).Do()
		return err
	})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to size %q: %w", name, err)
	}
	if len(resp.ValueRanges) != 2 {
		return 0, 0, fmt.Errorf("failed to size %q: got %d ranges", name, len(resp.ValueRanges))
	}
	rows := len(resp.ValueRanges[0].Values)
	cols := 0
	if header := resp.ValueRanges[1].Values; len(header) > 0 {
		cols = len(header[0])
	}
	if cols > 0 && rows == 0 {
		rows = 1
	}
	return rows, cols, nil
}

// Read returns formatted cell values for the given rows
func (g *Google) Read(ctx context.Context, name string, startRow, numRows int) ([][]string, error) {
	if startRow < 1 || numRows < 1 {
		return nil, nil
	}
	rng := fmt.Sprintf("%s!%d:%d", quote(name), startRow, startRow+numRows-1)
	var resp *sheets.ValueRange
	err := g.retry.Do(ctx, "read "+rng, func() (err error) {
		resp, err = g.service.Spreadsheets.Values.Get(g.spreadsheetID, rng).
			MajorDimension("ROWS").Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", rng, err)
	}
	out := make([][]string, len(resp.Values))
	for i, r := range resp.Values {
		row := make([]string, len(r))
		for j, v := range r {
			row[j] = fmt.Sprint(v)
		}
		out[i] = row
	}
	return out, nil
}

// WriteRow overwrites values starting at column A of row
func (g *Google) WriteRow(ctx context.Context, name string, row int, values []string) error {
	rng := fmt.Sprintf("%s!A%d", quote(name), row)
	if err := g.update(ctx, rng, values); err != nil {
		return fmt.Errorf("failed to write %s: %w", rng, err)
	}
	return nil
}

// WriteCell sets a single cell
func (g *Google) WriteCell(ctx context.Context, name string, row, col int, value string) error {
	rng := fmt.Sprintf("%s!%s%d", quote(name), ColumnLetter(col), row)
	if err := g.update(ctx, rng, []string{value}); err != nil {
		return fmt.Errorf("failed to write %s: %w", rng, err)
	}
	return nil
}

func (g *Google) update(ctx context.Context, rng string, values []string) error {
	return g.retry.Do(ctx, "write "+rng, func() error {
		_, err := g.service.Spreadsheets.Values.Update(g.spreadsheetID, rng, valueRange(values)).
			ValueInputOption("RAW").Context(ctx).Do()
		return err
	})
}

// AppendRow appends values after the last row of the sheet's table
func (g *Google) AppendRow(ctx context.Context, name string, values []string) error {
	err := g.retry.Do(ctx, "append "+name, func() error {
		_, err := g.service.Spreadsheets.Values.Append(g.spreadsheetID, quote(name), valueRange(values)).
			ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to append to %q: %w", name, err)
	}
	return nil
}

// DeleteRows removes count rows starting at startRow
func (g *Google) DeleteRows(ctx context.Context, name string, startRow, count int) error {
	id, err := g.sheetID(ctx, name)
	if err != nil {
		return err
	}
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			DeleteDimension: &sheets.DeleteDimensionRequest{
				Range: &sheets.DimensionRange{
					SheetId:         id,
					Dimension:       "ROWS",
					StartIndex:      int64(startRow - 1),
					EndIndex:        int64(startRow - 1 + count),
					ForceSendFields: []string{"SheetId", "StartIndex"},
				},
			},
		}},
	}
	if err := g.batchUpdate(ctx, req); err != nil {
		return fmt.Errorf("failed to delete rows of %q: %w", name, err)
	}
	return nil
}

// CreateSheet adds a new tab
func (g *Google) CreateSheet(ctx context.Context, name string) error {
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: name},
			},
		}},
	}
	if err := g.batchUpdate(ctx, req); err != nil {
		return fmt.Errorf("failed to create sheet %q: %w", name, err)
	}
	return nil
}

func (g *Google) batchUpdate(ctx context.Context, req *sheets.BatchUpdateSpreadsheetRequest) error {
	return g.retry.Do(ctx, "batch update", func() error {
		_, err := g.service.Spreadsheets.BatchUpdate(g.spreadsheetID, req).Context(ctx).Do()
		return err
	})
}

func valueRange(values []string) *sheets.ValueRange {
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	return &sheets.ValueRange{Values: [][]interface{}{row}}
}

// quote wraps a sheet title for use in A1 notation
func quote(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// ColumnLetter converts a 1-based column index to A1 letters
func ColumnLetter(col int) string {
	var b []byte
	for col > 0 {
		col--
		b = append([]byte{byte('A' + col%26)}, b...)
		col /= 26
	}
	return string(b)
}
