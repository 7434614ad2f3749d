// Package audit keeps the append-only record of notification attempts.
package audit

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"po-notifier-go/internal/config"
	"po-notifier-go/internal/model"
	"po-notifier-go/internal/sheet"
)

// Recorder stores audit entries
type Recorder interface {
	Record(ctx context.Context, entry model.AuditEntry) error
}

// Header is the first row of the audit sheet
var Header = []string{"Timestamp", "Email", "PO Number", "Description", "Status", "Error Message", "MessageKey", "Version"}

// SheetLog appends audit entries to a capped sheet
type SheetLog struct {
	wb  sheet.Workbook
	cfg config.AuditConfig
}

var _ Recorder = (*SheetLog)(nil)

// NewSheetLog creates an audit log in the sheet named by cfg
func NewSheetLog(wb sheet.Workbook, cfg config.AuditConfig) *SheetLog {
	return &SheetLog{wb: wb, cfg: cfg}
}

// Record appends entry, creating the sheet on first use
func (l *SheetLog) Record(ctx context.Context, entry model.AuditEntry) error {
	created, err := sheet.Ensure(ctx, l.wb, l.cfg.SheetName, Header)
	if err != nil {
		return err
	}
	if created {
		logrus.Infof("Created audit sheet %q", l.cfg.SheetName)
	}

	row := []string{
		model.FormatTimestamp(entry.Timestamp),
		entry.Email,
		entry.PO,
		entry.Description,
		entry.Status,
		entry.ErrorMessage,
		entry.MessageKey,
		l.cfg.Version,
	}
	if err := l.wb.AppendRow(ctx, l.cfg.SheetName, row); err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	if l.cfg.MaxEntries > 0 {
		if _, err := sheet.Trim(ctx, l.wb, l.cfg.SheetName, l.cfg.MaxEntries); err != nil {
			logrus.Warnf("Failed to trim audit log: %v", err)
		}
	}
	return nil
}

// Recent returns up to limit of the newest entries, newest first
func (l *SheetLog) Recent(ctx context.Context, limit int) ([]model.AuditEntry, error) {
	ok, err := sheet.Exists(ctx, l.wb, l.cfg.SheetName)
	if err != nil || !ok {
		return nil, err
	}
	lastRow, _, err := l.wb.Size(ctx, l.cfg.SheetName)
	if err != nil {
		return nil, err
	}
	n := lastRow - 1
	if limit > 0 && n > limit {
		n = limit
	}
	if n <= 0 {
		return nil, nil
	}

	rows, err := l.wb.Read(ctx, l.cfg.SheetName, lastRow-n+1, n)
	if err != nil {
		return nil, err
	}
	entries := make([]model.AuditEntry, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		entries = append(entries, entryFromRow(rows[i]))
	}
	return entries, nil
}

// ByMessageKey returns up to limit of the newest entries for one order
// fingerprint, newest first
func (l *SheetLog) ByMessageKey(ctx context.Context, key string, limit int) ([]model.AuditEntry, error) {
	all, err := l.Recent(ctx, 0)
	if err != nil {
		return nil, err
	}
	var entries []model.AuditEntry
	for _, e := range all {
		if e.MessageKey != key {
			continue
		}
		entries = append(entries, e)
		if limit > 0 && len(entries) == limit {
			break
		}
	}
	return entries, nil
}

func entryFromRow(r []string) model.AuditEntry {
	ts, _ := model.ParseTimestamp(sheet.Cell(r, 1))
	return model.AuditEntry{
		Timestamp:    ts,
		Email:        sheet.Cell(r, 2),
		PO:           sheet.Cell(r, 3),
		Description:  sheet.Cell(r, 4),
		Status:       sheet.Cell(r, 5),
		ErrorMessage: sheet.Cell(r, 6),
		MessageKey:   sheet.Cell(r, 7),
	}
}

// Multi records to a primary recorder and best-effort mirrors
type Multi struct {
	primary Recorder
	mirrors []Recorder
}

var _ Recorder = (*Multi)(nil)

// NewMulti creates a recorder whose result is the primary's result. Mirror
// failures are logged only.
func NewMulti(primary Recorder, mirrors ...Recorder) *Multi {
	return &Multi{primary: primary, mirrors: mirrors}
}

// Record writes entry to every recorder
func (m *Multi) Record(ctx context.Context, entry model.AuditEntry) error {
	err := m.primary.Record(ctx, entry)
	for _, r := range m.mirrors {
		if merr := r.Record(ctx, entry); merr != nil {
			logrus.WithError(merr).Warn("Failed to mirror audit entry")
		}
	}
	return err
}
