package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"po-notifier-go/internal/config"
	"po-notifier-go/internal/mapper"
	"po-notifier-go/internal/model"
	"po-notifier-go/internal/ratelimit"
	"po-notifier-go/internal/sheet"
)

const scanBatch = 100

// scan calls fn for every data row of sheetName, reading in batches
func (p *Processor) scan(ctx context.Context, sheetName string, fn func(row int, values []string) error) error {
	lastRow, _, err := p.wb.Size(ctx, sheetName)
	if err != nil {
		return err
	}
	for start := 2; start <= lastRow; start += scanBatch {
		n := scanBatch
		if start+n-1 > lastRow {
			n = lastRow - start + 1
		}
		rows, err := p.wb.Read(ctx, sheetName, start, n)
		if err != nil {
			return err
		}
		for i, values := range rows {
			if err := fn(start+i, values); err != nil {
				return err
			}
		}
	}
	return nil
}

// SweepOptions alter a SweepPending call
type SweepOptions struct {
	// RetryFailed also picks up rows whose Notified cell holds an error
	// marker. Only an explicit operator request sets it.
	RetryFailed bool
}

// SweepPending processes every row whose status is affirmative and whose
// Notified cell is empty. Rows marked with an earlier error are left alone
// unless opts.RetryFailed is set.
func (p *Processor) SweepPending(ctx context.Context, opts SweepOptions) ([]Result, error) {
	if p.metrics != nil {
		p.metrics.SweepRuns.Inc()
	}

	primary, err := p.PrimarySheet(ctx)
	if err != nil {
		return nil, err
	}
	m, _, err := p.mapping(ctx, primary)
	if err != nil {
		return nil, err
	}

	var pending []int
	err = p.scan(ctx, primary, func(row int, values []string) error {
		if !p.validator.IsAffirmative(sheet.Cell(values, m.Ordered)) {
			return nil
		}
		notified := strings.TrimSpace(sheet.Cell(values, m.Notified))
		if m.Notified == 0 || notified == "" || (opts.RetryFailed && isErrorMarker(notified)) {
			pending = append(pending, row)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %q: %w", primary, err)
	}

	if p.metrics != nil {
		p.metrics.PendingRows.Set(float64(len(pending)))
	}
	logrus.WithFields(logrus.Fields{"sheet": primary, "retry_failed": opts.RetryFailed}).
		Infof("Sweep found %d pending rows", len(pending))

	results := make([]Result, 0, len(pending))
	for _, row := range pending {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, p.ProcessRow(ctx, primary, row, Options{}))
	}
	return results, nil
}

// IntegrityReport summarizes AuditIntegrity
type IntegrityReport struct {
	Sheet       string   `json:"sheet"`
	RowsScanned int      `json:"rows_scanned"`
	Issues      []string `json:"issues"`
	Fixes       int      `json:"fixes"`
}

// AuditIntegrity reports inconsistent rows of the primary sheet and
// normalizes email casing in place.
func (p *Processor) AuditIntegrity(ctx context.Context) (*IntegrityReport, error) {
	release, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	primary, err := mapper.SelectPrimarySheet(ctx, p.wb, p.cfg.Sheets.Primary)
	if err != nil {
		return nil, err
	}
	header, err := sheet.Header(ctx, p.wb, primary)
	if err != nil {
		return nil, err
	}
	m := mapper.ResolveMapping(header, p.table)
	if m == nil {
		return nil, ErrMappingNotFound
	}

	report := &IntegrityReport{Sheet: primary, Issues: []string{}}
	err = p.scan(ctx, primary, func(row int, values []string) error {
		report.RowsScanned++
		rec := p.validator.Record(row, values, m)

		raw := strings.TrimSpace(sheet.Cell(values, m.Email))
		if raw != "" && rec.Email == "" {
			report.Issues = append(report.Issues, fmt.Sprintf("Row %d: Invalid email format - %s", row, raw))
		}
		if m.Ordered > 0 && p.validator.IsAffirmative(sheet.Cell(values, m.Ordered)) && rec.PO == "" {
			report.Issues = append(report.Issues, fmt.Sprintf("Row %d: Order marked as placed but no PO number", row))
		}
		if rec.MessageKey != "" && rec.Notified == "" {
			report.Issues = append(report.Issues, fmt.Sprintf("Row %d: Has MessageKey but no notification timestamp", row))
		}

		if m.Email > 0 && rec.Email != "" && sheet.Cell(values, m.Email) != rec.Email {
			if err := p.wb.WriteCell(ctx, primary, row, m.Email, rec.Email); err != nil {
				return err
			}
			report.Fixes++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("integrity audit failed: %w", err)
	}

	logrus.WithField("sheet", primary).Infof("Audit complete - Found %d issues, made %d automatic fixes",
		len(report.Issues), report.Fixes)
	return report, nil
}

// StatusReport describes the current configuration as seen by the pipeline
type StatusReport struct {
	PrimarySheet    string            `json:"primary_sheet"`
	Mapping         *model.Mapping    `json:"mapping,omitempty"`
	MissingRequired bool              `json:"missing_required"`
	LogoStrategy    string            `json:"logo_strategy"`
	RateLimit       *ratelimit.Status `json:"rate_limit"`
	LockBusy        bool              `json:"lock_busy"`
}

// Status reports the detected sheet, its mapping and quota usage
func (p *Processor) Status(ctx context.Context) (*StatusReport, error) {
	primary, err := mapper.SelectPrimarySheet(ctx, p.wb, p.cfg.Sheets.Primary)
	if err != nil {
		return nil, err
	}
	report := &StatusReport{
		PrimarySheet: primary,
		LogoStrategy: p.session.Branding(p.cfg.Branding).Strategy,
	}
	if primary != "" {
		header, err := sheet.Header(ctx, p.wb, primary)
		if err != nil {
			return nil, err
		}
		report.Mapping = mapper.ResolveMapping(header, p.table)
	}
	report.MissingRequired = report.Mapping == nil || !report.Mapping.HasRequired()

	if report.RateLimit, err = p.limiter.Status(ctx, p.now()); err != nil {
		return nil, err
	}
	if release, ok := p.lock.TryAcquire(ctx); ok {
		release()
	} else {
		report.LockBusy = true
	}
	return report, nil
}

// RateStatus reports quota usage
func (p *Processor) RateStatus(ctx context.Context) (*ratelimit.Status, error) {
	return p.limiter.Status(ctx, p.now())
}

// ResetRateLimit clears the rate event log under the document lock
func (p *Processor) ResetRateLimit(ctx context.Context) (int, error) {
	release, err := p.acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer release()
	return p.limiter.Reset(ctx)
}

// PrimarySheet returns the sheet holding the order rows
func (p *Processor) PrimarySheet(ctx context.Context) (string, error) {
	primary, err := mapper.SelectPrimarySheet(ctx, p.wb, p.cfg.Sheets.Primary)
	if err != nil {
		return "", err
	}
	if primary == "" {
		return "", fmt.Errorf("no sheets in workbook")
	}
	return primary, nil
}

// Session returns the runtime overrides applied to each invocation
func (p *Processor) Session() *config.Session {
	return p.session
}
