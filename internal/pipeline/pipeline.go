// Package pipeline runs the per-row notification sequence: mapping,
// validation, duplicate suppression, rate limiting, sending and recording
// the result back into the sheet.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"po-notifier-go/internal/audit"
	"po-notifier-go/internal/config"
	"po-notifier-go/internal/dedup"
	"po-notifier-go/internal/lock"
	"po-notifier-go/internal/mapper"
	"po-notifier-go/internal/metrics"
	"po-notifier-go/internal/model"
	"po-notifier-go/internal/ratelimit"
	"po-notifier-go/internal/sheet"
	"po-notifier-go/internal/validator"
)

const (
	errorMarker    = "ERROR: "
	maxMarkerError = 100
)

// Sender delivers one confirmation
type Sender interface {
	Notify(ctx context.Context, r model.RowRecord, b config.BrandingConfig, now time.Time) error
}

// Options alter a single ProcessRow call
type Options struct {
	// AllowDuplicate skips duplicate suppression for a manual re-send.
	AllowDuplicate bool
}

// Result describes what happened to one row
type Result struct {
	InvocationID string  `json:"invocation_id"`
	Sheet        string  `json:"sheet,omitempty"`
	Row          int     `json:"row"`
	Outcome      Outcome `json:"outcome"`
	MessageKey   string  `json:"message_key,omitempty"`
	Error        string  `json:"error,omitempty"`
	Err          error   `json:"-"`
}

// Processor owns every collaborator of the notification pipeline
type Processor struct {
	cfg       *config.Config
	wb        sheet.Workbook
	table     mapper.Table
	validator *validator.Validator
	dedup     *dedup.Checker
	limiter   *ratelimit.Limiter
	sender    Sender
	audit     audit.Recorder
	lock      *lock.Document
	session   *config.Session
	metrics   *metrics.Metrics
	now       func() time.Time
}

// Option configures a Processor
type Option func(*Processor)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

// WithMetrics records pipeline metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Processor) { p.metrics = m }
}

// WithSession applies runtime overrides to each invocation
func WithSession(s *config.Session) Option {
	return func(p *Processor) { p.session = s }
}

// WithLock replaces the in-process document lock, typically with one
// shared by every process working on the spreadsheet
func WithLock(d *lock.Document) Option {
	return func(p *Processor) { p.lock = d }
}

// WithAudit replaces the default sheet audit log
func WithAudit(r audit.Recorder) Option {
	return func(p *Processor) { p.audit = r }
}

// New creates a processor working on wb
func New(cfg *config.Config, wb sheet.Workbook, sender Sender, opts ...Option) *Processor {
	p := &Processor{
		cfg:       cfg,
		wb:        wb,
		table:     mapper.FromConfig(cfg.Columns),
		validator: validator.New(cfg.Validation),
		dedup:     dedup.NewChecker(wb, cfg.Dedup.RetentionDays, cfg.Dedup.BatchSize),
		limiter:   ratelimit.New(wb, cfg.RateLimit),
		sender:    sender,
		audit:     audit.NewSheetLog(wb, cfg.Audit),
		lock:      lock.New(cfg.Pipeline.LockTimeout),
		session:   config.NewSession(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// HandleEdit reacts to a cell edit. It only acts on affirmative values
// entered in the order status column of the primary sheet, and never
// returns an error: the outcome is logged and reported in the Result.
func (p *Processor) HandleEdit(ctx context.Context, ev model.EditEvent) (res Result) {
	res = Result{InvocationID: uuid.NewString(), Sheet: ev.SheetName, Row: ev.Row, Outcome: OutcomeSkipped}
	defer func() {
		if r := recover(); r != nil {
			logrus.WithField("row", ev.Row).Errorf("Edit handler panic: %v", r)
			res.Outcome = OutcomeError
			res.Err = fmt.Errorf("panic: %v", r)
			res.Error = res.Err.Error()
		}
	}()

	if p.metrics != nil {
		p.metrics.EditEvents.Inc()
	}

	primary, err := mapper.SelectPrimarySheet(ctx, p.wb, p.cfg.Sheets.Primary)
	if err != nil {
		return p.finish(res, err)
	}
	if ev.SheetName != primary || ev.Row <= 1 {
		return res
	}

	header, err := sheet.Header(ctx, p.wb, primary)
	if err != nil {
		return p.finish(res, err)
	}
	m := mapper.ResolveMapping(header, p.table)
	if m == nil || !m.HasRequired() {
		logrus.WithField("sheet", primary).Warn("Edit ignored: required columns not found")
		return p.finish(res, ErrMappingNotFound)
	}
	if ev.Column != m.Ordered || !p.validator.IsAffirmative(ev.Value) {
		return res
	}

	logrus.WithFields(logrus.Fields{"sheet": primary, "row": ev.Row}).Info("Order marked as placed")
	out := p.ProcessRow(ctx, primary, ev.Row, Options{})
	out.InvocationID = res.InvocationID
	return out
}

// ProcessRow runs the full pipeline for one row under the document lock
func (p *Processor) ProcessRow(ctx context.Context, sheetName string, row int, opts Options) (res Result) {
	res = Result{InvocationID: uuid.NewString(), Sheet: sheetName, Row: row}
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logrus.WithField("row", row).Errorf("Row processing panic: %v", r)
			res = p.finish(res, fmt.Errorf("panic: %v", r))
		}
		if p.metrics != nil {
			p.metrics.ProcessingTime.Observe(time.Since(start).Seconds())
		}
	}()

	release, err := p.acquire(ctx)
	if err != nil {
		return p.finish(res, err)
	}
	defer release()

	key, err := p.process(ctx, sheetName, row, opts, res.InvocationID)
	res.MessageKey = key
	return p.finish(res, err)
}

func (p *Processor) acquire(ctx context.Context) (func(), error) {
	waitStart := time.Now()
	release, err := p.lock.Acquire(ctx)
	if p.metrics != nil {
		p.metrics.LockWaitTime.Observe(time.Since(waitStart).Seconds())
	}
	return release, err
}

func (p *Processor) finish(res Result, err error) Result {
	res.Outcome = Classify(err)
	if err != nil {
		res.Err = err
		res.Error = err.Error()
	}

	fields := logrus.Fields{"sheet": res.Sheet, "row": res.Row, "invocation_id": res.InvocationID, "outcome": res.Outcome}
	switch res.Outcome {
	case OutcomeSent:
		logrus.WithFields(fields).Info("Notification sent")
	case OutcomeAlreadyNotified, OutcomeDuplicate:
		logrus.WithFields(fields).Info(res.Error)
	default:
		logrus.WithFields(fields).Error(res.Error)
	}

	if p.metrics != nil {
		p.metrics.Outcomes.WithLabelValues(string(res.Outcome)).Inc()
		switch res.Outcome {
		case OutcomeSent:
			p.metrics.NotifySuccesses.Inc()
		case OutcomeAlreadyNotified, OutcomeDuplicate, OutcomeSkipped:
		default:
			p.metrics.NotifyFailures.Inc()
		}
	}
	return res
}

// mapping resolves the header of sheetName, failing when the required
// columns are absent.
func (p *Processor) mapping(ctx context.Context, sheetName string) (*model.Mapping, []string, error) {
	header, err := sheet.Header(ctx, p.wb, sheetName)
	if err != nil {
		return nil, nil, err
	}
	m := mapper.ResolveMapping(header, p.table)
	if m == nil || !m.HasRequired() {
		return nil, nil, ErrMappingNotFound
	}
	return m, header, nil
}

// ensureHelperColumns appends the tracking columns to the header row when
// they are missing and returns the recomputed mapping.
func (p *Processor) ensureHelperColumns(ctx context.Context, sheetName string, m *model.Mapping, header []string) (*model.Mapping, error) {
	if m.HasHelpers() {
		return m, nil
	}

	_, cols, err := p.wb.Size(ctx, sheetName)
	if err != nil {
		return nil, err
	}
	updated := make([]string, cols)
	copy(updated, header)
	if m.Notified == 0 {
		updated = append(updated, p.table.Notified)
	}
	if m.MessageKey == 0 {
		updated = append(updated, p.table.MessageKey)
	}
	if err := p.wb.WriteRow(ctx, sheetName, 1, updated); err != nil {
		return nil, fmt.Errorf("failed to add helper columns: %w", err)
	}
	logrus.WithField("sheet", sheetName).Info("Added helper columns to sheet")

	m, _, err = p.mapping(ctx, sheetName)
	if err != nil {
		return nil, err
	}
	if !m.HasHelpers() {
		return nil, fmt.Errorf("helper columns not found after update")
	}
	return m, nil
}

func isErrorMarker(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), strings.TrimSpace(errorMarker))
}

func (p *Processor) process(ctx context.Context, sheetName string, row int, opts Options, invocationID string) (string, error) {
	if row < 2 {
		return "", fmt.Errorf("invalid row %d", row)
	}

	m, header, err := p.mapping(ctx, sheetName)
	if err != nil {
		return "", err
	}
	if m, err = p.ensureHelperColumns(ctx, sheetName, m, header); err != nil {
		return "", err
	}

	rows, err := p.wb.Read(ctx, sheetName, row, 1)
	if err != nil {
		return "", err
	}
	var values []string
	if len(rows) > 0 {
		values = rows[0]
	}
	rec := p.validator.Record(row, values, m)

	// A present timestamp is final; error markers from earlier attempts are not.
	if rec.Notified != "" && !isErrorMarker(rec.Notified) {
		return rec.MessageKey, fmt.Errorf("%w on: %s", ErrAlreadyNotified, rec.Notified)
	}

	now := p.now()
	key := dedup.ComputeKey(rec.Email, rec.PO, rec.Description)
	if err := p.check(ctx, sheetName, m, rec, key, opts, now); err != nil {
		p.recordFailure(ctx, sheetName, m, rec, key, invocationID, err)
		return key, err
	}

	branding := p.session.Branding(p.cfg.Branding)
	if err := p.sender.Notify(ctx, rec, branding, now); err != nil {
		p.recordFailure(ctx, sheetName, m, rec, key, invocationID, err)
		return key, err
	}

	p.record(ctx, model.AuditEntry{
		Timestamp:    now,
		Email:        rec.Email,
		PO:           rec.PO,
		Description:  rec.Description,
		Status:       model.StatusSuccess,
		MessageKey:   key,
		InvocationID: invocationID,
	})

	if err := p.wb.WriteCell(ctx, sheetName, row, m.Notified, model.FormatTimestamp(now)); err != nil {
		logrus.WithField("row", row).Warnf("Failed to update tracking columns: %v", err)
	} else if err := p.wb.WriteCell(ctx, sheetName, row, m.MessageKey, key); err != nil {
		logrus.WithField("row", row).Warnf("Failed to update tracking columns: %v", err)
	}
	return key, nil
}

// check runs every gate before the send. Quota is consumed last so that
// rejected rows never use it.
func (p *Processor) check(ctx context.Context, sheetName string, m *model.Mapping, rec model.RowRecord, key string, opts Options, now time.Time) error {
	if blocking := p.validator.Blocking(p.validator.ValidateRow(rec)); len(blocking) > 0 {
		return &ValidationError{Problems: blocking}
	}

	if !opts.AllowDuplicate {
		match, err := p.dedup.IsDuplicate(ctx, sheetName, m, key, now)
		if err != nil {
			return fmt.Errorf("duplicate check failed: %w", err)
		}
		if match != nil {
			return fmt.Errorf("%w (row %d on %s)", ErrDuplicateSuppressed, match.Row, model.FormatTimestamp(match.NotifiedAt))
		}
	}

	return p.limiter.CheckAndConsume(ctx, now)
}

func (p *Processor) record(ctx context.Context, entry model.AuditEntry) {
	if err := p.audit.Record(ctx, entry); err != nil {
		logrus.WithField("message_key", entry.MessageKey).Warnf("Failed to log email attempt: %v", err)
	}
}

// recordFailure appends a FAILED audit entry and leaves a short error marker
// in the Notified cell so the failure is visible in the sheet.
func (p *Processor) recordFailure(ctx context.Context, sheetName string, m *model.Mapping, rec model.RowRecord, key, invocationID string, cause error) {
	email := rec.Email
	if email == "" {
		email = rec.RawEmail
	}
	p.record(ctx, model.AuditEntry{
		Timestamp:    p.now(),
		Email:        email,
		PO:           rec.PO,
		Description:  rec.Description,
		Status:       model.StatusFailed,
		ErrorMessage: cause.Error(),
		MessageKey:   key,
		InvocationID: invocationID,
	})

	if m.Notified == 0 {
		return
	}
	if err := p.wb.WriteCell(ctx, sheetName, rec.Row, m.Notified, errorMarker+truncate(cause.Error(), maxMarkerError)); err != nil {
		logrus.WithField("row", rec.Row).Warnf("Could not mark error in sheet: %v", err)
	}
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
