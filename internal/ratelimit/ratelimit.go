// Package ratelimit caps outgoing notifications per hour and per day using
// an event log kept in the spreadsheet. It is only correct while the caller
// holds the document lock.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"po-notifier-go/internal/config"
	"po-notifier-go/internal/model"
	"po-notifier-go/internal/sheet"
)

// Windows
const (
	WindowHour = "hour"
	WindowDay  = "day"
)

// Header is the first row of the rate event log
var Header = []string{"Timestamp", "Type", "Count"}

// ExceededError is returned when a send would exceed a cap
type ExceededError struct {
	Window  string
	Current int
	Limit   int
}

func (e *ExceededError) Error() string {
	name := "Hourly"
	if e.Window == WindowDay {
		name = "Daily"
	}
	return fmt.Sprintf("%s email limit exceeded: %d/%d", name, e.Current, e.Limit)
}

// Status is a snapshot of quota usage
type Status struct {
	Hourly      int  `json:"hourly"`
	HourlyLimit int  `json:"hourly_limit"`
	Daily       int  `json:"daily"`
	DailyLimit  int  `json:"daily_limit"`
	Limited     bool `json:"limited"`
}

// Limiter counts sends recorded in the rate event sheet
type Limiter struct {
	wb  sheet.Workbook
	cfg config.RateLimitConfig
}

// New creates a limiter
func New(wb sheet.Workbook, cfg config.RateLimitConfig) *Limiter {
	if cfg.ScanWindow <= 0 {
		cfg.ScanWindow = 200
	}
	if cfg.SheetName == "" {
		cfg.SheetName = "Rate_Limit_Log"
	}
	return &Limiter{wb: wb, cfg: cfg}
}

// counts scans only the most recent ScanWindow events
func (l *Limiter) counts(ctx context.Context, now time.Time) (hourly, daily int, err error) {
	lastRow, _, err := l.wb.Size(ctx, l.cfg.SheetName)
	if err != nil {
		return 0, 0, err
	}
	if lastRow <= 1 {
		return 0, 0, nil
	}

	n := lastRow - 1
	if n > l.cfg.ScanWindow {
		n = l.cfg.ScanWindow
	}
	rows, err := l.wb.Read(ctx, l.cfg.SheetName, lastRow-n+1, n)
	if err != nil {
		return 0, 0, err
	}

	hourAgo := now.Add(-time.Hour)
	dayAgo := now.Add(-24 * time.Hour)
	for _, r := range rows {
		ts, ok := model.ParseTimestamp(sheet.Cell(r, 1))
		if !ok {
			continue
		}
		if ts.After(hourAgo) {
			hourly++
		}
		if ts.After(dayAgo) {
			daily++
		}
	}
	return hourly, daily, nil
}

func (l *Limiter) ensure(ctx context.Context) error {
	created, err := sheet.Ensure(ctx, l.wb, l.cfg.SheetName, Header)
	if err != nil {
		return err
	}
	if created {
		logrus.Infof("Created rate limit tracking sheet %q", l.cfg.SheetName)
	}
	return nil
}

// CheckAndConsume records one send, or fails with *ExceededError without
// recording anything when a cap has already been reached.
func (l *Limiter) CheckAndConsume(ctx context.Context, now time.Time) error {
	if err := l.ensure(ctx); err != nil {
		return err
	}

	hourly, daily, err := l.counts(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to count rate events: %w", err)
	}

	if hourly >= l.cfg.PerHour {
		return &ExceededError{Window: WindowHour, Current: hourly, Limit: l.cfg.PerHour}
	}
	if daily >= l.cfg.PerDay {
		return &ExceededError{Window: WindowDay, Current: daily, Limit: l.cfg.PerDay}
	}

	event := []string{model.FormatTimestamp(now), model.RateEventSent, strconv.Itoa(1)}
	if err := l.wb.AppendRow(ctx, l.cfg.SheetName, event); err != nil {
		return fmt.Errorf("failed to record rate event: %w", err)
	}
	if l.cfg.MaxEntries > 0 {
		if _, err := sheet.Trim(ctx, l.wb, l.cfg.SheetName, l.cfg.MaxEntries); err != nil {
			logrus.Warnf("Failed to trim rate limit log: %v", err)
		}
	}

	logrus.Debugf("Rate limit check passed - Hourly: %d/%d, Daily: %d/%d",
		hourly+1, l.cfg.PerHour, daily+1, l.cfg.PerDay)
	return nil
}

// Status reports current usage without consuming quota
func (l *Limiter) Status(ctx context.Context, now time.Time) (*Status, error) {
	ok, err := sheet.Exists(ctx, l.wb, l.cfg.SheetName)
	if err != nil {
		return nil, err
	}
	s := &Status{HourlyLimit: l.cfg.PerHour, DailyLimit: l.cfg.PerDay}
	if !ok {
		return s, nil
	}
	s.Hourly, s.Daily, err = l.counts(ctx, now)
	if err != nil {
		return nil, err
	}
	s.Limited = s.Hourly >= s.HourlyLimit || s.Daily >= s.DailyLimit
	return s, nil
}

// Reset deletes every recorded event and returns how many were removed
func (l *Limiter) Reset(ctx context.Context) (int, error) {
	ok, err := sheet.Exists(ctx, l.wb, l.cfg.SheetName)
	if err != nil || !ok {
		return 0, err
	}
	n, err := sheet.Trim(ctx, l.wb, l.cfg.SheetName, 0)
	if err != nil {
		return 0, err
	}
	logrus.Warnf("Rate limits reset, %d events cleared", n)
	return n, nil
}
