// Package dedup detects repeat notifications for the same order.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"po-notifier-go/internal/model"
	"po-notifier-go/internal/sheet"
	"po-notifier-go/internal/validator"
)

// KeyLength is the number of characters kept from the encoded digest
const KeyLength = 16

// ComputeKey fingerprints an order. Equal inputs always give equal keys.
func ComputeKey(email, po, description string) string {
	sum := sha256.Sum256([]byte(email + "|" + po + "|" + description))
	return base64.StdEncoding.EncodeToString(sum[:])[:KeyLength]
}

// Checker scans the order sheet for recent notifications with the same key
type Checker struct {
	wb        sheet.Workbook
	retention time.Duration
	batchSize int
}

// NewChecker creates a checker keeping matches for retentionDays
func NewChecker(wb sheet.Workbook, retentionDays, batchSize int) *Checker {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Checker{
		wb:        wb,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		batchSize: batchSize,
	}
}

// Match describes the row that made a notification a duplicate
type Match struct {
	Row        int
	NotifiedAt time.Time
}

// IsDuplicate reports whether key was notified within the retention window
// before now. The scan is linear over the data rows, read in batches.
func (c *Checker) IsDuplicate(ctx context.Context, sheetName string, m *model.Mapping, key string, now time.Time) (*Match, error) {
	if key == "" || m == nil || !m.HasHelpers() {
		return nil, nil
	}

	lastRow, _, err := c.wb.Size(ctx, sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to size %q: %w", sheetName, err)
	}

	cutoff := now.Add(-c.retention)
	for start := 2; start <= lastRow; start += c.batchSize {
		n := c.batchSize
		if start+n-1 > lastRow {
			n = lastRow - start + 1
		}
		rows, err := c.wb.Read(ctx, sheetName, start, n)
		if err != nil {
			return nil, fmt.Errorf("failed to read rows %d-%d: %w", start, start+n-1, err)
		}
		for i, values := range rows {
			if validator.CleanString(sheet.Cell(values, m.MessageKey)) != key {
				continue
			}
			notified, ok := model.ParseTimestamp(sheet.Cell(values, m.Notified))
			if ok && notified.After(cutoff) {
				logrus.WithFields(logrus.Fields{
					"message_key": key,
					"row":         start + i,
					"notified_at": notified,
				}).Warn("Duplicate notification detected")
				return &Match{Row: start + i, NotifiedAt: notified}, nil
			}
		}
	}
	return nil, nil
}
