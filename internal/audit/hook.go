package audit

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"po-notifier-go/internal/model"
	"po-notifier-go/internal/sheet"
)

// LogHeader is the first row of the automation log sheet
var LogHeader = []string{"Timestamp", "Level", "Message", "Version"}

// SheetHook is a logrus hook copying warnings and errors into a sheet so
// spreadsheet owners can see them without server access.
type SheetHook struct {
	wb         sheet.Workbook
	name       string
	version    string
	maxEntries int
	timeout    time.Duration
	firing     atomic.Bool
}

var _ logrus.Hook = (*SheetHook)(nil)

// NewSheetHook creates a hook writing to the named sheet
func NewSheetHook(wb sheet.Workbook, name, version string, maxEntries int) *SheetHook {
	return &SheetHook{
		wb:         wb,
		name:       name,
		version:    version,
		maxEntries: maxEntries,
		timeout:    10 * time.Second,
	}
}

// Levels implements logrus.Hook
func (h *SheetHook) Levels() []logrus.Level {
	return []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel, logrus.WarnLevel}
}

// Fire implements logrus.Hook. Entries logged while writing are dropped.
func (h *SheetHook) Fire(entry *logrus.Entry) error {
	if !h.firing.CompareAndSwap(false, true) {
		return nil
	}
	defer h.firing.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	if _, err := sheet.Ensure(ctx, h.wb, h.name, LogHeader); err != nil {
		fmt.Fprintf(os.Stderr, "sheet hook: %v\n", err)
		return nil
	}
	row := []string{
		model.FormatTimestamp(entry.Time),
		strings.ToUpper(entry.Level.String()),
		message(entry),
		h.version,
	}
	if err := h.wb.AppendRow(ctx, h.name, row); err != nil {
		fmt.Fprintf(os.Stderr, "sheet hook: %v\n", err)
		return nil
	}
	if h.maxEntries > 0 {
		if _, err := sheet.Trim(ctx, h.wb, h.name, h.maxEntries); err != nil {
			fmt.Fprintf(os.Stderr, "sheet hook: %v\n", err)
		}
	}
	return nil
}

func message(entry *logrus.Entry) string {
	if len(entry.Data) == 0 {
		return entry.Message
	}
	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(entry.Message)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, entry.Data[k])
	}
	return b.String()
}
