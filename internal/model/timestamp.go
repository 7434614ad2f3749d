package model

import (
	"strings"
	"time"
)

// TimestampLayout is used for every timestamp written to the sheet
const TimestampLayout = time.RFC3339

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"1/2/2006 15:04:05",
	"1/2/2006 3:04:05 PM",
	"Jan 2, 2006 3:04 PM MST",
	"2006-01-02",
	"1/2/2006",
}

// FormatTimestamp renders t for storage in a cell
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// ParseTimestamp reads a timestamp cell. Values without a zone are taken
// as local time. ok is false for anything unparseable.
func ParseTimestamp(s string) (t time.Time, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
