package mapper

import (
	"context"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"po-notifier-go/internal/config"
	"po-notifier-go/internal/model"
	"po-notifier-go/internal/sheet"
)

var (
	punctuation = regexp.MustCompile(`[^\w\s]`)
	whitespace  = regexp.MustCompile(`\s+`)
)

// Table maps header names to fields. Synonyms are tried in order.
type Table struct {
	Synonyms   map[model.Field][]string
	Notified   string
	MessageKey string
}

// FromConfig builds a Table from the configured column synonyms
func FromConfig(c config.ColumnsConfig) Table {
	return Table{
		Synonyms: map[model.Field][]string{
			model.FieldEmail:       c.Email,
			model.FieldName:        c.Name,
			model.FieldPO:          c.PO,
			model.FieldDescription: c.Description,
			model.FieldQuote:       c.Quote,
			model.FieldOrdered:     c.Ordered,
		},
		Notified:   c.Notified,
		MessageKey: c.MessageKey,
	}
}

// Normalize lowercases a header, strips punctuation and collapses whitespace
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = punctuation.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

type synonym struct {
	name string
	// prefix allows "po number" to claim "PO Number (required)". Synonyms
	// that lose characters to normalization ("order #") match exactly only.
	prefix bool
}

func synonymsOf(table Table) map[model.Field][]synonym {
	out := make(map[model.Field][]synonym, len(table.Synonyms))
	for f, names := range table.Synonyms {
		for _, n := range names {
			norm := Normalize(n)
			if norm == "" {
				continue
			}
			plain := strings.Join(strings.Fields(strings.ToLower(n)), " ")
			out[f] = append(out[f], synonym{name: norm, prefix: plain == norm})
		}
	}
	return out
}

// ResolveMapping maps a header row to column positions. Each column is
// matched exactly against every field before prefix matching is tried, so
// "Order Placed" is not claimed by the "order" synonym of the PO field.
// A prefix match must end on a word boundary.
// It returns nil when the header row is empty.
func ResolveMapping(header []string, table Table) *model.Mapping {
	if len(header) == 0 {
		return nil
	}

	synonyms := synonymsOf(table)
	notified := Normalize(table.Notified)
	messageKey := Normalize(table.MessageKey)

	m := &model.Mapping{}
	for i, raw := range header {
		col := i + 1
		h := Normalize(raw)
		if h == "" {
			continue
		}

		switch h {
		case notified:
			if m.Notified == 0 {
				m.Notified = col
			}
			continue
		case messageKey:
			if m.MessageKey == 0 {
				m.MessageKey = col
			}
			continue
		}

		if f, ok := match(h, synonyms, m, exact); ok {
			m.Set(f, col)
			continue
		}
		if f, ok := match(h, synonyms, m, wordPrefix); ok {
			m.Set(f, col)
		}
	}
	return m
}

func exact(h string, syn synonym) bool {
	return h == syn.name
}

func wordPrefix(h string, syn synonym) bool {
	return syn.prefix && strings.HasPrefix(h, syn.name+" ")
}

func match(h string, synonyms map[model.Field][]synonym, m *model.Mapping, eq func(h string, syn synonym) bool) (model.Field, bool) {
	for _, f := range model.DataFields {
		if m.Column(f) != 0 {
			continue
		}
		for _, syn := range synonyms[f] {
			if eq(h, syn) {
				return f, true
			}
		}
	}
	return "", false
}

// Excluded reports whether name looks like a system sheet
func Excluded(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range []string{"log", "config", "backup", "rate_limit"} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

var headerWeights = []struct {
	keyword string
	weight  int
}{
	{"email", 10},
	{"order", 8},
	{"purchase", 8},
	{"name", 5},
	{"description", 5},
	{"timestamp", 7},
}

const minScore = 10

// Score rates how likely a sheet is to hold order rows
func Score(name string, header []string) int {
	if len(header) > 10 {
		header = header[:10]
	}
	text := strings.ToLower(strings.Join(header, " "))
	lowerName := strings.ToLower(name)

	score := 0
	for _, w := range headerWeights {
		if strings.Contains(text, w.keyword) {
			score += w.weight
		}
	}
	if strings.Contains(lowerName, "response") {
		score += 15
	}
	if strings.Contains(lowerName, "form") {
		score += 10
	}
	return score
}

// SelectPrimarySheet picks the sheet holding order rows. A configured
// preferred name wins when it exists. It returns "" for an empty workbook.
func SelectPrimarySheet(ctx context.Context, wb sheet.Workbook, preferred string) (string, error) {
	names, err := wb.SheetNames(ctx)
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", nil
	}

	if preferred != "" {
		for _, n := range names {
			if n == preferred {
				return n, nil
			}
		}
		logrus.Warnf("Configured sheet %q not found, auto-detecting", preferred)
	}

	best, bestScore := "", minScore
	firstWithData := ""
	for _, n := range names {
		rows, cols, err := wb.Size(ctx, n)
		if err != nil {
			return "", err
		}
		if rows > 1 && firstWithData == "" {
			firstWithData = n
		}
		if Excluded(n) || rows <= 1 || cols <= 3 {
			continue
		}
		header, err := sheet.Header(ctx, wb, n)
		if err != nil {
			return "", err
		}
		if s := Score(n, header); s > bestScore {
			best, bestScore = n, s
		}
	}

	switch {
	case best != "":
		logrus.Debugf("Auto-detected primary sheet %q (score %d)", best, bestScore)
		return best, nil
	case firstWithData != "":
		logrus.Infof("Falling back to first sheet with data: %q", firstWithData)
		return firstWithData, nil
	default:
		return names[0], nil
	}
}
