// Package validator cleans raw cell values into an order record.
package validator

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"po-notifier-go/internal/config"
	"po-notifier-go/internal/model"
	"po-notifier-go/internal/sheet"
)

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)
	wrapping     = regexp.MustCompile(`^["'\[(]+|["'\])]+$`)
	spaces       = regexp.MustCompile(`\s+`)
	yesPunct     = regexp.MustCompile(`[!?.,:;]`)
)

var affirmativePhrases = []string{"order placed", "order sent", "has been ordered", "order confirmed"}

var checkGlyphs = map[string]bool{"✓": true, "✔": true, "☑": true, "x": true, "*": true, "check": true, "checked": true}

const ellipsis = "..."

// Validator applies the configured limits to row values
type Validator struct {
	cfg         config.ValidationConfig
	affirmative map[string]bool
}

// New creates a validator for cfg
func New(cfg config.ValidationConfig) *Validator {
	yes := make(map[string]bool, len(cfg.AffirmativeValues))
	for _, v := range cfg.AffirmativeValues {
		yes[strings.ToLower(strings.TrimSpace(v))] = true
	}
	return &Validator{cfg: cfg, affirmative: yes}
}

// ValidateEmail returns the cleaned address, or "" when it is unusable
func ValidateEmail(raw string, maxLen int) string {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return ""
	}
	email = strings.TrimSpace(wrapping.ReplaceAllString(email, ""))
	if email == "" {
		return ""
	}

	if maxLen > 0 && len(email) > maxLen {
		logrus.Warnf("Email too long: %d chars", len(email))
		return ""
	}
	if !emailPattern.MatchString(email) {
		logrus.Warnf("Invalid email format: %s", email)
		return ""
	}
	return email
}

// IsValidEmail reports whether email already satisfies the address grammar
func IsValidEmail(email string, maxLen int) bool {
	email = strings.TrimSpace(email)
	if len(email) < 5 || (maxLen > 0 && len(email) > maxLen) {
		return false
	}
	return emailPattern.MatchString(email)
}

// ValidateText trims, collapses whitespace, drops control characters and
// truncates to maxLen runes including the trailing "...".
func ValidateText(raw string, maxLen int) string {
	text := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw)
	text = strings.TrimSpace(spaces.ReplaceAllString(text, " "))

	if maxLen > 0 && utf8.RuneCountInString(text) > maxLen {
		logrus.Warnf("Text truncated from %d to %d chars", utf8.RuneCountInString(text), maxLen)
		runes := []rune(text)
		if maxLen <= len(ellipsis) {
			return string(runes[:maxLen])
		}
		text = string(runes[:maxLen-len(ellipsis)]) + ellipsis
	}
	return text
}

// CleanString trims a cell and blanks spreadsheet error values such as #N/A
func CleanString(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "#") {
		logrus.Warnf("Cell contains formula error: %s", s)
		return ""
	}
	return s
}

// IsAffirmative reports whether raw means the order was placed
func (v *Validator) IsAffirmative(raw string) bool {
	clean := yesPunct.ReplaceAllString(strings.ToLower(strings.TrimSpace(raw)), "")
	if clean == "" {
		return false
	}
	if v.affirmative[clean] {
		return true
	}
	for _, p := range affirmativePhrases {
		if strings.Contains(clean, p) {
			return true
		}
	}
	return checkGlyphs[clean]
}

// Email validates raw with the configured length limit
func (v *Validator) Email(raw string) string {
	return ValidateEmail(raw, v.cfg.MaxEmailLength)
}

// Record extracts and cleans one row using the column mapping
func (v *Validator) Record(row int, values []string, m *model.Mapping) model.RowRecord {
	cell := func(col int) string { return CleanString(sheet.Cell(values, col)) }
	return model.RowRecord{
		Row:         row,
		Email:       v.Email(cell(m.Email)),
		RawEmail:    cell(m.Email),
		Name:        ValidateText(cell(m.Name), v.cfg.MaxNameLength),
		PO:          ValidateText(cell(m.PO), v.cfg.MaxPOLength),
		Description: ValidateText(cell(m.Description), v.cfg.MaxDescriptionLength),
		Quote:       cell(m.Quote),
		Notified:    cell(m.Notified),
		MessageKey:  cell(m.MessageKey),
	}
}

// Problem is one validation finding for a row
type Problem struct {
	Field   model.Field
	Message string
	Fatal   bool
}

func (p *Problem) Error() string {
	return p.Message
}

// ValidateRow checks a cleaned record. A missing or malformed email is
// fatal; a missing PO or description is reported but not fatal.
func (v *Validator) ValidateRow(r model.RowRecord) []*Problem {
	var problems []*Problem
	switch {
	case r.Email == "" && r.RawEmail != "":
		problems = append(problems, &Problem{Field: model.FieldEmail, Message: fmt.Sprintf("Invalid email format: %s", r.RawEmail), Fatal: true})
	case r.Email == "":
		problems = append(problems, &Problem{Field: model.FieldEmail, Message: "Email is required", Fatal: true})
	case !IsValidEmail(r.Email, v.cfg.MaxEmailLength):
		problems = append(problems, &Problem{Field: model.FieldEmail, Message: fmt.Sprintf("Invalid email format: %s", r.Email), Fatal: true})
	}
	if r.PO == "" {
		problems = append(problems, &Problem{Field: model.FieldPO, Message: "PO number is missing"})
	}
	if r.Description == "" {
		problems = append(problems, &Problem{Field: model.FieldDescription, Message: "Description is missing"})
	}
	return problems
}

// Blocking returns the problems that should stop a send
func (v *Validator) Blocking(problems []*Problem) []*Problem {
	var out []*Problem
	for _, p := range problems {
		if p.Fatal || v.cfg.Strict {
			out = append(out, p)
		}
	}
	return out
}
