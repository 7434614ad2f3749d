package validator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"po-notifier-go/internal/config"
	"po-notifier-go/internal/model"
)

func newValidator() *Validator {
	return New(config.Default().Validation)
}

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "a@b.com", "a@b.com"},
		{"case and spaces", "  Jane.Doe@Example.COM ", "jane.doe@example.com"},
		{"angle quotes", `"<x>"`, ""},
		{"wrapped", `"buyer@example.org"`, "buyer@example.org"},
		{"bracketed", "[buyer@example.org]", "buyer@example.org"},
		{"spaces inside quotes", `" a@b.com"`, "a@b.com"},
		{"spaces inside parens", "( Buyer@Example.org )", "buyer@example.org"},
		{"only quotes", `"  "`, ""},
		{"missing at", "not-an-email", ""},
		{"empty", "", ""},
		{"double at", "a@@b.com", ""},
		{"too long", strings.Repeat("a", 250) + "@b.com", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateEmail(tt.in, 254))
		})
	}
}

func TestValidateEmailIdempotent(t *testing.T) {
	inputs := []string{"a@b.com", " (Buyer@Example.org) ", "'x.y+z@sub.example.co'", "o'neil@example.com", "junk"}
	for _, in := range inputs {
		once := ValidateEmail(in, 254)
		assert.Equal(t, once, ValidateEmail(once, 254), in)
	}
}

func TestValidateText(t *testing.T) {
	assert.Equal(t, "Widgets for lab", ValidateText("  Widgets \t for\n lab ", 100))
	assert.Equal(t, "ab", ValidateText("a\x00b\x7f", 100))

	got := ValidateText(strings.Repeat("x", 60), 50)
	assert.Len(t, got, 50)
	assert.True(t, strings.HasSuffix(got, "..."))

	assert.Equal(t, "ü...", ValidateText("üüüüüü", 4))

	for maxLen := 1; maxLen <= 3; maxLen++ {
		got := ValidateText("abcdef", maxLen)
		assert.Equal(t, "abcdef"[:maxLen], got)
		assert.LessOrEqual(t, len([]rune(got)), maxLen)
	}
}

func TestCleanString(t *testing.T) {
	assert.Equal(t, "PO-1", CleanString(" PO-1 "))
	assert.Equal(t, "", CleanString("#N/A"))
	assert.Equal(t, "", CleanString("#REF!"))
}

func TestIsAffirmative(t *testing.T) {
	v := newValidator()
	for _, in := range []string{"Yes", "yes!", " ORDERED ", "Done.", "y", "✓", "X", "checked", "The order placed today", "has been ordered"} {
		assert.True(t, v.IsAffirmative(in), in)
	}
	for _, in := range []string{"", "no", "pending", "maybe", "xx"} {
		assert.False(t, v.IsAffirmative(in), in)
	}
}

func TestRecordAndValidateRow(t *testing.T) {
	v := newValidator()
	m := &model.Mapping{Email: 1, Name: 2, PO: 3, Description: 4, Ordered: 5, Notified: 6, MessageKey: 7}

	r := v.Record(2, []string{" A@B.com ", "Ann", "PO-100", "Widgets", "Yes"}, m)
	assert.Equal(t, 2, r.Row)
	assert.Equal(t, "a@b.com", r.Email)
	assert.Equal(t, "PO-100", r.PO)
	assert.Empty(t, r.Notified)
	assert.Empty(t, v.ValidateRow(r))

	bad := v.Record(3, []string{"not-an-email", "", "", "", "Yes"}, m)
	problems := v.ValidateRow(bad)
	require.Len(t, problems, 3)
	assert.True(t, problems[0].Fatal)
	assert.Contains(t, problems[0].Error(), "not-an-email")
	assert.False(t, problems[1].Fatal)
	assert.Len(t, v.Blocking(problems), 3)

	lenient := New(config.ValidationConfig{MaxEmailLength: 254, Strict: false})
	noPO := lenient.Record(4, []string{"a@b.com", "", "", "Widgets"}, m)
	problems = lenient.ValidateRow(noPO)
	require.Len(t, problems, 1)
	assert.Empty(t, lenient.Blocking(problems))
}
