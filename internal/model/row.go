package model

// Field names a logical column of the order sheet
type Field string

const (
	FieldEmail       Field = "email"
	FieldName        Field = "name"
	FieldPO          Field = "po"
	FieldDescription Field = "description"
	FieldQuote       Field = "quote"
	FieldOrdered     Field = "ordered"
	FieldNotified    Field = "notified"
	FieldMessageKey  Field = "messageKey"
)

// DataFields lists the synonym-matched fields in matching priority order
var DataFields = []Field{FieldEmail, FieldName, FieldPO, FieldDescription, FieldQuote, FieldOrdered}

// Mapping holds 1-based column positions; zero means the column is absent.
type Mapping struct {
	Email       int `json:"email,omitempty"`
	Name        int `json:"name,omitempty"`
	PO          int `json:"po,omitempty"`
	Description int `json:"description,omitempty"`
	Quote       int `json:"quote,omitempty"`
	Ordered     int `json:"ordered,omitempty"`
	Notified    int `json:"notified,omitempty"`
	MessageKey  int `json:"message_key,omitempty"`
}

// Column returns the position mapped for f
func (m *Mapping) Column(f Field) int {
	if p := m.slot(f); p != nil {
		return *p
	}
	return 0
}

// Set records col for f
func (m *Mapping) Set(f Field, col int) {
	if p := m.slot(f); p != nil {
		*p = col
	}
}

func (m *Mapping) slot(f Field) *int {
	switch f {
	case FieldEmail:
		return &m.Email
	case FieldName:
		return &m.Name
	case FieldPO:
		return &m.PO
	case FieldDescription:
		return &m.Description
	case FieldQuote:
		return &m.Quote
	case FieldOrdered:
		return &m.Ordered
	case FieldNotified:
		return &m.Notified
	case FieldMessageKey:
		return &m.MessageKey
	}
	return nil
}

// HasRequired reports whether the email and order status columns were found
func (m *Mapping) HasRequired() bool {
	return m.Email > 0 && m.Ordered > 0
}

// HasHelpers reports whether both tracking columns exist
func (m *Mapping) HasHelpers() bool {
	return m.Notified > 0 && m.MessageKey > 0
}

// RowRecord is one order row after cleaning
type RowRecord struct {
	Row   int    `json:"row"`
	Email string `json:"email"`
	// RawEmail is the cell as entered, kept for error reporting.
	RawEmail    string `json:"-"`
	Name        string `json:"name"`
	PO          string `json:"po"`
	Description string `json:"description"`
	Quote       string `json:"quote,omitempty"`
	Notified    string `json:"notified,omitempty"`
	MessageKey  string `json:"message_key,omitempty"`
}
