package model

import "time"

// EditEvent is a cell edit forwarded by the spreadsheet host
type EditEvent struct {
	SheetName string `json:"sheet_name" binding:"required"`
	Row       int    `json:"row" binding:"required,min=1"`
	Column    int    `json:"column" binding:"required,min=1"`
	Value     string `json:"value"`
}

// Audit statuses
const (
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

// AuditEntry records one notification attempt
type AuditEntry struct {
	Timestamp    time.Time `json:"timestamp"`
	Email        string    `json:"email"`
	PO           string    `json:"po"`
	Description  string    `json:"description"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
	MessageKey   string    `json:"message_key"`
	InvocationID string    `json:"invocation_id,omitempty"`
}

// RateEventSent is the only rate event type recorded today
const RateEventSent = "EMAIL_SENT"
