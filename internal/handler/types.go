package handler

import (
	"time"

	"po-notifier-go/internal/model"
	"po-notifier-go/internal/pipeline"
)

// LogoStrategyRequest changes the logo strategy for the running process
type LogoStrategyRequest struct {
	Strategy string `json:"strategy"`
}

// SweepResponse lists the rows handled by a sweep
type SweepResponse struct {
	Processed int               `json:"processed"`
	Results   []pipeline.Result `json:"results"`
}

// AuditResponse lists recent audit entries, newest first
type AuditResponse struct {
	Entries []model.AuditEntry `json:"entries"`
	Count   int                `json:"count"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Sheets    string            `json:"sheets"`
	Database  string            `json:"database,omitempty"`
	Metrics   map[string]string `json:"metrics,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
