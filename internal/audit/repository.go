package audit

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"po-notifier-go/internal/model"
)

// Repository mirrors audit entries into the notification_logs table
type Repository struct {
	db *gorm.DB
}

var _ Recorder = (*Repository)(nil)

// NewRepository creates a gorm-backed recorder
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Record inserts one notification log row
func (r *Repository) Record(ctx context.Context, entry model.AuditEntry) error {
	log := model.NotificationLog{
		InvocationID: entry.InvocationID,
		MessageKey:   entry.MessageKey,
		Email:        entry.Email,
		PO:           entry.PO,
		Description:  entry.Description,
		Status:       entry.Status,
		ErrorMsg:     entry.ErrorMessage,
		CreatedAt:    entry.Timestamp,
	}
	result := r.db.WithContext(ctx).Create(&log)
	if result.Error != nil {
		return fmt.Errorf("failed to log notification attempt: %w", result.Error)
	}
	return nil
}

// ByMessageKey returns the newest logged attempts for one order fingerprint
func (r *Repository) ByMessageKey(ctx context.Context, key string, limit int) ([]model.AuditEntry, error) {
	return r.find(r.db.WithContext(ctx).Where("message_key = ?", key), limit)
}

// Recent returns the newest logged attempts
func (r *Repository) Recent(ctx context.Context, limit int) ([]model.AuditEntry, error) {
	return r.find(r.db.WithContext(ctx), limit)
}

func (r *Repository) find(q *gorm.DB, limit int) ([]model.AuditEntry, error) {
	if limit > 0 {
		q = q.Limit(limit)
	}
	var logs []model.NotificationLog
	result := q.Order("created_at DESC").Find(&logs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get notification logs: %w", result.Error)
	}
	entries := make([]model.AuditEntry, 0, len(logs))
	for _, log := range logs {
		entries = append(entries, log.Entry())
	}
	return entries, nil
}
