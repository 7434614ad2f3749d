package model

import (
	"time"

	"gorm.io/gorm"
)

// NotificationLog mirrors an audit entry into the database
type NotificationLog struct {
	ID           uint           `json:"id" gorm:"primaryKey;autoIncrement"`
	InvocationID string         `json:"invocation_id" gorm:"type:char(36);index"`
	MessageKey   string         `json:"message_key" gorm:"type:varchar(32);not null;index"`
	Email        string         `json:"email" gorm:"type:varchar(254);index"`
	PO           string         `json:"po" gorm:"type:varchar(64)"`
	Description  string         `json:"description" gorm:"type:text"`
	Status       string         `json:"status" gorm:"type:varchar(16);not null"`
	ErrorMsg     string         `json:"error_msg" gorm:"type:text"`
	CreatedAt    time.Time      `json:"created_at"`
	DeletedAt    gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// Entry converts the row back into an audit entry
func (l NotificationLog) Entry() AuditEntry {
	return AuditEntry{
		Timestamp:    l.CreatedAt,
		Email:        l.Email,
		PO:           l.PO,
		Description:  l.Description,
		Status:       l.Status,
		ErrorMessage: l.ErrorMsg,
		MessageKey:   l.MessageKey,
		InvocationID: l.InvocationID,
	}
}

// TableName specifies the table name for NotificationLog
func (NotificationLog) TableName() string {
	return "notification_logs"
}
