package models

import "time"

// BulkAuditEntry is the durable trail of finished bulk operations. Progress
// snapshots live in memory only; this row is what survives a restart.
type BulkAuditEntry struct {
	ID              string    `gorm:"primaryKey" json:"id"` // operation UUID
	OperationType   string    `gorm:"not null;column:operation_type" json:"operation_type"`
	AdminUserID     string    `gorm:"not null;index;column:admin_user_id" json:"admin_user_id"`
	Status          string    `gorm:"not null" json:"status"` // completed, failed, cancelled
	TotalItems      int       `gorm:"not null;default:0" json:"total_items"`
	SuccessfulItems int       `gorm:"not null;default:0" json:"successful_items"`
	FailedItems     int       `gorm:"not null;default:0" json:"failed_items"`
	StartedAt       time.Time `json:"started_at"`
	CompletedAt     time.Time `json:"completed_at"`
	DurationMS      int64     `gorm:"column:duration_ms" json:"duration_ms"`
	CreatedAt       time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM
func (BulkAuditEntry) TableName() string {
	return "bulk_audit_entries"
}
