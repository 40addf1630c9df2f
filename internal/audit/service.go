package audit

import (
	"fmt"
	"log"

	"gorm.io/gorm"

	"pollboard/internal/bulkops"
	"pollboard/internal/models"
)

// Service persists a durable trail of finished bulk operations. The in-memory
// progress store is swept away after the retention window; these rows are not.
type Service struct {
	db *gorm.DB
}

// NewService creates a new audit service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// RecordOperation writes one audit row for a terminal operation. Failures are
// logged, never propagated; auditing must not break the orchestrator.
func (s *Service) RecordOperation(res bulkops.Result) {
	entry := models.BulkAuditEntry{
		ID:              res.OperationID,
		OperationType:   string(res.OperationType),
		AdminUserID:     res.AdminUserID,
		Status:          string(res.Status),
		TotalItems:      res.TotalItems,
		SuccessfulItems: len(res.Successful),
		FailedItems:     len(res.Failed),
		StartedAt:       res.StartTime,
		CompletedAt:     res.CompletionTime,
		DurationMS:      res.DurationMS,
	}

	if err := s.db.Create(&entry).Error; err != nil {
		log.Printf("WARNING: Failed to record audit entry for operation %s: %v", res.OperationID, err)
	}
}

// ListRecent returns the most recent audit entries, newest first.
func (s *Service) ListRecent(limit int) ([]models.BulkAuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	var entries []models.BulkAuditEntry
	if err := s.db.Order("completed_at DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	return entries, nil
}
