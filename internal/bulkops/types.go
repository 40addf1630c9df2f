package bulkops

import (
	"context"
	"time"
)

// OperationType identifies the mutation a bulk operation applies to each target poll.
type OperationType string

const (
	OpClose          OperationType = "close"
	OpDelete         OperationType = "delete"
	OpReopen         OperationType = "reopen"
	OpUpdateStatus   OperationType = "update_status"
	OpUpdateSettings OperationType = "update_settings"
	OpExport         OperationType = "export"
)

// OperationStatus tracks the lifecycle of a bulk operation.
type OperationStatus string

const (
	StatusStarting  OperationStatus = "starting"
	StatusRunning   OperationStatus = "running"
	StatusCompleted OperationStatus = "completed"
	StatusFailed    OperationStatus = "failed"
	StatusCancelled OperationStatus = "cancelled"
)

// Terminal reports whether the status is a terminal state.
func (s OperationStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Request describes one bulk operation: a single operation type applied to an
// ordered list of target polls. Duplicate target ids are permitted.
type Request struct {
	OperationType    OperationType          `json:"operation_type"`
	TargetIDs        []int64                `json:"target_ids"`
	Parameters       map[string]interface{} `json:"parameters"`
	AdminUserID      string                 `json:"admin_user_id"`
	ConfirmationCode string                 `json:"confirmation_code,omitempty"`
}

// ItemResult records the outcome of processing a single target.
type ItemResult struct {
	ItemID           int64  `json:"item_id"`
	Success          bool   `json:"success"`
	Message          string `json:"message"`
	ErrorCode        string `json:"error_code,omitempty"`
	ProcessingTimeMS int64  `json:"processing_time_ms"`
	RetryCount       int    `json:"retry_count"`
}

// OperationError captures a single item failure within a bulk operation.
type OperationError struct {
	ItemID    int64     `json:"item_id"`
	ErrorCode string    `json:"error_code"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Progress is the mutable aggregate describing a bulk operation's current
// state. Each Progress is written only by its own executor goroutine; the
// store hands out copies to readers.
type Progress struct {
	OperationID         string                 `json:"operation_id"`
	OperationType       OperationType          `json:"operation_type"`
	Status              OperationStatus        `json:"status"`
	TotalItems          int                    `json:"total_items"`
	ProcessedItems      int                    `json:"processed_items"`
	SuccessfulItems     int                    `json:"successful_items"`
	FailedItems         int                    `json:"failed_items"`
	CurrentItemID       int64                  `json:"current_item_id,omitempty"`
	CurrentItemName     string                 `json:"current_item_name,omitempty"`
	StartTime           time.Time              `json:"start_time"`
	LastUpdateTime      time.Time              `json:"last_update_time"`
	EstimatedCompletion *time.Time             `json:"estimated_completion_time,omitempty"`
	CompletionTime      *time.Time             `json:"completion_time,omitempty"`
	Errors              []OperationError       `json:"errors"`
	AdminUserID         string                 `json:"admin_user_id"`
	Parameters          map[string]interface{} `json:"parameters,omitempty"`
}

// ProgressPercentage returns completion as a whole percentage (0-100).
func (p *Progress) ProgressPercentage() int {
	if p.TotalItems == 0 || p.ProcessedItems == 0 {
		return 0
	}
	return p.ProcessedItems * 100 / p.TotalItems
}

// IsComplete reports whether the operation reached a terminal state.
func (p *Progress) IsComplete() bool {
	return p.Status.Terminal()
}

// clone returns a deep copy so store readers never alias the executor's instance.
func (p *Progress) clone() *Progress {
	cp := *p
	cp.Errors = make([]OperationError, len(p.Errors))
	copy(cp.Errors, p.Errors)
	if p.EstimatedCompletion != nil {
		eta := *p.EstimatedCompletion
		cp.EstimatedCompletion = &eta
	}
	if p.CompletionTime != nil {
		done := *p.CompletionTime
		cp.CompletionTime = &done
	}
	return &cp
}

// Result is the terminal view of a finished bulk operation.
type Result struct {
	OperationID    string           `json:"operation_id"`
	OperationType  OperationType    `json:"operation_type"`
	AdminUserID    string           `json:"admin_user_id"`
	Status         OperationStatus  `json:"status"`
	TotalItems     int              `json:"total_items"`
	Successful     []int64          `json:"successful"`
	Failed         []int64          `json:"failed"`
	Items          []ItemResult     `json:"items"`
	Errors         []OperationError `json:"errors"`
	StartTime      time.Time        `json:"start_time"`
	CompletionTime time.Time        `json:"completion_time"`
	DurationMS     int64            `json:"duration_ms"`
}

// QueueStatus describes the admission queue. Requests beyond capacity are
// rejected rather than queued, so there is no pending count.
type QueueStatus struct {
	RunningOperations int  `json:"running_operations"`
	MaxConcurrent     int  `json:"max_concurrent"`
	CanAcceptNew      bool `json:"can_accept_new"`
}

// PollRecord is the minimal view of a poll the orchestrator needs for
// validation and item naming.
type PollRecord struct {
	ID     int64
	Name   string
	Status string
}

// ActionResult is the normalized outcome of one mutation on one poll.
type ActionResult struct {
	Success   bool
	Message   string
	ErrorCode string
	Data      map[string]interface{}
}

// ReopenOptions carries the optional parameters of a reopen operation.
type ReopenOptions struct {
	ExtendHours  int
	ResetVotes   bool
	NewCloseTime *time.Time
}

// PollAdmin is the external poll administration service the orchestrator
// drives. Lookup returns (nil, nil) when the poll does not exist. The mutation
// methods report domain failures through ActionResult; a non-nil error means
// the call itself failed (infrastructure, not domain).
type PollAdmin interface {
	Lookup(ctx context.Context, id int64) (*PollRecord, error)
	Close(ctx context.Context, id int64, actor string) (ActionResult, error)
	Delete(ctx context.Context, id int64, actor string) (ActionResult, error)
	Reopen(ctx context.Context, id int64, actor string, opts ReopenOptions) (ActionResult, error)
	UpdateStatus(ctx context.Context, id int64, newStatus string, actor string) (ActionResult, error)
	UpdateSettings(ctx context.Context, id int64, settings map[string]interface{}, actor string) (ActionResult, error)
	Export(ctx context.Context, id int64, actor string) (ActionResult, error)
}

// AuditRecorder receives the terminal result of every bulk operation.
type AuditRecorder interface {
	RecordOperation(res Result)
}
