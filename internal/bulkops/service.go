package bulkops

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// DefaultThrottle is the pause between items, keeping load on the poll
// administration backend bounded.
const DefaultThrottle = 100 * time.Millisecond

// DefaultListLimit caps List results when the caller does not specify a limit.
const DefaultListLimit = 50

// Config tunes the orchestrator. Zero values fall back to the defaults.
type Config struct {
	MaxConcurrent int
	Throttle      time.Duration
}

// operationHandle tracks one in-flight executor so shutdown can await it and
// cancellation can reach it between items.
type operationHandle struct {
	done      chan struct{}
	cancelled atomic.Bool
	result    *Result // set before done is closed
}

// Service is the bulk operation orchestrator: it validates requests, admits
// them under the concurrency cap, runs them in background goroutines and
// exposes progress queries and cancellation.
type Service struct {
	queue    *AdmissionQueue
	store    *ProgressStore
	polls    PollAdmin
	audit    AuditRecorder // optional
	throttle time.Duration

	ctx       context.Context
	cancelAll context.CancelFunc
	handleMu  sync.Mutex
	handles   map[string]*operationHandle
}

// NewService constructs the orchestrator. audit may be nil.
func NewService(polls PollAdmin, audit AuditRecorder, cfg Config) *Service {
	throttle := cfg.Throttle
	if throttle <= 0 {
		throttle = DefaultThrottle
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		queue:     NewAdmissionQueue(cfg.MaxConcurrent),
		store:     NewProgressStore(),
		polls:     polls,
		audit:     audit,
		throttle:  throttle,
		ctx:       ctx,
		cancelAll: cancel,
		handles:   make(map[string]*operationHandle),
	}
}

// Start validates the request, admits it and launches the executor. It
// returns the new operation id immediately; progress is observed by polling.
func (s *Service) Start(ctx context.Context, req Request) (string, error) {
	if err := s.validate(ctx, req); err != nil {
		return "", err
	}

	if !s.queue.CanStart() {
		return "", ErrQueueFull
	}

	operationID := uuid.New().String()
	if !s.queue.Register(operationID) {
		// Lost the race between the capacity check and registration.
		return "", ErrQueueFull
	}

	now := time.Now()
	prog := &Progress{
		OperationID:    operationID,
		OperationType:  req.OperationType,
		Status:         StatusStarting,
		TotalItems:     len(req.TargetIDs),
		StartTime:      now,
		LastUpdateTime: now,
		Errors:         []OperationError{},
		AdminUserID:    req.AdminUserID,
		Parameters:     req.Parameters,
	}
	s.store.Put(prog)

	h := &operationHandle{done: make(chan struct{})}
	s.handleMu.Lock()
	s.handles[operationID] = h
	s.handleMu.Unlock()

	log.Printf("Starting bulk %s operation %s: %d target(s), requested by %s",
		req.OperationType, operationID, len(req.TargetIDs), req.AdminUserID)

	go s.runOperation(s.ctx, prog, req, h)

	return operationID, nil
}

// GetProgress returns a snapshot of the operation, or nil if unknown.
func (s *Service) GetProgress(operationID string) *Progress {
	return s.store.Get(operationID)
}

// List returns operations newest first, optionally filtered to one admin
// user. A limit <= 0 falls back to DefaultListLimit.
func (s *Service) List(adminUserID string, limit int) []*Progress {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return s.store.List(adminUserID, limit)
}

// QueueStatus reports the admission queue.
func (s *Service) QueueStatus() QueueStatus {
	return s.queue.Status()
}

// Result returns the terminal result of a finished operation.
func (s *Service) Result(operationID string) (*Result, bool) {
	s.handleMu.Lock()
	h, ok := s.handles[operationID]
	s.handleMu.Unlock()
	if !ok {
		return nil, false
	}
	select {
	case <-h.done:
		return h.result, h.result != nil
	default:
		return nil, false
	}
}

// Done exposes the operation's completion channel, mainly for callers that
// want to block until it finishes.
func (s *Service) Done(operationID string) (<-chan struct{}, bool) {
	s.handleMu.Lock()
	h, ok := s.handles[operationID]
	s.handleMu.Unlock()
	if !ok {
		return nil, false
	}
	return h.done, true
}

// Cancel requests that the operation stop. It returns false if the operation
// is unknown, the caller is not its creator, or it already reached a terminal
// state. The executor observes the request at the next item boundary.
func (s *Service) Cancel(operationID, adminUserID string) bool {
	prog := s.store.Get(operationID)
	if prog == nil {
		return false
	}
	if prog.AdminUserID != adminUserID {
		return false
	}
	if prog.Status != StatusStarting && prog.Status != StatusRunning {
		return false
	}

	s.handleMu.Lock()
	h := s.handles[operationID]
	s.handleMu.Unlock()
	if h != nil {
		h.cancelled.Store(true)
	}

	now := time.Now()
	prog.Status = StatusCancelled
	prog.CompletionTime = &now
	prog.LastUpdateTime = now
	s.store.Put(prog)

	log.Printf("Bulk operation %s cancelled by %s", operationID, adminUserID)
	return true
}

// Sweep removes terminal operations older than maxAge from the store and
// drops their handles. Returns how many entries were removed.
func (s *Service) Sweep(maxAge time.Duration) int {
	removed := s.store.Sweep(maxAge)

	s.handleMu.Lock()
	for id, h := range s.handles {
		select {
		case <-h.done:
			if s.store.Get(id) == nil {
				delete(s.handles, id)
			}
		default:
		}
	}
	s.handleMu.Unlock()

	return removed
}

// Shutdown waits for in-flight operations to finish. If ctx expires first, it
// signals cancellation to all executors and waits for them to stop at their
// next item boundary.
func (s *Service) Shutdown(ctx context.Context) {
	s.handleMu.Lock()
	handles := make([]*operationHandle, 0, len(s.handles))
	for _, h := range s.handles {
		handles = append(handles, h)
	}
	s.handleMu.Unlock()

	done := make(chan struct{})
	go func() {
		for _, h := range handles {
			<-h.done
		}
		close(done)
	}()

	select {
	case <-done:
		return
	case <-ctx.Done():
		log.Println("WARNING: shutdown deadline reached, cancelling in-flight bulk operations")
		s.cancelAll()
		<-done
	}
}
