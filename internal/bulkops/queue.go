package bulkops

import "sync"

// DefaultMaxConcurrent bounds how many bulk operations may run at once.
const DefaultMaxConcurrent = 3

// AdmissionQueue bounds concurrent bulk operations. Requests beyond capacity
// are refused, not queued.
type AdmissionQueue struct {
	mu            sync.Mutex
	running       map[string]struct{}
	maxConcurrent int
}

// NewAdmissionQueue creates a queue admitting up to maxConcurrent operations.
func NewAdmissionQueue(maxConcurrent int) *AdmissionQueue {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	return &AdmissionQueue{
		running:       make(map[string]struct{}),
		maxConcurrent: maxConcurrent,
	}
}

// CanStart reports whether a new operation would currently be admitted.
func (q *AdmissionQueue) CanStart() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.running) < q.maxConcurrent
}

// Register admits the operation if capacity allows. The check and the insert
// happen under one lock so concurrent starts cannot over-admit.
func (q *AdmissionQueue) Register(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.running) >= q.maxConcurrent {
		return false
	}
	q.running[id] = struct{}{}
	return true
}

// Complete releases the operation's slot. Safe to call for ids that were
// never registered; it runs from cleanup paths regardless of outcome.
func (q *AdmissionQueue) Complete(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.running, id)
}

// Status returns a snapshot of the queue.
func (q *AdmissionQueue) Status() QueueStatus {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStatus{
		RunningOperations: len(q.running),
		MaxConcurrent:     q.maxConcurrent,
		CanAcceptNew:      len(q.running) < q.maxConcurrent,
	}
}
