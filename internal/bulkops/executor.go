package bulkops

import (
	"context"
	"fmt"
	"log"
	"time"
)

// runOperation is the background body of one bulk operation. It processes
// targets strictly in order, isolates per-item failures, persists a snapshot
// after every item and always releases the admission slot.
func (s *Service) runOperation(ctx context.Context, prog *Progress, req Request, h *operationHandle) {
	var items []ItemResult

	defer func() {
		s.queue.Complete(prog.OperationID)

		h.result = buildResult(prog, items)
		if s.audit != nil {
			s.audit.RecordOperation(*h.result)
		}
		close(h.done)

		log.Printf("Bulk operation %s finished: status=%s processed=%d/%d ok=%d failed=%d",
			prog.OperationID, prog.Status, prog.ProcessedItems, prog.TotalItems,
			prog.SuccessfulItems, prog.FailedItems)
	}()

	defer func() {
		if r := recover(); r != nil {
			// Executor-level failure, distinct from per-item failures: the
			// whole operation terminates as failed.
			now := time.Now()
			prog.Status = StatusFailed
			prog.CompletionTime = &now
			prog.LastUpdateTime = now
			prog.Errors = append(prog.Errors, OperationError{
				ItemID:    prog.CurrentItemID,
				ErrorCode: ErrCodeProcessing,
				Message:   fmt.Sprintf("executor failure: %v", r),
				Timestamp: now,
			})
			s.store.Put(prog)
			log.Printf("ERROR: bulk operation %s aborted: %v", prog.OperationID, r)
		}
	}()

	items = s.processItems(ctx, prog, req, h)
}

// processItems runs the sequential per-item loop. Only this goroutine writes
// prog; the store hands copies to concurrent pollers.
func (s *Service) processItems(ctx context.Context, prog *Progress, req Request, h *operationHandle) []ItemResult {
	prog.Status = StatusRunning
	prog.LastUpdateTime = time.Now()
	s.store.Put(prog)

	items := make([]ItemResult, 0, len(req.TargetIDs))

	for i, id := range req.TargetIDs {
		if s.stopRequested(ctx, h) {
			s.markCancelled(prog)
			return items
		}

		prog.CurrentItemID = id
		prog.CurrentItemName = s.itemName(ctx, id)
		if i > 0 {
			// ETA from the average pace of the items done so far.
			perItem := time.Since(prog.StartTime) / time.Duration(i)
			eta := time.Now().Add(perItem * time.Duration(len(req.TargetIDs)-i))
			prog.EstimatedCompletion = &eta
		}
		prog.LastUpdateTime = time.Now()
		s.store.Put(prog)

		res := s.processItem(ctx, req, id)
		items = append(items, res)

		if res.Success {
			prog.SuccessfulItems++
		} else {
			code := res.ErrorCode
			if code == "" {
				code = ErrCodeUnknown
			}
			prog.FailedItems++
			prog.Errors = append(prog.Errors, OperationError{
				ItemID:    id,
				ErrorCode: code,
				Message:   res.Message,
				Timestamp: time.Now(),
			})
		}
		prog.ProcessedItems++
		prog.LastUpdateTime = time.Now()
		s.store.Put(prog)

		if i < len(req.TargetIDs)-1 {
			select {
			case <-time.After(s.throttle):
			case <-ctx.Done():
			}
		}
	}

	now := time.Now()
	prog.Status = StatusCompleted
	prog.CompletionTime = &now
	prog.CurrentItemID = 0
	prog.CurrentItemName = ""
	prog.EstimatedCompletion = nil
	prog.LastUpdateTime = now
	s.store.Put(prog)

	return items
}

// processItem invokes the handler for a single target, timing it and turning
// a panic into a reported failure so one item can never abort the batch.
func (s *Service) processItem(ctx context.Context, req Request, id int64) (res ItemResult) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			res = ItemResult{
				ItemID:           id,
				Success:          false,
				Message:          fmt.Sprintf("handler panic: %v", r),
				ErrorCode:        ErrCodeProcessing,
				ProcessingTimeMS: time.Since(start).Milliseconds(),
			}
		}
	}()

	ar, err := s.dispatch(ctx, req.OperationType, id, req.Parameters, req.AdminUserID)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		return ItemResult{
			ItemID:           id,
			Success:          false,
			Message:          err.Error(),
			ErrorCode:        ErrCodeProcessing,
			ProcessingTimeMS: elapsed,
		}
	}

	code := ar.ErrorCode
	if !ar.Success && code == "" {
		code = ErrCodeUnknown
	}
	return ItemResult{
		ItemID:           id,
		Success:          ar.Success,
		Message:          ar.Message,
		ErrorCode:        code,
		ProcessingTimeMS: elapsed,
	}
}

// itemName resolves a display name for the current item, falling back to a
// generic label when the lookup fails.
func (s *Service) itemName(ctx context.Context, id int64) string {
	rec, err := s.polls.Lookup(ctx, id)
	if err != nil || rec == nil || rec.Name == "" {
		return fmt.Sprintf("Poll %d", id)
	}
	return rec.Name
}

func (s *Service) stopRequested(ctx context.Context, h *operationHandle) bool {
	if h.cancelled.Load() {
		return true
	}
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

func (s *Service) markCancelled(prog *Progress) {
	now := time.Now()
	prog.Status = StatusCancelled
	prog.CompletionTime = &now
	prog.CurrentItemID = 0
	prog.CurrentItemName = ""
	prog.EstimatedCompletion = nil
	prog.LastUpdateTime = now
	s.store.Put(prog)
}

// buildResult freezes the terminal view of the operation.
func buildResult(prog *Progress, items []ItemResult) *Result {
	res := &Result{
		OperationID:   prog.OperationID,
		OperationType: prog.OperationType,
		AdminUserID:   prog.AdminUserID,
		Status:        prog.Status,
		TotalItems:    prog.TotalItems,
		Successful:    []int64{},
		Failed:        []int64{},
		Items:         items,
		Errors:        append([]OperationError{}, prog.Errors...),
		StartTime:     prog.StartTime,
	}
	for _, item := range items {
		if item.Success {
			res.Successful = append(res.Successful, item.ItemID)
		} else {
			res.Failed = append(res.Failed, item.ItemID)
		}
	}
	if prog.CompletionTime != nil {
		res.CompletionTime = *prog.CompletionTime
	} else {
		res.CompletionTime = time.Now()
	}
	res.DurationMS = res.CompletionTime.Sub(prog.StartTime).Milliseconds()
	return res
}
