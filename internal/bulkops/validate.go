package bulkops

import (
	"context"
	"fmt"
	"strings"
)

// eligibleStatuses maps each operation type to the poll statuses it may be
// applied to. A nil set means any status is acceptable. Membership in this map
// also defines the set of known operation types.
var eligibleStatuses = map[OperationType]map[string]bool{
	OpClose:          {"active": true, "scheduled": true},
	OpReopen:         {"closed": true},
	OpDelete:         nil,
	OpUpdateStatus:   nil,
	OpUpdateSettings: nil,
	OpExport:         nil,
}

// validate rejects malformed or ineligible requests before any item runs.
// Every ineligible target is reported, not just the first.
func (s *Service) validate(ctx context.Context, req Request) error {
	allowed, known := eligibleStatuses[req.OperationType]
	if !known {
		return &ValidationError{
			Code:    CodeBadOperation,
			Message: fmt.Sprintf("unknown operation type %q", req.OperationType),
		}
	}

	if len(req.TargetIDs) == 0 {
		return &ValidationError{
			Code:    CodeNoTargets,
			Message: "at least one target poll id is required",
		}
	}

	var malformed []int64
	for _, id := range req.TargetIDs {
		if id <= 0 {
			malformed = append(malformed, id)
		}
	}
	if len(malformed) > 0 {
		return &ValidationError{
			Code:       CodeBadTargets,
			Message:    "target poll ids must be positive",
			InvalidIDs: malformed,
		}
	}

	if req.OperationType == OpDelete && strings.TrimSpace(req.ConfirmationCode) == "" {
		return &ValidationError{
			Code:    CodeConfirmationRequired,
			Message: "bulk delete requires a confirmation code",
		}
	}

	var invalid []int64
	for _, id := range req.TargetIDs {
		rec, err := s.polls.Lookup(ctx, id)
		if err != nil || rec == nil {
			invalid = append(invalid, id)
			continue
		}
		if allowed != nil && !allowed[rec.Status] {
			invalid = append(invalid, id)
		}
	}
	if len(invalid) > 0 {
		return &ValidationError{
			Code:       CodeIneligibleTargets,
			Message:    fmt.Sprintf("%d poll(s) do not exist or are not eligible for %s", len(invalid), req.OperationType),
			InvalidIDs: invalid,
		}
	}

	return nil
}
