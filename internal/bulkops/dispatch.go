package bulkops

import (
	"context"
	"fmt"
	"time"
)

// dispatch routes one item to the poll administration method matching the
// operation type. The switch is exhaustive over the known types; validate
// already rejected anything else.
func (s *Service) dispatch(ctx context.Context, op OperationType, id int64, params map[string]interface{}, actor string) (ActionResult, error) {
	switch op {
	case OpClose:
		return s.polls.Close(ctx, id, actor)
	case OpDelete:
		return s.polls.Delete(ctx, id, actor)
	case OpReopen:
		return s.polls.Reopen(ctx, id, actor, reopenOptionsFrom(params))
	case OpUpdateStatus:
		newStatus, _ := params["new_status"].(string)
		if newStatus == "" {
			return ActionResult{
				Success:   false,
				Message:   "parameter new_status is required",
				ErrorCode: "MISSING_PARAMETER",
			}, nil
		}
		return s.polls.UpdateStatus(ctx, id, newStatus, actor)
	case OpUpdateSettings:
		settings, _ := params["settings"].(map[string]interface{})
		if settings == nil {
			settings = params
		}
		if len(settings) == 0 {
			return ActionResult{
				Success:   false,
				Message:   "no settings provided",
				ErrorCode: "MISSING_PARAMETER",
			}, nil
		}
		return s.polls.UpdateSettings(ctx, id, settings, actor)
	case OpExport:
		return s.polls.Export(ctx, id, actor)
	default:
		return ActionResult{}, fmt.Errorf("no handler for operation type %q", op)
	}
}

// reopenOptionsFrom extracts the optional reopen parameters. JSON numbers
// arrive as float64, timestamps as RFC3339 strings.
func reopenOptionsFrom(params map[string]interface{}) ReopenOptions {
	var opts ReopenOptions
	if params == nil {
		return opts
	}
	if hours, ok := params["extend_hours"].(float64); ok {
		opts.ExtendHours = int(hours)
	}
	if reset, ok := params["reset_votes"].(bool); ok {
		opts.ResetVotes = reset
	}
	if raw, ok := params["new_close_time"].(string); ok && raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			opts.NewCloseTime = &t
		}
	}
	return opts
}
