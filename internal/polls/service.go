package polls

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"pollboard/internal/bulkops"
	"pollboard/internal/discord"
	"pollboard/internal/models"
)

// Service is the poll administration backend: every mutation goes through it.
// The database is the source of truth; the Discord message is updated
// best-effort and a sync failure never fails the mutation.
type Service struct {
	db      *gorm.DB
	discord *discord.Client // nil when Discord sync is disabled
}

// NewService creates a new poll administration service. dc may be nil.
func NewService(db *gorm.DB, dc *discord.Client) *Service {
	return &Service{db: db, discord: dc}
}

// Lookup returns the poll's id, name and status, or (nil, nil) if it does not exist.
func (s *Service) Lookup(ctx context.Context, id int64) (*bulkops.PollRecord, error) {
	var poll models.Poll
	if err := s.db.WithContext(ctx).First(&poll, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load poll %d: %w", id, err)
	}
	return &bulkops.PollRecord{ID: poll.ID, Name: poll.Question, Status: poll.Status}, nil
}

// Close transitions an active or scheduled poll to closed.
func (s *Service) Close(ctx context.Context, id int64, actor string) (bulkops.ActionResult, error) {
	poll, res, err := s.load(ctx, id)
	if poll == nil {
		return res, err
	}

	if poll.Status != models.PollStatusActive && poll.Status != models.PollStatusScheduled {
		return failure(fmt.Sprintf("poll %q is %s and cannot be closed", poll.Question, poll.Status), "INVALID_STATE"), nil
	}

	now := time.Now()
	poll.Status = models.PollStatusClosed
	poll.ClosedAt = &now
	if err := s.db.WithContext(ctx).Save(poll).Error; err != nil {
		return bulkops.ActionResult{}, fmt.Errorf("failed to close poll %d: %w", id, err)
	}

	warning := s.syncClosed(poll)
	log.Printf("Poll %d closed by %s", id, actor)
	return success(fmt.Sprintf("Closed poll %q%s", poll.Question, warning)), nil
}

// Delete removes the poll, its options and votes, and best-effort deletes the
// Discord message.
func (s *Service) Delete(ctx context.Context, id int64, actor string) (bulkops.ActionResult, error) {
	poll, res, err := s.load(ctx, id)
	if poll == nil {
		return res, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.Vote{}, "poll_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.PollOption{}, "poll_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Poll{}, "id = ?", id).Error
	})
	if err != nil {
		return bulkops.ActionResult{}, fmt.Errorf("failed to delete poll %d: %w", id, err)
	}

	warning := ""
	if s.discord != nil && poll.MessageID != "" {
		if derr := s.discord.DeleteMessage(poll.ChannelID, poll.MessageID); derr != nil {
			log.Printf("WARNING: Failed to delete Discord message for poll %d: %v", id, derr)
			warning = " (Discord message not removed)"
		}
	}

	log.Printf("Poll %d deleted by %s", id, actor)
	return success(fmt.Sprintf("Deleted poll %q%s", poll.Question, warning)), nil
}

// Reopen transitions a closed poll back to active, optionally extending the
// close time and resetting votes.
func (s *Service) Reopen(ctx context.Context, id int64, actor string, opts bulkops.ReopenOptions) (bulkops.ActionResult, error) {
	poll, res, err := s.load(ctx, id)
	if poll == nil {
		return res, err
	}

	if poll.Status != models.PollStatusClosed {
		return failure(fmt.Sprintf("poll %q is %s; only closed polls can be reopened", poll.Question, poll.Status), "INVALID_STATE"), nil
	}

	poll.Status = models.PollStatusActive
	poll.ClosedAt = nil
	switch {
	case opts.NewCloseTime != nil:
		poll.ClosesAt = opts.NewCloseTime
	case opts.ExtendHours > 0:
		closesAt := time.Now().Add(time.Duration(opts.ExtendHours) * time.Hour)
		poll.ClosesAt = &closesAt
	default:
		poll.ClosesAt = nil // open-ended
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if opts.ResetVotes {
			if err := tx.Delete(&models.Vote{}, "poll_id = ?", id).Error; err != nil {
				return err
			}
		}
		return tx.Save(poll).Error
	})
	if err != nil {
		return bulkops.ActionResult{}, fmt.Errorf("failed to reopen poll %d: %w", id, err)
	}

	msg := fmt.Sprintf("Reopened poll %q", poll.Question)
	if opts.ResetVotes {
		msg += " with votes reset"
	}
	log.Printf("Poll %d reopened by %s", id, actor)
	return success(msg), nil
}

// UpdateStatus sets the poll to any valid status, recording the transition.
func (s *Service) UpdateStatus(ctx context.Context, id int64, newStatus string, actor string) (bulkops.ActionResult, error) {
	if !models.ValidPollStatus(newStatus) {
		return failure(fmt.Sprintf("unknown poll status %q", newStatus), "INVALID_STATUS"), nil
	}

	poll, res, err := s.load(ctx, id)
	if poll == nil {
		return res, err
	}

	oldStatus := poll.Status
	poll.Status = newStatus
	now := time.Now()
	switch newStatus {
	case models.PollStatusClosed:
		poll.ClosedAt = &now
	case models.PollStatusActive:
		poll.ClosedAt = nil
	}
	if err := s.db.WithContext(ctx).Save(poll).Error; err != nil {
		return bulkops.ActionResult{}, fmt.Errorf("failed to update status of poll %d: %w", id, err)
	}

	log.Printf("Poll %d status changed from %s to %s by %s", id, oldStatus, newStatus, actor)
	return success(fmt.Sprintf("Poll %q status changed from %s to %s", poll.Question, oldStatus, newStatus)), nil
}

// UpdateSettings merges the given keys into the poll's settings JSON blob.
func (s *Service) UpdateSettings(ctx context.Context, id int64, settings map[string]interface{}, actor string) (bulkops.ActionResult, error) {
	poll, res, err := s.load(ctx, id)
	if poll == nil {
		return res, err
	}

	current := map[string]interface{}{}
	if poll.Settings != "" {
		if err := json.Unmarshal([]byte(poll.Settings), &current); err != nil {
			return failure(fmt.Sprintf("poll %d has corrupt settings: %v", id, err), "CORRUPT_SETTINGS"), nil
		}
	}
	for k, v := range settings {
		current[k] = v
	}
	merged, err := json.Marshal(current)
	if err != nil {
		return bulkops.ActionResult{}, fmt.Errorf("failed to marshal settings for poll %d: %w", id, err)
	}

	poll.Settings = string(merged)
	if err := s.db.WithContext(ctx).Save(poll).Error; err != nil {
		return bulkops.ActionResult{}, fmt.Errorf("failed to update settings of poll %d: %w", id, err)
	}

	log.Printf("Poll %d settings updated by %s (%d key(s))", id, actor, len(settings))
	return success(fmt.Sprintf("Updated %d setting(s) on poll %q", len(settings), poll.Question)), nil
}

// Export returns the poll, its options and per-option vote tallies.
func (s *Service) Export(ctx context.Context, id int64, actor string) (bulkops.ActionResult, error) {
	poll, res, err := s.load(ctx, id)
	if poll == nil {
		return res, err
	}

	var options []models.PollOption
	if err := s.db.WithContext(ctx).Order("position").Find(&options, "poll_id = ?", id).Error; err != nil {
		return bulkops.ActionResult{}, fmt.Errorf("failed to load options of poll %d: %w", id, err)
	}

	type tallyRow struct {
		OptionID int64
		Count    int64
	}
	var rows []tallyRow
	err = s.db.WithContext(ctx).Model(&models.Vote{}).
		Select("option_id, count(*) as count").
		Where("poll_id = ?", id).
		Group("option_id").
		Scan(&rows).Error
	if err != nil {
		return bulkops.ActionResult{}, fmt.Errorf("failed to tally votes of poll %d: %w", id, err)
	}

	tallies := make(map[int64]int64, len(rows))
	var total int64
	for _, row := range rows {
		tallies[row.OptionID] = row.Count
		total += row.Count
	}

	result := success(fmt.Sprintf("Exported poll %q (%d vote(s))", poll.Question, total))
	result.Data = map[string]interface{}{
		"poll":        poll,
		"options":     options,
		"tallies":     tallies,
		"total_votes": total,
	}
	return result, nil
}

// ActivateDuePolls flips scheduled polls whose open time has passed to active.
func (s *Service) ActivateDuePolls(ctx context.Context) (int, error) {
	result := s.db.WithContext(ctx).Model(&models.Poll{}).
		Where("status = ? AND opens_at IS NOT NULL AND opens_at <= ?", models.PollStatusScheduled, time.Now()).
		Update("status", models.PollStatusActive)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to activate due polls: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}

// CloseDuePolls closes active polls whose close time has passed.
func (s *Service) CloseDuePolls(ctx context.Context) (int, error) {
	var due []models.Poll
	err := s.db.WithContext(ctx).
		Where("status = ? AND closes_at IS NOT NULL AND closes_at <= ?", models.PollStatusActive, time.Now()).
		Find(&due).Error
	if err != nil {
		return 0, fmt.Errorf("failed to find due polls: %w", err)
	}

	closed := 0
	for i := range due {
		res, err := s.Close(ctx, due[i].ID, "scheduler")
		if err != nil {
			log.Printf("WARNING: Failed to auto-close poll %d: %v", due[i].ID, err)
			continue
		}
		if res.Success {
			closed++
		}
	}
	return closed, nil
}

// load fetches the poll. When it does not exist it returns (nil, not-found
// ActionResult, nil); other lookup failures return (nil, zero, err).
func (s *Service) load(ctx context.Context, id int64) (*models.Poll, bulkops.ActionResult, error) {
	var poll models.Poll
	if err := s.db.WithContext(ctx).First(&poll, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, failure(fmt.Sprintf("poll %d not found", id), "NOT_FOUND"), nil
		}
		return nil, bulkops.ActionResult{}, fmt.Errorf("failed to load poll %d: %w", id, err)
	}
	return &poll, bulkops.ActionResult{}, nil
}

// syncClosed updates the Discord side of a closed poll. Returns a message
// suffix describing any degradation.
func (s *Service) syncClosed(poll *models.Poll) string {
	if s.discord == nil || poll.MessageID == "" {
		return ""
	}
	if err := s.discord.ClearReactions(poll.ChannelID, poll.MessageID); err != nil {
		log.Printf("WARNING: Failed to clear reactions for poll %d: %v", poll.ID, err)
		return " (Discord reactions not cleared)"
	}
	return ""
}

func success(msg string) bulkops.ActionResult {
	return bulkops.ActionResult{Success: true, Message: msg}
}

func failure(msg, code string) bulkops.ActionResult {
	return bulkops.ActionResult{Success: false, Message: msg, ErrorCode: code}
}
