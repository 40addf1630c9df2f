package polls

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"pollboard/internal/bulkops"
	"pollboard/internal/database"
	"pollboard/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// Named shared-cache in-memory database so the connection pool sees one DB
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	return db
}

func seedPoll(t *testing.T, db *gorm.DB, id int64, status string) models.Poll {
	t.Helper()
	poll := models.Poll{
		ID:        id,
		Question:  fmt.Sprintf("Question %d", id),
		GuildID:   "guild-1",
		ChannelID: "chan-1",
		CreatorID: "creator-1",
		Status:    status,
	}
	require.NoError(t, db.Create(&poll).Error)
	return poll
}

func TestLookup(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)
	ctx := context.Background()

	t.Run("Should return the poll record", func(t *testing.T) {
		seedPoll(t, db, 1, models.PollStatusActive)

		rec, err := svc.Lookup(ctx, 1)
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, int64(1), rec.ID)
		assert.Equal(t, "Question 1", rec.Name)
		assert.Equal(t, models.PollStatusActive, rec.Status)
	})

	t.Run("Should return nil for a missing poll", func(t *testing.T) {
		rec, err := svc.Lookup(ctx, 999)
		require.NoError(t, err)
		assert.Nil(t, rec)
	})
}

func TestClose(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)
	ctx := context.Background()

	t.Run("Should close an active poll", func(t *testing.T) {
		seedPoll(t, db, 1, models.PollStatusActive)

		res, err := svc.Close(ctx, 1, "admin-1")
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Contains(t, res.Message, "Question 1")

		var poll models.Poll
		require.NoError(t, db.First(&poll, "id = ?", 1).Error)
		assert.Equal(t, models.PollStatusClosed, poll.Status)
		assert.NotNil(t, poll.ClosedAt)
	})

	t.Run("Should close a scheduled poll", func(t *testing.T) {
		seedPoll(t, db, 2, models.PollStatusScheduled)

		res, err := svc.Close(ctx, 2, "admin-1")
		require.NoError(t, err)
		assert.True(t, res.Success)
	})

	t.Run("Should refuse to close an already closed poll", func(t *testing.T) {
		seedPoll(t, db, 3, models.PollStatusClosed)

		res, err := svc.Close(ctx, 3, "admin-1")
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, "INVALID_STATE", res.ErrorCode)
	})

	t.Run("Should report a missing poll", func(t *testing.T) {
		res, err := svc.Close(ctx, 999, "admin-1")
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, "NOT_FOUND", res.ErrorCode)
	})
}

func TestDelete(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)
	ctx := context.Background()

	t.Run("Should remove the poll with its options and votes", func(t *testing.T) {
		seedPoll(t, db, 1, models.PollStatusClosed)
		require.NoError(t, db.Create(&models.PollOption{ID: 11, PollID: 1, Label: "Yes"}).Error)
		require.NoError(t, db.Create(&models.Vote{PollID: 1, OptionID: 11, UserID: "voter-1"}).Error)

		res, err := svc.Delete(ctx, 1, "admin-1")
		require.NoError(t, err)
		assert.True(t, res.Success)

		var count int64
		db.Model(&models.Poll{}).Where("id = ?", 1).Count(&count)
		assert.Zero(t, count)
		db.Model(&models.PollOption{}).Where("poll_id = ?", 1).Count(&count)
		assert.Zero(t, count)
		db.Model(&models.Vote{}).Where("poll_id = ?", 1).Count(&count)
		assert.Zero(t, count)
	})
}

func TestReopen(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)
	ctx := context.Background()

	t.Run("Should reopen a closed poll with an extended close time", func(t *testing.T) {
		seedPoll(t, db, 1, models.PollStatusClosed)

		res, err := svc.Reopen(ctx, 1, "admin-1", bulkops.ReopenOptions{ExtendHours: 2})
		require.NoError(t, err)
		assert.True(t, res.Success)

		var poll models.Poll
		require.NoError(t, db.First(&poll, "id = ?", 1).Error)
		assert.Equal(t, models.PollStatusActive, poll.Status)
		assert.Nil(t, poll.ClosedAt)
		require.NotNil(t, poll.ClosesAt)
		assert.WithinDuration(t, time.Now().Add(2*time.Hour), *poll.ClosesAt, time.Minute)
	})

	t.Run("Should reset votes when requested", func(t *testing.T) {
		seedPoll(t, db, 2, models.PollStatusClosed)
		require.NoError(t, db.Create(&models.Vote{PollID: 2, OptionID: 21, UserID: "voter-1"}).Error)

		res, err := svc.Reopen(ctx, 2, "admin-1", bulkops.ReopenOptions{ResetVotes: true})
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Contains(t, res.Message, "votes reset")

		var count int64
		db.Model(&models.Vote{}).Where("poll_id = ?", 2).Count(&count)
		assert.Zero(t, count)
	})

	t.Run("Should refuse to reopen a poll that is not closed", func(t *testing.T) {
		seedPoll(t, db, 3, models.PollStatusActive)

		res, err := svc.Reopen(ctx, 3, "admin-1", bulkops.ReopenOptions{})
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, "INVALID_STATE", res.ErrorCode)
	})
}

func TestUpdateStatus(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)
	ctx := context.Background()

	t.Run("Should report the old and new status", func(t *testing.T) {
		seedPoll(t, db, 1, models.PollStatusActive)

		res, err := svc.UpdateStatus(ctx, 1, models.PollStatusArchived, "admin-1")
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Contains(t, res.Message, "from active to archived")
	})

	t.Run("Should set the closed timestamp when closing via status update", func(t *testing.T) {
		seedPoll(t, db, 2, models.PollStatusActive)

		res, err := svc.UpdateStatus(ctx, 2, models.PollStatusClosed, "admin-1")
		require.NoError(t, err)
		assert.True(t, res.Success)

		var poll models.Poll
		require.NoError(t, db.First(&poll, "id = ?", 2).Error)
		assert.NotNil(t, poll.ClosedAt)
	})

	t.Run("Should reject unknown statuses", func(t *testing.T) {
		seedPoll(t, db, 3, models.PollStatusActive)

		res, err := svc.UpdateStatus(ctx, 3, "bogus", "admin-1")
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, "INVALID_STATUS", res.ErrorCode)
	})
}

func TestUpdateSettings(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)
	ctx := context.Background()

	t.Run("Should merge new keys into existing settings", func(t *testing.T) {
		poll := seedPoll(t, db, 1, models.PollStatusActive)
		poll.Settings = `{"anonymous":true,"max_votes":1}`
		require.NoError(t, db.Save(&poll).Error)

		res, err := svc.UpdateSettings(ctx, 1, map[string]interface{}{"max_votes": 3, "show_results": false}, "admin-1")
		require.NoError(t, err)
		assert.True(t, res.Success)

		var updated models.Poll
		require.NoError(t, db.First(&updated, "id = ?", 1).Error)

		var settings map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(updated.Settings), &settings))
		assert.Equal(t, true, settings["anonymous"])
		assert.Equal(t, float64(3), settings["max_votes"])
		assert.Equal(t, false, settings["show_results"])
	})
}

func TestExport(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)
	ctx := context.Background()

	t.Run("Should export the poll with per-option tallies", func(t *testing.T) {
		seedPoll(t, db, 1, models.PollStatusClosed)
		require.NoError(t, db.Create(&models.PollOption{ID: 11, PollID: 1, Label: "Yes", Position: 0}).Error)
		require.NoError(t, db.Create(&models.PollOption{ID: 12, PollID: 1, Label: "No", Position: 1}).Error)
		for i, optionID := range []int64{11, 11, 12} {
			require.NoError(t, db.Create(&models.Vote{PollID: 1, OptionID: optionID, UserID: fmt.Sprintf("voter-%d", i)}).Error)
		}

		res, err := svc.Export(ctx, 1, "admin-1")
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Contains(t, res.Message, "3 vote(s)")

		require.NotNil(t, res.Data)
		tallies, ok := res.Data["tallies"].(map[int64]int64)
		require.True(t, ok)
		assert.Equal(t, int64(2), tallies[11])
		assert.Equal(t, int64(1), tallies[12])
		assert.Equal(t, int64(3), res.Data["total_votes"])
	})
}

func TestDuePolls(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil)
	ctx := context.Background()

	t.Run("Should activate scheduled polls whose open time has passed", func(t *testing.T) {
		past := time.Now().Add(-time.Hour)
		future := time.Now().Add(time.Hour)

		due := seedPoll(t, db, 1, models.PollStatusScheduled)
		due.OpensAt = &past
		require.NoError(t, db.Save(&due).Error)

		notYet := seedPoll(t, db, 2, models.PollStatusScheduled)
		notYet.OpensAt = &future
		require.NoError(t, db.Save(&notYet).Error)

		activated, err := svc.ActivateDuePolls(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, activated)

		var poll models.Poll
		require.NoError(t, db.First(&poll, "id = ?", 1).Error)
		assert.Equal(t, models.PollStatusActive, poll.Status)

		poll = models.Poll{}
		require.NoError(t, db.First(&poll, "id = ?", 2).Error)
		assert.Equal(t, models.PollStatusScheduled, poll.Status)
	})

	t.Run("Should close active polls whose close time has passed", func(t *testing.T) {
		past := time.Now().Add(-time.Hour)

		due := seedPoll(t, db, 3, models.PollStatusActive)
		due.ClosesAt = &past
		require.NoError(t, db.Save(&due).Error)

		openEnded := seedPoll(t, db, 4, models.PollStatusActive)
		require.NoError(t, db.Save(&openEnded).Error)

		closed, err := svc.CloseDuePolls(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, closed)

		var poll models.Poll
		require.NoError(t, db.First(&poll, "id = ?", 3).Error)
		assert.Equal(t, models.PollStatusClosed, poll.Status)

		poll = models.Poll{}
		require.NoError(t, db.First(&poll, "id = ?", 4).Error)
		assert.Equal(t, models.PollStatusActive, poll.Status)
	})
}
