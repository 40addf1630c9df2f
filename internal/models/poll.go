package models

import "time"

// Poll status values.
const (
	PollStatusActive    = "active"
	PollStatusScheduled = "scheduled"
	PollStatusClosed    = "closed"
	PollStatusArchived  = "archived"
)

// ValidPollStatus reports whether s is one of the known poll statuses.
func ValidPollStatus(s string) bool {
	switch s {
	case PollStatusActive, PollStatusScheduled, PollStatusClosed, PollStatusArchived:
		return true
	}
	return false
}

// Poll is a Discord poll managed by the admin tool. The Discord message is a
// projection of this row; the database is the source of truth.
type Poll struct {
	ID        int64      `gorm:"primaryKey" json:"id"`
	Question  string     `gorm:"not null" json:"question"`
	GuildID   string     `gorm:"index;column:guild_id" json:"guild_id"`
	ChannelID string     `gorm:"column:channel_id" json:"channel_id"`
	MessageID string     `gorm:"column:message_id" json:"message_id"`
	CreatorID string     `gorm:"column:creator_id" json:"creator_id"`
	Status    string     `gorm:"not null;default:active;index" json:"status"`
	Settings  string     `gorm:"type:text" json:"settings"` // JSON blob
	OpensAt   *time.Time `json:"opens_at,omitempty"`
	ClosesAt  *time.Time `json:"closes_at,omitempty"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Poll) TableName() string {
	return "polls"
}

// PollOption is one answer choice of a poll.
type PollOption struct {
	ID       int64  `gorm:"primaryKey" json:"id"`
	PollID   int64  `gorm:"index;not null;column:poll_id" json:"poll_id"`
	Label    string `gorm:"not null" json:"label"`
	Emoji    string `json:"emoji"`
	Position int    `gorm:"not null;default:0" json:"position"`
}

// TableName specifies the table name for GORM
func (PollOption) TableName() string {
	return "poll_options"
}

// Vote records one user's vote on one option.
type Vote struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	PollID    int64     `gorm:"index;not null;column:poll_id" json:"poll_id"`
	OptionID  int64     `gorm:"index;not null;column:option_id" json:"option_id"`
	UserID    string    `gorm:"not null;column:user_id" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM
func (Vote) TableName() string {
	return "votes"
}
