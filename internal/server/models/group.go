package models

import "time"

// Group is a chat or channel the bot has seen. Optional fields are nil when
// Telegram did not report them.
type Group struct {
	ID          string
	GroupID     int64
	Title       string
	Description *string
	Bio         *string
	InviteLink  *string
	Location    *string
	UserName    *string
	CreatedAt   time.Time
}
