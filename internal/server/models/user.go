package models

import "time"

// User is a person talking to the bot. UserID is the Telegram identity.
type User struct {
	ID       string
	UserID   int64
	FullName string
	UserName string
	// IsPremium is unknown when nil.
	IsPremium    *bool
	IsSubscribed bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserVPNKey records that a user holds a key.
type UserVPNKey struct {
	ID        string
	UserID    string
	VPNKeyID  string
	CreatedAt time.Time
}
