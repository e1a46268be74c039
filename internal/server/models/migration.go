package models

import "time"

// Migration is a ledger row for a named one-off routine that has been applied.
type Migration struct {
	ID        string
	Name      string
	AppliedAt time.Time
}
