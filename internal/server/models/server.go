// Package models defines the entities persisted by the vpnkeeper store.
package models

import "time"

// Server is a VPN endpoint keys are issued against.
type Server struct {
	ID        string
	Username  string
	Password  string
	Location  string
	IPAddress string
	// PublicKey is optional; nil when the server has none.
	PublicKey *string
	Port      int
	CreatedAt time.Time
}
