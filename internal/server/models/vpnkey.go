package models

import "time"

// KeyStatus is the lifecycle state of a VPNKey. Only KeyStatusValid keys
// count against a user's quota or are shown as usable.
type KeyStatus string

const (
	KeyStatusValid   KeyStatus = "valid"
	KeyStatusRevoked KeyStatus = "revoked"
	KeyStatusExpired KeyStatus = "expired"
)

// VPNKey is a provisioned credential owned by exactly one Server.
type VPNKey struct {
	ID       string
	ServerID string
	Name     string
	// Key is the full connection string (vless://...).
	Key string
	// QRCode references the rendered QR artifact in the artifact store.
	QRCode    string
	Status    KeyStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (k *VPNKey) IsValid() bool {
	return k.Status == KeyStatusValid
}
