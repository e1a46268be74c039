// Package services holds the bot's business logic: the subscription gate,
// the per-user key quota, server administration and the migration ledger.
// Services own transaction scope; repositories are bound per call through
// the repomanager.
package services

import (
	"context"

	"github.com/dmitrijs2005/vpnkeeper/internal/server/models"
)

// MembershipChecker answers whether a user currently belongs to a channel.
// Implementations talk to the network and may fail or block.
type MembershipChecker interface {
	IsChannelMember(ctx context.Context, channelID string, userID int64) (bool, error)
}

// ArtifactGenerator provisions the connection string and QR artifact for a
// new key on server. The connection string must be a vless:// URI.
type ArtifactGenerator interface {
	Generate(ctx context.Context, server *models.Server, name string) (connection string, qrRef string, err error)
}

// AllowList is the set of privileged Telegram ids.
type AllowList map[int64]struct{}

func NewAllowList(ids []int64) AllowList {
	a := make(AllowList, len(ids))
	for _, id := range ids {
		a[id] = struct{}{}
	}
	return a
}

func (a AllowList) Contains(id int64) bool {
	_, ok := a[id]
	return ok
}
