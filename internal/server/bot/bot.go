// Package bot routes Telegram updates to the gate and key services. Every
// private message passes the subscription gate before anything else runs.
package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/vpnkeeper/internal/common"
	"github.com/dmitrijs2005/vpnkeeper/internal/logging"
	"github.com/dmitrijs2005/vpnkeeper/internal/server/models"
	"github.com/dmitrijs2005/vpnkeeper/internal/server/services"
	"github.com/dmitrijs2005/vpnkeeper/internal/server/telegram"
	"golang.org/x/sync/semaphore"
)

// API is the part of the Bot API the router uses.
type API interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]telegram.Update, error)
	SendMessage(ctx context.Context, chatID int64, text string, markup *telegram.InlineKeyboardMarkup) error
	SendPhoto(ctx context.Context, chatID int64, png []byte, caption string, markup *telegram.InlineKeyboardMarkup) error
	AnswerCallbackQuery(ctx context.Context, id, text string) error
	GetChat(ctx context.Context, chatID int64) (*telegram.Chat, error)
}

type Gate interface {
	Contact(ctx context.Context, p services.Profile) (services.State, *models.User, error)
	Confirm(ctx context.Context, identity int64) (services.State, error)
	UserCount(ctx context.Context) (int64, error)
}

type Keys interface {
	Grant(ctx context.Context, identity int64, serverID string) (*models.VPNKey, error)
	Revoke(ctx context.Context, identity int64, keyID string) error
	Usage(ctx context.Context, identity int64) (services.Usage, error)
	List(ctx context.Context, identity int64) ([]*models.VPNKey, error)
	Get(ctx context.Context, identity int64, keyID string) (*models.VPNKey, error)
}

type Servers interface {
	Create(ctx context.Context, s *models.Server) (*models.Server, error)
	List(ctx context.Context) ([]*models.Server, error)
	Delete(ctx context.Context, id string) error
}

type Groups interface {
	Observe(ctx context.Context, g *models.Group) (bool, error)
}

// QRSource loads rendered QR images by reference.
type QRSource interface {
	Get(ctx context.Context, ref string) ([]byte, error)
}

// linker is implemented by stores that can hand out temporary links.
type linker interface {
	PresignedURL(ctx context.Context, ref string) (string, error)
}

type Options struct {
	ChannelID   string
	PollTimeout time.Duration
	Workers     int
}

type Bot struct {
	api     API
	gate    Gate
	keys    Keys
	servers Servers
	groups  Groups
	qr      QRSource

	channelID   string
	pollTimeout time.Duration
	workers     int64
	sem         *semaphore.Weighted
	log         logging.Logger

	// retryDelay is the pause after a failed poll.
	retryDelay time.Duration
}

func New(api API, gate Gate, keys Keys, servers Servers, groups Groups, qr QRSource, opts Options, log logging.Logger) *Bot {
	workers := int64(opts.Workers)
	if workers <= 0 {
		workers = 1
	}
	return &Bot{
		api:         api,
		gate:        gate,
		keys:        keys,
		servers:     servers,
		groups:      groups,
		qr:          qr,
		channelID:   opts.ChannelID,
		pollTimeout: opts.PollTimeout,
		workers:     workers,
		sem:         semaphore.NewWeighted(workers),
		log:         log.With("module", "bot"),
		retryDelay:  3 * time.Second,
	}
}

// Run long-polls for updates until ctx is done. Each update is handled on its
// own goroutine, at most Workers at a time. In-flight handlers are waited for
// before Run returns.
func (b *Bot) Run(ctx context.Context) error {
	b.log.Info(ctx, "Starting bot", "workers", b.workers, "channel", b.channelID)

	var offset int64
	for {
		updates, err := b.api.GetUpdates(ctx, offset, b.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			b.log.Warn(ctx, "getUpdates failed", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(b.retryDelay):
			}
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			if err := b.sem.Acquire(ctx, 1); err != nil {
				break
			}
			go func(u telegram.Update) {
				defer b.sem.Release(1)
				b.Handle(ctx, u)
			}(u)
		}

		if ctx.Err() != nil {
			break
		}
	}

	// drain in-flight handlers
	_ = b.sem.Acquire(context.Background(), b.workers)
	b.sem.Release(b.workers)

	b.log.Info(ctx, "Bot stopped")
	return nil
}

// Handle processes a single update. Panics are logged, not propagated.
func (b *Bot) Handle(ctx context.Context, u telegram.Update) {
	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("%w: update handler panicked: %v", common.ErrorInternal, p)
			b.log.Error(ctx, err.Error(), "update_id", u.UpdateID, "error", err)
		}
	}()

	switch {
	case u.Message != nil:
		b.handleMessage(ctx, u.Message)
	case u.CallbackQuery != nil:
		b.handleCallback(ctx, u.CallbackQuery)
	case u.MyChatMember != nil:
		if !u.MyChatMember.Chat.IsPrivate() {
			b.observeGroup(ctx, u.MyChatMember.Chat)
		}
	}
}
