package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/vpnkeeper/internal/common"
	"github.com/dmitrijs2005/vpnkeeper/internal/server/models"
	"github.com/dmitrijs2005/vpnkeeper/internal/server/services"
	"github.com/dmitrijs2005/vpnkeeper/internal/server/telegram"
)

func profileOf(u *telegram.User) services.Profile {
	return services.Profile{
		UserID:    u.ID,
		FullName:  u.FullName(),
		UserName:  u.Username,
		IsPremium: u.IsPremium,
	}
}

// parseCommand splits "/cmd@botname arg1 arg2" into "cmd" and its args.
func parseCommand(text string) (string, []string) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil
	}
	cmd := strings.TrimPrefix(fields[0], "/")
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	return strings.ToLower(cmd), fields[1:]
}

func (b *Bot) send(ctx context.Context, chatID int64, text string, markup *telegram.InlineKeyboardMarkup) {
	if err := b.api.SendMessage(ctx, chatID, text, markup); err != nil {
		b.log.Warn(ctx, "sendMessage failed", "chat_id", chatID, "error", err)
	}
}

// internal marks err as an unexpected fault.
func internal(err error) error {
	if errors.Is(err, common.ErrorInternal) {
		return err
	}
	return fmt.Errorf("%w: %w", common.ErrorInternal, err)
}

// userError turns a service error into the message shown to the user.
// Anything without a user-facing meaning is logged as common.ErrorInternal
// and reported generically.
func (b *Bot) userError(ctx context.Context, identity int64, err error) string {
	switch {
	case errors.Is(err, common.ErrQuotaExceeded):
		if u, uerr := b.keys.Usage(ctx, identity); uerr == nil {
			return fmt.Sprintf(textQuotaExceeded, u.Count, u.Max)
		}
		return fmt.Sprintf(textQuotaExceeded, services.DefaultMaxKeys, services.DefaultMaxKeys)
	case errors.Is(err, common.ErrExternalCollaborator):
		b.log.Warn(ctx, "external collaborator failed", "user_id", identity, "error", err)
		return textGenerateLater
	case errors.Is(err, common.ErrInvalidArgument):
		return err.Error()
	}
	b.log.Error(ctx, "request failed", "user_id", identity, "error", internal(err))
	return textFailure
}

func (b *Bot) handleMessage(ctx context.Context, m *telegram.Message) {
	if m.From == nil || m.From.IsBot {
		return
	}
	cmd, args := parseCommand(m.Text)

	if !m.Chat.IsPrivate() {
		if cmd == "start" {
			b.send(ctx, m.Chat.ID, textGroupGreeting, nil)
			b.observeGroup(ctx, m.Chat)
			if _, _, err := b.gate.Contact(ctx, profileOf(m.From)); err != nil {
				b.log.Error(ctx, "contact failed", "user_id", m.From.ID, "error", err)
			}
		}
		return
	}

	state, user, err := b.gate.Contact(ctx, profileOf(m.From))
	if err != nil {
		b.send(ctx, m.Chat.ID, b.userError(ctx, m.From.ID, err), nil)
		return
	}
	if !state.Open() {
		text, markup := subscribePrompt(b.channelID)
		b.send(ctx, m.Chat.ID, text, markup)
		return
	}

	admin := state == services.StatePrivileged
	switch cmd {
	case "start":
		b.cmdStart(ctx, m.Chat.ID, user, admin)
	case "location":
		b.cmdLocation(ctx, m.Chat.ID)
	case "keys":
		b.cmdKeys(ctx, m.Chat.ID, user)
	case "instruction":
		b.send(ctx, m.Chat.ID, textInstruction, nil)
	case "add_server", "servers", "del_server", "stats":
		if !admin {
			b.send(ctx, m.Chat.ID, commandList(userCommands), nil)
			return
		}
		b.adminCommand(ctx, m.Chat.ID, cmd, args)
	default:
		cmds := commandList(userCommands)
		if admin {
			cmds = commandList(userCommands, adminCommands)
		}
		b.send(ctx, m.Chat.ID, cmds, nil)
	}
}

func (b *Bot) cmdStart(ctx context.Context, chatID int64, user *models.User, admin bool) {
	if admin {
		b.send(ctx, chatID, adminGreeting(user.FullName), nil)
		return
	}
	usage, err := b.keys.Usage(ctx, user.UserID)
	if err != nil {
		b.send(ctx, chatID, b.userError(ctx, user.UserID, err), nil)
		return
	}
	keys, err := b.keys.List(ctx, user.UserID)
	if err != nil {
		b.send(ctx, chatID, b.userError(ctx, user.UserID, err), nil)
		return
	}
	b.log.Info(ctx, "user opened panel", "user_id", user.UserID)
	text, markup := userPanel(user, usage, keys)
	b.send(ctx, chatID, text, markup)
}

func (b *Bot) cmdLocation(ctx context.Context, chatID int64) {
	servers, err := b.servers.List(ctx)
	if err != nil {
		b.send(ctx, chatID, b.userError(ctx, chatID, err), nil)
		return
	}
	if len(servers) == 0 {
		b.send(ctx, chatID, textNoServers, nil)
		return
	}
	b.send(ctx, chatID, textChooseServer, serversMarkup(servers))
}

func (b *Bot) cmdKeys(ctx context.Context, chatID int64, user *models.User) {
	keys, err := b.keys.List(ctx, user.UserID)
	if err != nil {
		b.send(ctx, chatID, b.userError(ctx, user.UserID, err), nil)
		return
	}
	if len(keys) == 0 {
		b.send(ctx, chatID, textNoKeys, nil)
		return
	}
	usage, err := b.keys.Usage(ctx, user.UserID)
	if err != nil {
		b.send(ctx, chatID, b.userError(ctx, user.UserID, err), nil)
		return
	}
	b.send(ctx, chatID, "🔑 Your VPN keys: "+usageLine(usage), keysMarkup(keys))
}

func (b *Bot) adminCommand(ctx context.Context, chatID int64, cmd string, args []string) {
	switch cmd {
	case "add_server":
		if len(args) < 2 {
			b.send(ctx, chatID, textAddServerUsage, nil)
			return
		}
		srv := &models.Server{Location: args[0], IPAddress: args[1]}
		if len(args) > 2 {
			port, err := strconv.Atoi(args[2])
			if err != nil {
				b.send(ctx, chatID, textAddServerUsage, nil)
				return
			}
			srv.Port = port
		}
		if len(args) > 3 {
			srv.PublicKey = &args[3]
		}
		if len(args) > 4 {
			srv.Username = args[4]
		}
		if len(args) > 5 {
			srv.Password = args[5]
		}
		created, err := b.servers.Create(ctx, srv)
		if err != nil {
			if errors.Is(err, common.ErrConstraintViolation) {
				b.send(ctx, chatID, "A server with this ip or public key already exists.", nil)
				return
			}
			b.send(ctx, chatID, b.userError(ctx, chatID, err), nil)
			return
		}
		b.send(ctx, chatID, fmt.Sprintf("Server added: <code>%s</code>", created.ID), nil)

	case "servers":
		servers, err := b.servers.List(ctx)
		if err != nil {
			b.send(ctx, chatID, b.userError(ctx, chatID, err), nil)
			return
		}
		b.send(ctx, chatID, serverList(servers), nil)

	case "del_server":
		if len(args) != 1 {
			b.send(ctx, chatID, textDelServerUsage, nil)
			return
		}
		if err := b.servers.Delete(ctx, args[0]); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				b.send(ctx, chatID, "No such server.", nil)
				return
			}
			b.send(ctx, chatID, b.userError(ctx, chatID, err), nil)
			return
		}
		b.send(ctx, chatID, "Server deleted together with its keys.", nil)

	case "stats":
		n, err := b.gate.UserCount(ctx)
		if err != nil {
			b.send(ctx, chatID, b.userError(ctx, chatID, err), nil)
			return
		}
		b.send(ctx, chatID, fmt.Sprintf("Users: %d", n), nil)
	}
}

func (b *Bot) handleCallback(ctx context.Context, q *telegram.CallbackQuery) {
	chatID := q.From.ID
	if q.Message != nil {
		chatID = q.Message.Chat.ID
	}
	if err := b.api.AnswerCallbackQuery(ctx, q.ID, ""); err != nil {
		b.log.Warn(ctx, "answerCallbackQuery failed", "error", err)
	}

	state, user, err := b.gate.Contact(ctx, profileOf(&q.From))
	if err != nil {
		b.send(ctx, chatID, b.userError(ctx, q.From.ID, err), nil)
		return
	}

	if q.Data == cbSubscribed {
		b.confirm(ctx, chatID, q.From.ID, state)
		return
	}

	if !state.Open() {
		text, markup := subscribePrompt(b.channelID)
		b.send(ctx, chatID, text, markup)
		return
	}

	switch {
	case strings.HasPrefix(q.Data, cbGrant):
		b.grant(ctx, chatID, user, strings.TrimPrefix(q.Data, cbGrant))
	case strings.HasPrefix(q.Data, cbKey):
		b.showKey(ctx, chatID, user, strings.TrimPrefix(q.Data, cbKey))
	case strings.HasPrefix(q.Data, cbRevoke):
		b.revoke(ctx, chatID, user, strings.TrimPrefix(q.Data, cbRevoke))
	default:
		b.log.Debug(ctx, "unknown callback", "data", q.Data)
	}
}

func (b *Bot) confirm(ctx context.Context, chatID, identity int64, state services.State) {
	if !state.Open() {
		var err error
		state, err = b.gate.Confirm(ctx, identity)
		if err != nil {
			if errors.Is(err, common.ErrExternalCollaborator) {
				text, markup := subscribePrompt(b.channelID)
				b.send(ctx, chatID, textNotVerified+"\n\n"+text, markup)
				return
			}
			b.send(ctx, chatID, b.userError(ctx, identity, err), nil)
			return
		}
	}

	if !state.Open() {
		text, markup := subscribePrompt(b.channelID)
		b.send(ctx, chatID, text, markup)
		return
	}
	b.send(ctx, chatID, fmt.Sprintf(textThanks, commandList(userCommands)), nil)
}

func (b *Bot) grant(ctx context.Context, chatID int64, user *models.User, serverID string) {
	key, err := b.keys.Grant(ctx, user.UserID, serverID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			b.send(ctx, chatID, textServerGone, nil)
			return
		}
		b.send(ctx, chatID, b.userError(ctx, user.UserID, err), nil)
		return
	}
	b.sendKey(ctx, chatID, key)
}

func (b *Bot) showKey(ctx context.Context, chatID int64, user *models.User, keyID string) {
	key, err := b.keys.Get(ctx, user.UserID, keyID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			b.send(ctx, chatID, textKeyInactive, nil)
			return
		}
		b.send(ctx, chatID, b.userError(ctx, user.UserID, err), nil)
		return
	}
	b.sendKey(ctx, chatID, key)
}

// sendKey sends the QR image with the key as caption, falling back to text
// when the image cannot be loaded or sent.
func (b *Bot) sendKey(ctx context.Context, chatID int64, key *models.VPNKey) {
	var link string
	if l, ok := b.qr.(linker); ok {
		if url, err := l.PresignedURL(ctx, key.QRCode); err == nil {
			link = url
		}
	}
	caption := keyCaption(key, link)

	png, err := b.qr.Get(ctx, key.QRCode)
	if err != nil {
		b.log.Warn(ctx, "qr not available", "key_id", key.ID, "ref", key.QRCode, "error", err)
		b.send(ctx, chatID, caption, revokeMarkup(key.ID))
		return
	}
	if err := b.api.SendPhoto(ctx, chatID, png, caption, revokeMarkup(key.ID)); err != nil {
		b.log.Warn(ctx, "sendPhoto failed", "chat_id", chatID, "key_id", key.ID, "error", err)
		b.send(ctx, chatID, caption, revokeMarkup(key.ID))
	}
}

func (b *Bot) revoke(ctx context.Context, chatID int64, user *models.User, keyID string) {
	if err := b.keys.Revoke(ctx, user.UserID, keyID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			b.send(ctx, chatID, textNothingRevoke, nil)
			return
		}
		b.send(ctx, chatID, b.userError(ctx, user.UserID, err), nil)
		return
	}
	b.send(ctx, chatID, textRevoked, nil)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// observeGroup records a group chat, enriching it with getChat when possible.
func (b *Bot) observeGroup(ctx context.Context, chat telegram.Chat) {
	if full, err := b.api.GetChat(ctx, chat.ID); err == nil {
		chat = *full
	} else {
		b.log.Debug(ctx, "getChat failed", "chat_id", chat.ID, "error", err)
	}

	g := &models.Group{
		GroupID:     chat.ID,
		Title:       chat.Title,
		Description: optional(chat.Description),
		Bio:         optional(chat.Bio),
		InviteLink:  optional(chat.InviteLink),
		UserName:    optional(chat.Username),
	}
	if chat.Location != nil {
		g.Location = optional(chat.Location.Address)
	}
	if _, err := b.groups.Observe(ctx, g); err != nil {
		b.log.Error(ctx, "observe group failed", "group_id", chat.ID, "error", err)
	}
}
