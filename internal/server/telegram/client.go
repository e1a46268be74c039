// Package telegram adapts the Bot API library to the small surface the bot
// needs: long polling, messages, photos, callback answers and chat membership
// lookups. Library types are converted into the local types in types.go.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

var allowedUpdates = []string{"message", "callback_query", "my_chat_member"}

// APIError is a response with ok=false.
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

func wrap(method string, err error) error {
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) {
		return &APIError{Method: method, Code: tgErr.Code, Description: tgErr.Message}
	}
	return fmt.Errorf("telegram %s: %w", method, err)
}

type Client struct {
	api *tgbotapi.BotAPI
}

// NewClient connects to the Bot API under baseURL (https://api.telegram.org
// in production) and checks the token with getMe. A nil httpClient means
// http.DefaultClient.
func NewClient(baseURL, token string, httpClient *http.Client) (*Client, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	endpoint := strings.TrimRight(baseURL, "/") + "/bot%s/%s"

	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, httpClient)
	if err != nil {
		return nil, wrap("getMe", err)
	}
	return &Client{api: api}, nil
}

// Username is the bot's own @username.
func (c *Client) Username() string {
	return c.api.Self.UserName
}

// await runs fn and returns early when ctx is done. The library does not take
// a context, so an abandoned call finishes in the background and is bounded by
// the HTTP client timeout.
func await[T any](ctx context.Context, method string, fn func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v: v, err: err}
	}()

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return zero, wrap(method, r.err)
		}
		return r.v, nil
	}
}

// GetUpdates long-polls for updates after offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	cfg := tgbotapi.NewUpdate(int(offset))
	cfg.Timeout = int(timeout / time.Second)
	cfg.AllowedUpdates = allowedUpdates

	ups, err := await(ctx, "getUpdates", func() ([]tgbotapi.Update, error) {
		return c.api.GetUpdates(cfg)
	})
	if err != nil {
		return nil, err
	}

	out := make([]Update, 0, len(ups))
	for i := range ups {
		out = append(out, fromUpdate(&ups[i]))
	}
	return out, nil
}

func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, markup *InlineKeyboardMarkup) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if markup != nil {
		msg.ReplyMarkup = toMarkup(markup)
	}

	_, err := await(ctx, "sendMessage", func() (tgbotapi.Message, error) {
		return c.api.Send(msg)
	})
	return err
}

// SendPhoto uploads png as a photo.
func (c *Client) SendPhoto(ctx context.Context, chatID int64, png []byte, caption string, markup *InlineKeyboardMarkup) error {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "qr.png", Bytes: png})
	if caption != "" {
		photo.Caption = caption
		photo.ParseMode = tgbotapi.ModeHTML
	}
	if markup != nil {
		photo.ReplyMarkup = toMarkup(markup)
	}

	_, err := await(ctx, "sendPhoto", func() (tgbotapi.Message, error) {
		return c.api.Send(photo)
	})
	return err
}

func (c *Client) AnswerCallbackQuery(ctx context.Context, id, text string) error {
	cb := tgbotapi.NewCallback(id, text)
	_, err := await(ctx, "answerCallbackQuery", func() (*tgbotapi.APIResponse, error) {
		return c.api.Request(cb)
	})
	return err
}

// GetChat returns full chat info including description and invite link.
func (c *Client) GetChat(ctx context.Context, chatID int64) (*Chat, error) {
	cfg := tgbotapi.ChatInfoConfig{ChatConfig: tgbotapi.ChatConfig{ChatID: chatID}}
	chat, err := await(ctx, "getChat", func() (tgbotapi.Chat, error) {
		return c.api.GetChat(cfg)
	})
	if err != nil {
		return nil, err
	}
	out := fromChat(&chat)
	return &out, nil
}

// GetChatMember accepts a numeric id or an @username for chatID.
func (c *Client) GetChatMember(ctx context.Context, chatID string, userID int64) (*ChatMember, error) {
	target := tgbotapi.ChatConfigWithUser{UserID: userID}
	if id, err := strconv.ParseInt(chatID, 10, 64); err == nil {
		target.ChatID = id
	} else {
		target.SuperGroupUsername = chatID
	}

	m, err := await(ctx, "getChatMember", func() (tgbotapi.ChatMember, error) {
		return c.api.GetChatMember(tgbotapi.GetChatMemberConfig{ChatConfigWithUser: target})
	})
	if err != nil {
		return nil, err
	}

	out := &ChatMember{Status: m.Status, IsMember: m.IsMember}
	if m.User != nil {
		out.User = fromUser(m.User)
	}
	return out, nil
}

// IsChannelMember implements services.MembershipChecker.
func (c *Client) IsChannelMember(ctx context.Context, channelID string, userID int64) (bool, error) {
	m, err := c.GetChatMember(ctx, channelID, userID)
	if err != nil {
		return false, err
	}
	return m.Member(), nil
}
