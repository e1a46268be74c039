package bot

import (
	"fmt"
	"html"
	"strings"

	"github.com/dmitrijs2005/vpnkeeper/internal/server/models"
	"github.com/dmitrijs2005/vpnkeeper/internal/server/services"
	"github.com/dmitrijs2005/vpnkeeper/internal/server/telegram"
	"github.com/dmitrijs2005/vpnkeeper/internal/server/vless"
)

// callback data prefixes
const (
	cbSubscribed = "subscribed"
	cbGrant      = "grant:"
	cbKey        = "key:"
	cbRevoke     = "revoke:"
)

const (
	textGroupGreeting = "Hello! I am a Telegram bot that moderates channels and groups. " +
		"For more information contact the administrator or message me privately."
	textThanks        = "Thank you for choosing our service, enjoy!\nAvailable commands:\n%s"
	textNotVerified   = "We could not verify your subscription right now. Please try again in a minute."
	textQuotaExceeded = "You already have %d of %d keys. Revoke one in /keys to get a new key."
	textNothingRevoke = "Nothing to revoke: this key is not active."
	textRevoked       = "Key revoked."
	textKeyInactive   = "This key is no longer active."
	textServerGone    = "This server is no longer available, choose another one in /location."
	textGenerateLater = "We could not create a key right now. Please try again later."
	textFailure       = "Something went wrong. Please try again later."
	textNoServers     = "No servers are available yet."
	textNoKeys        = "You have no keys yet. Pick a server in /location."
	textChooseServer  = "Choose a server:"
	textInstruction   = "1. Install a VLESS client (v2rayNG, Streisand, Hiddify).\n" +
		"2. Open /keys and pick a key.\n" +
		"3. Scan the QR code or copy the connection string into the client.\n" +
		"4. Connect."
	textAddServerUsage = "Usage: /add_server <location> <ip> [port] [public_key] [username] [password]"
	textDelServerUsage = "Usage: /del_server <id>"
)

var userCommands = [][2]string{
	{"start", "Restart the bot"},
	{"location", "Servers to connect to"},
	{"keys", "Your VPN keys"},
	{"instruction", "How to connect"},
}

var adminCommands = [][2]string{
	{"add_server", "Add a VPN server"},
	{"servers", "List VPN servers"},
	{"del_server", "Delete a VPN server and its keys"},
	{"stats", "User statistics"},
}

func commandList(cmds ...[][2]string) string {
	var lines []string
	for _, group := range cmds {
		for _, c := range group {
			lines = append(lines, "/"+c[0]+" - "+c[1])
		}
	}
	return strings.Join(lines, "\n")
}

func subscribePrompt(channelID string) (string, *telegram.InlineKeyboardMarkup) {
	name := strings.TrimPrefix(channelID, "@")
	text := "<b>You are not subscribed to the channel!</b>\n\n" +
		"To use the bot, subscribe to our news channel " +
		fmt.Sprintf(`<a href="https://t.me/%s">%s</a>.`, html.EscapeString(name), html.EscapeString(channelID)) + "\n\n" +
		"<i>After subscribing press the button below: I subscribed</i>"
	markup := &telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{
		{{Text: "Open channel", URL: "https://t.me/" + name}},
		{{Text: "✅ I subscribed", CallbackData: cbSubscribed}},
	}}
	return text, markup
}

func adminGreeting(fullName string) string {
	return fmt.Sprintf("Hello, %s! 👋\nYou are signed in as an administrator. Available commands:\n%s",
		html.EscapeString(fullName), commandList(userCommands, adminCommands))
}

func usageLine(u services.Usage) string {
	s := fmt.Sprintf("%d / %d", u.Count, u.Max)
	if u.Remaining() == 0 {
		s += " (maximum)"
	}
	return s
}

func userPanel(user *models.User, u services.Usage, keys []*models.VPNKey) (string, *telegram.InlineKeyboardMarkup) {
	text := fmt.Sprintf("👋 Welcome back, <b>%s</b>!\n\nKeys: <i>%s</i>\n\n📌 Commands:\n%s\n\n🔑 Your VPN keys 👇",
		html.EscapeString(user.FullName), usageLine(u), commandList(userCommands))
	return text, keysMarkup(keys)
}

func keysMarkup(keys []*models.VPNKey) *telegram.InlineKeyboardMarkup {
	rows := make([][]telegram.InlineKeyboardButton, 0, len(keys))
	for i, k := range keys {
		rows = append(rows, []telegram.InlineKeyboardButton{{
			Text:         fmt.Sprintf("🔑 %d. %s", i+1, k.Name),
			CallbackData: cbKey + k.ID,
		}})
	}
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func serversMarkup(servers []*models.Server) *telegram.InlineKeyboardMarkup {
	rows := make([][]telegram.InlineKeyboardButton, 0, len(servers))
	for _, s := range servers {
		rows = append(rows, []telegram.InlineKeyboardButton{{
			Text:         "🌍 " + s.Location,
			CallbackData: cbGrant + s.ID,
		}})
	}
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func revokeMarkup(keyID string) *telegram.InlineKeyboardMarkup {
	return &telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{
		{{Text: "❌ Revoke", CallbackData: cbRevoke + keyID}},
	}}
}

// keyCaption shows the connection string and the client id parsed from it.
func keyCaption(k *models.VPNKey, link string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔑 <b>%s</b>\n\n<code>%s</code>", html.EscapeString(k.Name), html.EscapeString(k.Key))
	if id, ok := vless.ExtractIdentifier(k.Key); ok {
		fmt.Fprintf(&b, "\n\nClient id: <code>%s</code>", id)
	}
	if link != "" {
		fmt.Fprintf(&b, "\n\n<a href=\"%s\">QR code</a>", html.EscapeString(link))
	}
	return b.String()
}

func serverList(servers []*models.Server) string {
	if len(servers) == 0 {
		return textNoServers
	}
	var b strings.Builder
	for _, s := range servers {
		fmt.Fprintf(&b, "%s  %s:%d  <code>%s</code>\n",
			html.EscapeString(s.Location), html.EscapeString(s.IPAddress), s.Port, s.ID)
	}
	return b.String()
}
