package telegram

// Library-independent views of the Bot API objects the bot reads or sends.

type Update struct {
	UpdateID      int64
	Message       *Message
	CallbackQuery *CallbackQuery
	MyChatMember  *MemberUpdated
}

type User struct {
	ID        int64
	IsBot     bool
	FirstName string
	LastName  string
	Username  string
	IsPremium *bool
}

// FullName joins first and last name.
func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

type ChatLocation struct {
	Address string
}

type Chat struct {
	ID          int64
	Type        string
	Title       string
	Username    string
	Description string
	Bio         string
	InviteLink  string
	Location    *ChatLocation
}

// IsPrivate reports a one-to-one chat with a user.
func (c *Chat) IsPrivate() bool {
	return c.Type == "private"
}

type Message struct {
	MessageID int64
	From      *User
	Chat      Chat
	Text      string
}

type CallbackQuery struct {
	ID      string
	From    User
	Message *Message
	Data    string
}

type MemberUpdated struct {
	Chat Chat
	From User
}

type ChatMember struct {
	Status   string
	User     User
	IsMember bool
}

// Member reports whether the status counts as belonging to the chat.
// Restricted users belong only while is_member is set.
func (m *ChatMember) Member() bool {
	switch m.Status {
	case "creator", "administrator", "member":
		return true
	case "restricted":
		return m.IsMember
	}
	return false
}

type InlineKeyboardButton struct {
	Text         string
	CallbackData string
	URL          string
}

type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton
}
