package telegram

import tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

func fromUpdate(u *tgbotapi.Update) Update {
	out := Update{UpdateID: int64(u.UpdateID)}
	if u.Message != nil {
		m := fromMessage(u.Message)
		out.Message = &m
	}
	if u.CallbackQuery != nil {
		q := &CallbackQuery{ID: u.CallbackQuery.ID, Data: u.CallbackQuery.Data}
		if u.CallbackQuery.From != nil {
			q.From = fromUser(u.CallbackQuery.From)
		}
		if u.CallbackQuery.Message != nil {
			m := fromMessage(u.CallbackQuery.Message)
			q.Message = &m
		}
		out.CallbackQuery = q
	}
	if u.MyChatMember != nil {
		out.MyChatMember = &MemberUpdated{
			Chat: fromChat(&u.MyChatMember.Chat),
			From: fromUser(&u.MyChatMember.From),
		}
	}
	return out
}

func fromMessage(m *tgbotapi.Message) Message {
	out := Message{MessageID: int64(m.MessageID), Text: m.Text}
	if m.From != nil {
		u := fromUser(m.From)
		out.From = &u
	}
	if m.Chat != nil {
		out.Chat = fromChat(m.Chat)
	}
	return out
}

func fromUser(u *tgbotapi.User) User {
	return User{
		ID:        u.ID,
		IsBot:     u.IsBot,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Username:  u.UserName,
	}
}

func fromChat(c *tgbotapi.Chat) Chat {
	out := Chat{
		ID:          c.ID,
		Type:        c.Type,
		Title:       c.Title,
		Username:    c.UserName,
		Description: c.Description,
		Bio:         c.Bio,
		InviteLink:  c.InviteLink,
	}
	if c.Location != nil {
		out.Location = &ChatLocation{Address: c.Location.Address}
	}
	return out
}

func toMarkup(m *InlineKeyboardMarkup) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(m.InlineKeyboard))
	for _, row := range m.InlineKeyboard {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			if b.URL != "" {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL))
				continue
			}
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.CallbackData))
		}
		rows = append(rows, buttons)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
