package telegram

// Update is one long-poll result. Exactly one of Message or CallbackQuery is
// normally set.
type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
}

type Message struct {
	Chat          Chat   `json:"chat"`
	From          *User  `json:"from,omitempty"`
	Text          string `json:"text,omitempty"`
	NewChatMember *User  `json:"new_chat_member,omitempty"`
}

type Chat struct {
	ID int64 `json:"id"`
}

type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
}

type CallbackQuery struct {
	From User   `json:"from"`
	Data string `json:"data"`
}

// InlineKeyboard is the reply markup for messages carrying buttons.
type InlineKeyboard struct {
	InlineKeyboard [][]Button `json:"inline_keyboard"`
}

// Button is one inline button; pressing it delivers Data back as a callback
// query.
type Button struct {
	Text string `json:"text"`
	Data string `json:"callback_data"`
}

// Keyboard builds an InlineKeyboard from button rows.
func Keyboard(rows ...[]Button) *InlineKeyboard {
	return &InlineKeyboard{InlineKeyboard: rows}
}
