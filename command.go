package wbpilot

import (
	"strconv"
	"strings"

	"github.com/avashchuk/wbpilot/telegram"
)

// Command is an operator instruction decoded from a chat update. The concrete
// variants below are the full command surface; anything else decodes to
// UnknownCommand so the dispatcher can ignore it in one place.
type Command interface {
	isCommand()
	From() int64
}

type baseCommand struct {
	UserID int64
}

func (c baseCommand) isCommand()  {}
func (c baseCommand) From() int64 { return c.UserID }

// StartCommand opens the mode handshake for a new run.
type StartCommand struct{ baseCommand }

// SelectModeCommand answers the mode handshake.
type SelectModeCommand struct {
	baseCommand
	Mode Mode
}

// CancelCommand requests cooperative cancellation of the live run or releases
// a pending mode handshake.
type CancelCommand struct{ baseCommand }

// StatusCommand asks for the run slot snapshot.
type StatusCommand struct{ baseCommand }

// AcknowledgeCommand confirms one outstanding gate ticket.
type AcknowledgeCommand struct {
	baseCommand
	StepID string
}

// AllowUserCommand grants a user access (admin only).
type AllowUserCommand struct {
	baseCommand
	Target int64
}

// DenyUserCommand revokes a user's access (admin only).
type DenyUserCommand struct {
	baseCommand
	Target int64
}

// ListUsersCommand lists authorized users (admin only).
type ListUsersCommand struct{ baseCommand }

// SettingsCommand shows the current configuration.
type SettingsCommand struct{ baseCommand }

// SetConfigCommand updates one configuration field (admin only).
type SetConfigCommand struct {
	baseCommand
	Field string
	Value string
}

// NewMemberCommand fires when someone joins the group chat; the dispatcher
// uses it to greet and point at the authorization flow.
type NewMemberCommand struct {
	baseCommand
	Member telegram.User
}

// UnknownCommand is anything the router could not decode.
type UnknownCommand struct {
	baseCommand
	Text string
}

// Callback data values the mode-handshake and gate keyboards produce.
const (
	callbackModeSupervised = "mode_supervised"
	callbackModeUnattended = "mode_unattended"
	callbackCancelRun      = "cancel_run"
	callbackConfirmPrefix  = "confirm_"
)

// ParseUpdate decodes one chat update into a Command, or nil when the update
// carries nothing actionable (edits, stickers, messages from other chats).
// Group text commands are only honored from groupID; callbacks are honored
// from anywhere because the inline keyboard already scopes them.
func ParseUpdate(u telegram.Update, groupID int64) Command {
	if cb := u.CallbackQuery; cb != nil {
		base := baseCommand{UserID: cb.From.ID}
		switch {
		case cb.Data == callbackModeSupervised:
			return SelectModeCommand{baseCommand: base, Mode: ModeSupervised}
		case cb.Data == callbackModeUnattended:
			return SelectModeCommand{baseCommand: base, Mode: ModeUnattended}
		case cb.Data == callbackCancelRun:
			return CancelCommand{baseCommand: base}
		case strings.HasPrefix(cb.Data, callbackConfirmPrefix):
			return AcknowledgeCommand{baseCommand: base, StepID: strings.TrimPrefix(cb.Data, callbackConfirmPrefix)}
		}
		return UnknownCommand{baseCommand: base, Text: cb.Data}
	}

	msg := u.Message
	if msg == nil {
		return nil
	}
	if msg.NewChatMember != nil && msg.Chat.ID == groupID {
		from := int64(0)
		if msg.From != nil {
			from = msg.From.ID
		}
		return NewMemberCommand{baseCommand: baseCommand{UserID: from}, Member: *msg.NewChatMember}
	}
	if msg.From == nil || msg.Text == "" {
		return nil
	}
	if msg.Chat.ID != groupID && msg.Chat.ID != msg.From.ID {
		return nil
	}

	base := baseCommand{UserID: msg.From.ID}
	fields := strings.Fields(msg.Text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return nil
	}
	// Commands in groups may arrive as /start@botname.
	verb, _, _ := strings.Cut(fields[0], "@")

	switch verb {
	case "/start", "/run", "/process":
		return StartCommand{baseCommand: base}
	case "/cancel", "/stop":
		return CancelCommand{baseCommand: base}
	case "/status":
		return StatusCommand{baseCommand: base}
	case "/allow":
		if len(fields) < 2 {
			return UnknownCommand{baseCommand: base, Text: msg.Text}
		}
		id, ok := parseUserID(fields[1])
		if !ok {
			return UnknownCommand{baseCommand: base, Text: msg.Text}
		}
		return AllowUserCommand{baseCommand: base, Target: id}
	case "/deny":
		if len(fields) < 2 {
			return UnknownCommand{baseCommand: base, Text: msg.Text}
		}
		id, ok := parseUserID(fields[1])
		if !ok {
			return UnknownCommand{baseCommand: base, Text: msg.Text}
		}
		return DenyUserCommand{baseCommand: base, Target: id}
	case "/users":
		return ListUsersCommand{baseCommand: base}
	case "/settings":
		return SettingsCommand{baseCommand: base}
	case "/set":
		if len(fields) < 3 {
			return UnknownCommand{baseCommand: base, Text: msg.Text}
		}
		return SetConfigCommand{
			baseCommand: base,
			Field:       fields[1],
			Value:       strings.Join(fields[2:], " "),
		}
	}
	return UnknownCommand{baseCommand: base, Text: msg.Text}
}

func parseUserID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
