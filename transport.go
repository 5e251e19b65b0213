package wbpilot

import (
	"context"
	"log/slog"
	"time"

	"github.com/avashchuk/wbpilot/telegram"
)

// Button is one operator choice attached to a prompt.
type Button struct {
	Text string
	Data string
}

// Messenger is the operator-visible side of the chat channel. Send and
// Prompt target the shared group; SendPrivate targets one user.
type Messenger interface {
	Send(ctx context.Context, text string) error
	Prompt(ctx context.Context, text string, rows ...[]Button) error
	SendFile(ctx context.Context, path string) error
	SendPrivate(ctx context.Context, userID int64, text string) error
}

// GroupMessenger is the telegram-backed Messenger. Plain sends retry a few
// times with exponential backoff because a lost status message confuses the
// operator more than a late one; file sends are single-shot and the batch
// dispatcher owns their retry.
type GroupMessenger struct {
	Client *telegram.Client
	ChatID int64
	Logger *slog.Logger

	// Sleep overrides the inter-attempt pause. Tests use it to run without
	// real delays.
	Sleep func(ctx context.Context, d time.Duration) error
}

var _ Messenger = &GroupMessenger{}

const messageSendAttempts = 5

func (m *GroupMessenger) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

func (m *GroupMessenger) sleep(ctx context.Context, d time.Duration) error {
	if m.Sleep != nil {
		return m.Sleep(ctx, d)
	}
	return sleepCtx(ctx, d)
}

func (m *GroupMessenger) sendWithRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < messageSendAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		m.logger().Error("message send failed", "attempt", attempt+1, "error", lastErr)
		if attempt < messageSendAttempts-1 {
			if err := m.sleep(ctx, time.Duration(1<<attempt)*time.Second); err != nil {
				return err
			}
		}
	}
	return lastErr
}

func (m *GroupMessenger) Send(ctx context.Context, text string) error {
	return m.sendWithRetry(ctx, func() error {
		return m.Client.SendMessage(ctx, m.ChatID, text, nil)
	})
}

func (m *GroupMessenger) Prompt(ctx context.Context, text string, rows ...[]Button) error {
	kb := &telegram.InlineKeyboard{}
	for _, row := range rows {
		tgRow := make([]telegram.Button, 0, len(row))
		for _, b := range row {
			tgRow = append(tgRow, telegram.Button{Text: b.Text, Data: b.Data})
		}
		kb.InlineKeyboard = append(kb.InlineKeyboard, tgRow)
	}
	return m.sendWithRetry(ctx, func() error {
		return m.Client.SendMessage(ctx, m.ChatID, text, kb)
	})
}

func (m *GroupMessenger) SendFile(ctx context.Context, path string) error {
	return m.Client.SendDocument(ctx, m.ChatID, path)
}

func (m *GroupMessenger) SendPrivate(ctx context.Context, userID int64, text string) error {
	err := m.Client.SendMessage(ctx, userID, text, nil)
	if telegram.IsForbidden(err) {
		// The user never opened a chat with the bot; nothing we can do.
		m.logger().Warn("cannot reach user privately", "user", userID)
		return nil
	}
	return err
}
