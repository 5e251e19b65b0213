package wbpilot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/avashchuk/wbpilot/config"
	"github.com/avashchuk/wbpilot/telegram"
)

const (
	longPollSeconds = 30
	pollRetryPause  = 3 * time.Second
)

// Agent is the chat-facing front of the system: it long-polls for updates,
// decodes them into commands, enforces authorization, and drives the run
// controller and pipeline. One Agent serves one group chat.
type Agent struct {
	Telegram   *telegram.Client
	Messenger  Messenger
	Controller *RunController
	Gate       *ConfirmationGate
	Pipeline   *Pipeline
	Config     *config.Store
	Users      *config.Users
	Logger     *slog.Logger

	// Sleep overrides the poll-retry pause for tests.
	Sleep func(ctx context.Context, d time.Duration) error

	// wg tracks the live pipeline task so Serve can drain it on shutdown.
	wg sync.WaitGroup
}

func (a *Agent) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

func (a *Agent) sleep(ctx context.Context, d time.Duration) error {
	if a.Sleep != nil {
		return a.Sleep(ctx, d)
	}
	return sleepCtx(ctx, d)
}

// Serve runs the command loop until ctx is cancelled, then waits for any
// live pipeline task to finish. With auto-start enabled it launches an
// unattended run before the first poll.
func (a *Agent) Serve(ctx context.Context) error {
	cfg := a.Config.Get()
	a.logger().Info("agent serving", "group", cfg.GroupChatID, "auto_start", cfg.AutoStart)

	if cfg.AutoStart {
		if err := a.launchRun(ctx, ModeUnattended); err != nil {
			a.logger().Error("auto-start failed", "error", err)
		}
	}

	var offset int64
	for {
		if ctx.Err() != nil {
			break
		}
		updates, err := a.Telegram.GetUpdates(ctx, offset, longPollSeconds)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			a.logger().Error("update poll failed", "error", err)
			if err := a.sleep(ctx, pollRetryPause); err != nil {
				break
			}
			continue
		}
		for _, u := range updates {
			offset = u.UpdateID + 1
			cmd := ParseUpdate(u, a.Config.Get().GroupChatID)
			if cmd == nil {
				continue
			}
			a.Handle(ctx, cmd)
		}
	}

	a.wg.Wait()
	a.logger().Info("agent stopped")
	return ctx.Err()
}

// Handle dispatches one decoded command. Authorization happens here, in one
// place, so every command path below can assume a permitted caller.
func (a *Agent) Handle(ctx context.Context, cmd Command) {
	if _, ok := cmd.(UnknownCommand); ok {
		a.logger().Debug("ignoring unknown command", "user", cmd.From())
		return
	}
	if greet, ok := cmd.(NewMemberCommand); ok {
		a.notify(ctx, fmt.Sprintf(
			"👋 Welcome! Your ID is <code>%d</code>. An administrator can grant access with /allow.",
			greet.Member.ID))
		return
	}
	if !a.Users.IsAuthorized(cmd.From()) {
		a.logger().Warn("command from unauthorized user", "user", cmd.From())
		a.notify(ctx, fmt.Sprintf("🚫 User <code>%d</code> is not authorized", cmd.From()))
		return
	}

	switch c := cmd.(type) {
	case StartCommand:
		a.handleStart(ctx)
	case SelectModeCommand:
		if err := a.launchRun(ctx, c.Mode); err != nil {
			a.notify(ctx, "⚠️ "+err.Error())
		}
	case CancelCommand:
		a.Controller.RequestCancel()
		a.notify(ctx, "🛑 Cancellation requested")
	case StatusCommand:
		a.notify(ctx, renderStatus(a.Controller.Status()))
	case AcknowledgeCommand:
		a.Gate.Resolve(c.StepID)
	case AllowUserCommand:
		a.handleAllow(ctx, c)
	case DenyUserCommand:
		a.handleDeny(ctx, c)
	case ListUsersCommand:
		a.handleListUsers(ctx, c)
	case SettingsCommand:
		a.notify(ctx, renderSettings(a.Config.Get()))
	case SetConfigCommand:
		a.handleSetConfig(ctx, c)
	}
}

func (a *Agent) handleStart(ctx context.Context) {
	if err := a.Controller.TryStart(); err != nil {
		a.notify(ctx, "⏳ A run is already in progress")
		return
	}
	err := a.Messenger.Prompt(ctx,
		"Select a mode for this run:",
		[]Button{
			{Text: "Supervised 🧪", Data: callbackModeSupervised},
			{Text: "Unattended 🚀", Data: callbackModeUnattended},
		},
		[]Button{{Text: "Cancel ❌", Data: callbackCancelRun}},
	)
	if err != nil {
		a.logger().Error("failed to send mode prompt, releasing slot", "error", err)
		a.Controller.RequestCancel()
	}
}

// launchRun moves the controller to busy and starts the pipeline task. The
// task owns Finish on every exit path.
func (a *Agent) launchRun(ctx context.Context, mode Mode) error {
	runCtx, err := a.Controller.Begin(ctx, mode)
	if err != nil {
		return err
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.Controller.Finish()
		a.Pipeline.Run(runCtx, mode)
	}()
	return nil
}

func (a *Agent) handleAllow(ctx context.Context, c AllowUserCommand) {
	if !a.Users.IsAdmin(c.From()) {
		a.notify(ctx, "🚫 Only the administrator can manage access")
		return
	}
	if err := a.Users.Allow(c.Target); err != nil {
		a.logger().Error("failed to persist user grant", "user", c.Target, "error", err)
		a.notify(ctx, "⚠️ Failed to save the user list")
		return
	}
	a.notify(ctx, fmt.Sprintf("✅ User <code>%d</code> authorized", c.Target))
	if err := a.Messenger.SendPrivate(ctx, c.Target, "✅ You now have access to the fulfillment bot"); err != nil {
		a.logger().Warn("could not notify granted user", "user", c.Target, "error", err)
	}
}

func (a *Agent) handleDeny(ctx context.Context, c DenyUserCommand) {
	if !a.Users.IsAdmin(c.From()) {
		a.notify(ctx, "🚫 Only the administrator can manage access")
		return
	}
	if a.Users.IsAdmin(c.Target) {
		a.notify(ctx, "🚫 The administrator cannot be removed")
		return
	}
	if err := a.Users.Deny(c.Target); err != nil {
		a.logger().Error("failed to persist user removal", "user", c.Target, "error", err)
		a.notify(ctx, "⚠️ Failed to save the user list")
		return
	}
	a.notify(ctx, fmt.Sprintf("✅ User <code>%d</code> removed", c.Target))
}

func (a *Agent) handleListUsers(ctx context.Context, c ListUsersCommand) {
	if !a.Users.IsAdmin(c.From()) {
		a.notify(ctx, "🚫 Only the administrator can manage access")
		return
	}
	ids := a.Users.List()
	if len(ids) == 0 {
		a.notify(ctx, "No additional users are authorized")
		return
	}
	var b strings.Builder
	b.WriteString("<b>Authorized users:</b>\n")
	for _, id := range ids {
		fmt.Fprintf(&b, "• <code>%d</code>\n", id)
	}
	a.notify(ctx, strings.TrimRight(b.String(), "\n"))
}

func (a *Agent) handleSetConfig(ctx context.Context, c SetConfigCommand) {
	if !a.Users.IsAdmin(c.From()) {
		a.notify(ctx, "🚫 Only the administrator can change settings")
		return
	}
	var err error
	switch c.Field {
	case "token":
		err = a.Config.SetAPIToken(c.Value, time.Now())
	case "printer":
		err = a.Config.Update(func(cfg *config.Config) { cfg.PrinterName = c.Value })
	case "autoprint":
		err = a.Config.Update(func(cfg *config.Config) { cfg.AutoPrint = isOn(c.Value) })
	case "autostart":
		err = a.Config.Update(func(cfg *config.Config) { cfg.AutoStart = isOn(c.Value) })
	default:
		a.notify(ctx, fmt.Sprintf("Unknown setting %q. Available: token, printer, autoprint, autostart", c.Field))
		return
	}
	if err != nil {
		a.logger().Error("failed to save setting", "field", c.Field, "error", err)
		a.notify(ctx, "⚠️ Failed to save the setting")
		return
	}
	a.notify(ctx, fmt.Sprintf("✅ Setting %s updated", c.Field))
}

func (a *Agent) notify(ctx context.Context, text string) {
	if err := a.Messenger.Send(ctx, text); err != nil {
		a.logger().Error("failed to send notice", "error", err)
	}
}

func isOn(v string) bool {
	switch strings.ToLower(v) {
	case "on", "true", "yes", "1", "enabled":
		return true
	}
	return false
}

func renderStatus(st RunStatus) string {
	switch st.State {
	case StateIdle:
		return "💤 Idle, no run in progress"
	case StatePending:
		return "⏳ Waiting for mode selection"
	default:
		return fmt.Sprintf(
			"▶️ <b>Run in progress</b>\n<b>Mode:</b> %s\n<b>Elapsed:</b> %s\n<b>Orders done:</b> %d\n<b>Files sent:</b> %d",
			st.Mode, st.Elapsed.Round(time.Second), st.OrdersDone, st.ArtifactsSent)
	}
}

func renderSettings(cfg config.Config) string {
	days := "unknown"
	if d, err := cfg.TokenDaysLeft(time.Now()); err == nil {
		days = fmt.Sprintf("%d days left", d)
	}
	return fmt.Sprintf(
		"⚙️ <b>Settings</b>\n<b>Token:</b> %s (%s)\n<b>Printer:</b> %s\n<b>Auto-print:</b> %t\n<b>Auto-start:</b> %t",
		maskToken(cfg.APIToken), days, cfg.PrinterName, cfg.AutoPrint, cfg.AutoStart)
}

func maskToken(token string) string {
	if len(token) <= 8 {
		return "••••"
	}
	return token[:4] + "…" + token[len(token)-4:]
}
