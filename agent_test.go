package wbpilot

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avashchuk/wbpilot/config"
	"github.com/avashchuk/wbpilot/telegram"
)

func newTestAgent(t *testing.T, chat *chatRecorder) *Agent {
	t.Helper()
	api := &fakeOrderAPI{}
	p, _ := newTestPipeline(t, api, chat)

	users, err := config.LoadUsers(filepath.Join(t.TempDir(), "authorized_users.txt"), 1)
	require.NoError(t, err)

	return &Agent{
		Messenger:  chat,
		Controller: NewRunController(),
		Gate:       p.Gate,
		Pipeline:   p,
		Config:     p.Config,
		Users:      users,
		Sleep:      instantSleep,
	}
}

func lastMessage(chat *chatRecorder) string {
	chat.mu.Lock()
	defer chat.mu.Unlock()
	if len(chat.messages) == 0 {
		return ""
	}
	return chat.messages[len(chat.messages)-1]
}

func TestHandleRejectsUnauthorizedUser(t *testing.T) {
	chat := &chatRecorder{}
	a := newTestAgent(t, chat)

	a.Handle(context.Background(), StartCommand{baseCommand{UserID: 42}})

	assert.Contains(t, lastMessage(chat), "not authorized")
	assert.Equal(t, StateIdle, a.Controller.Status().State)
}

func TestHandleStartOpensModeHandshake(t *testing.T) {
	chat := &chatRecorder{}
	a := newTestAgent(t, chat)

	a.Handle(context.Background(), StartCommand{baseCommand{UserID: 1}})

	assert.Equal(t, StatePending, a.Controller.Status().State)
	chat.mu.Lock()
	defer chat.mu.Unlock()
	require.Len(t, chat.prompts, 1)
	assert.Contains(t, chat.prompts[0], "Select a mode")
}

func TestHandleSecondStartIsRejected(t *testing.T) {
	chat := &chatRecorder{}
	a := newTestAgent(t, chat)

	a.Handle(context.Background(), StartCommand{baseCommand{UserID: 1}})
	a.Handle(context.Background(), StartCommand{baseCommand{UserID: 1}})

	assert.Contains(t, lastMessage(chat), "already in progress")
}

func TestHandleSelectModeRunsPipeline(t *testing.T) {
	chat := &chatRecorder{}
	a := newTestAgent(t, chat)

	a.Handle(context.Background(), StartCommand{baseCommand{UserID: 1}})
	a.Handle(context.Background(), SelectModeCommand{baseCommand{UserID: 1}, ModeUnattended})

	// The pipeline has no orders and finishes on its own; the controller must
	// come back to idle.
	require.Eventually(t, func() bool {
		return a.Controller.Status().State == StateIdle
	}, 2*time.Second, 10*time.Millisecond)
	a.wg.Wait()
	assert.Contains(t, lastMessage(chat), "Run completed")
}

func TestHandleCancelReleasesHandshake(t *testing.T) {
	chat := &chatRecorder{}
	a := newTestAgent(t, chat)

	a.Handle(context.Background(), StartCommand{baseCommand{UserID: 1}})
	a.Handle(context.Background(), CancelCommand{baseCommand{UserID: 1}})

	assert.Equal(t, StateIdle, a.Controller.Status().State)
}

func TestHandleUserManagementIsAdminOnly(t *testing.T) {
	chat := &chatRecorder{}
	a := newTestAgent(t, chat)
	require.NoError(t, a.Users.Allow(42))

	a.Handle(context.Background(), AllowUserCommand{baseCommand{UserID: 42}, 99})
	assert.Contains(t, lastMessage(chat), "administrator")
	assert.False(t, a.Users.IsAuthorized(99))

	a.Handle(context.Background(), AllowUserCommand{baseCommand{UserID: 1}, 99})
	assert.True(t, a.Users.IsAuthorized(99))

	a.Handle(context.Background(), DenyUserCommand{baseCommand{UserID: 1}, 99})
	assert.False(t, a.Users.IsAuthorized(99))
}

func TestHandleDenyAdminIsRefused(t *testing.T) {
	chat := &chatRecorder{}
	a := newTestAgent(t, chat)

	a.Handle(context.Background(), DenyUserCommand{baseCommand{UserID: 1}, 1})

	assert.Contains(t, lastMessage(chat), "cannot be removed")
	assert.True(t, a.Users.IsAuthorized(1))
}

func TestHandleSetConfigUpdatesStore(t *testing.T) {
	chat := &chatRecorder{}
	a := newTestAgent(t, chat)

	a.Handle(context.Background(), SetConfigCommand{baseCommand{UserID: 1}, "printer", "HP LaserJet"})
	assert.Equal(t, "HP LaserJet", a.Config.Get().PrinterName)

	a.Handle(context.Background(), SetConfigCommand{baseCommand{UserID: 1}, "autoprint", "off"})
	assert.False(t, a.Config.Get().AutoPrint)

	a.Handle(context.Background(), SetConfigCommand{baseCommand{UserID: 1}, "token", "fresh-token"})
	cfg := a.Config.Get()
	assert.Equal(t, "fresh-token", cfg.APIToken)
	assert.Equal(t, time.Now().Format("2006-01-02"), cfg.TokenIssued)
}

func TestHandleNewMemberGreetsWithID(t *testing.T) {
	chat := &chatRecorder{}
	a := newTestAgent(t, chat)

	a.Handle(context.Background(), NewMemberCommand{
		baseCommand: baseCommand{UserID: 42},
		Member:      telegram.User{ID: 99},
	})

	assert.Contains(t, lastMessage(chat), "99")
}

func TestHandleAcknowledgeResolvesGate(t *testing.T) {
	chat := &chatRecorder{}
	a := newTestAgent(t, chat)
	a.Gate.Deadline = 5 * time.Second

	done := make(chan GateOutcome, 1)
	go func() {
		done <- a.Gate.Await(context.Background(), ModeSupervised, "create box")
	}()
	require.Eventually(t, func() bool { return a.Gate.Pending() == 1 }, time.Second, 5*time.Millisecond)

	a.Gate.mu.Lock()
	var stepID string
	for id := range a.Gate.tickets {
		stepID = id
	}
	a.Gate.mu.Unlock()

	a.Handle(context.Background(), AcknowledgeCommand{baseCommand{UserID: 1}, stepID})
	assert.Equal(t, GateConfirmed, <-done)
}

func TestHandleStatus(t *testing.T) {
	chat := &chatRecorder{}
	a := newTestAgent(t, chat)

	a.Handle(context.Background(), StatusCommand{baseCommand{UserID: 1}})
	assert.Contains(t, lastMessage(chat), "Idle")
}
