package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetUpdates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bottest-token/getUpdates", r.URL.Path)
		assert.Equal(t, "31", r.URL.Query().Get("offset"))
		assert.Equal(t, "30", r.URL.Query().Get("timeout"))
		w.Write([]byte(`{"ok":true,"result":[
			{"update_id":31,"message":{"chat":{"id":-100},"from":{"id":7},"text":"/process"}},
			{"update_id":32,"callback_query":{"from":{"id":7},"data":"confirm_abc"}}
		]}`))
	}))
	defer srv.Close()

	c := NewClient("test-token").WithBaseURL(srv.URL)
	updates, err := c.GetUpdates(context.Background(), 31, 30)
	require.NoError(t, err)
	require.Len(t, updates, 2)
	assert.Equal(t, "/process", updates[0].Message.Text)
	assert.Equal(t, int64(-100), updates[0].Message.Chat.ID)
	require.NotNil(t, updates[1].CallbackQuery)
	assert.Equal(t, "confirm_abc", updates[1].CallbackQuery.Data)
}

func TestSendMessageWithKeyboard(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bottest-token/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewClient("test-token").WithBaseURL(srv.URL)
	kb := Keyboard([]Button{{Text: "Confirm", Data: "confirm_x"}})
	require.NoError(t, c.SendMessage(context.Background(), -100, "step done?", kb))

	assert.Equal(t, float64(-100), got["chat_id"])
	assert.Equal(t, "HTML", got["parse_mode"])
	require.Contains(t, got, "reply_markup")
}

func TestSendDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "1_1.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF fake"), 0644))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "-100", r.FormValue("chat_id"))
		_, header, err := r.FormFile("document")
		require.NoError(t, err)
		assert.Equal(t, "1_1.pdf", header.Filename)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewClient("test-token").WithBaseURL(srv.URL)
	require.NoError(t, c.SendDocument(context.Background(), -100, path))
}

func TestIsForbidden(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"ok":false,"description":"bot was blocked"}`))
	}))
	defer srv.Close()

	c := NewClient("test-token").WithBaseURL(srv.URL)
	err := c.SendMessage(context.Background(), 7, "hi", nil)
	require.Error(t, err)
	assert.True(t, IsForbidden(err))
	assert.False(t, IsForbidden(context.Canceled))
}
