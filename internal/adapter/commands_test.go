package adapter

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/harunnryd/navi/internal/idempotency"
	"github.com/harunnryd/navi/internal/registry"
	"github.com/harunnryd/navi/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type commandsFixture struct {
	commands *Commands
	registry *registry.Registry
	codes    *registry.LinkCodes
	users    *store.UserStore
}

func newCommandsFixture(t *testing.T) commandsFixture {
	t.Helper()
	dir := t.TempDir()
	f := commandsFixture{
		registry: registry.New(filepath.Join(dir, "telegram_mappings.json"), nil),
		codes:    registry.NewLinkCodes(filepath.Join(dir, "link_codes.json"), 30*time.Minute, nil),
		users:    store.NewUserStore(dir, nil, nil),
	}
	f.commands = NewCommands(f.registry, f.codes, f.users)
	f.commands.now = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }
	return f
}

func telegramEvent(text string) Event {
	return Event{Channel: "telegram", ExternalID: "789", Address: "789", Text: text}
}

func TestCommands_LinkFlow(t *testing.T) {
	f := newCommandsFixture(t)
	ctx := context.Background()

	code, _, err := f.codes.Issue(ctx, "a@example.com")
	require.NoError(t, err)

	reply, err := f.commands.Handle(ctx, telegramEvent("/link "+code))
	require.NoError(t, err)
	assert.Contains(t, reply, "Linked")

	entry, err := f.registry.Lookup("789")
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", entry.UserKey)
	assert.Equal(t, "telegram", entry.Channel)

	reply, err = f.commands.Handle(ctx, telegramEvent("/status"))
	require.NoError(t, err)
	assert.Contains(t, reply, "a@example.com")

	reply, err = f.commands.Handle(ctx, telegramEvent("/link "+code))
	require.NoError(t, err)
	assert.Contains(t, reply, "already been used")

	reply, err = f.commands.Handle(ctx, telegramEvent("/unlink"))
	require.NoError(t, err)
	assert.Contains(t, reply, "no longer linked")
	reply, err = f.commands.Handle(ctx, telegramEvent("/status"))
	require.NoError(t, err)
	assert.Equal(t, unlinkedReply, reply)
}

func TestCommands_BadInput(t *testing.T) {
	f := newCommandsFixture(t)
	ctx := context.Background()

	tests := []struct {
		text string
		want string
	}{
		{"/link", "Usage: /link <code>"},
		{"/link 1 2", "Usage: /link <code>"},
		{"/link 000000", "doesn't match"},
		{`/link "unterminated`, "couldn't read"},
		{"/frobnicate", "Unknown command"},
		{"/help@navi_bot", "Commands:"},
	}
	for _, tt := range tests {
		reply, err := f.commands.Handle(ctx, telegramEvent(tt.text))
		require.NoError(t, err, tt.text)
		assert.Contains(t, reply, tt.want, tt.text)
	}
}

func TestCommands_RecordsMessagesFromLinkedUsers(t *testing.T) {
	f := newCommandsFixture(t)
	ctx := context.Background()

	reply, err := f.commands.Handle(ctx, telegramEvent("hello?"))
	require.NoError(t, err)
	assert.Equal(t, unlinkedReply, reply)
	assert.False(t, f.users.Exists("a@example.com"))

	require.NoError(t, f.registry.Link(ctx, "789", "a@example.com", "telegram", "test"))
	reply, err = f.commands.Handle(ctx, telegramEvent("  finished the tour  "))
	require.NoError(t, err)
	assert.Empty(t, reply)

	st, err := f.users.Load(ctx, "a@example.com")
	require.NoError(t, err)
	require.Len(t, st.ChatHistory, 1)
	assert.Equal(t, store.RoleUser, st.ChatHistory[0].Role)
	assert.Equal(t, "finished the tour", st.ChatHistory[0].Text())
	assert.Equal(t, store.FormatHistoryTime(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)), st.ChatHistory[0].Timestamp)
}

func TestCommands_DropsRedeliveredMessages(t *testing.T) {
	f := newCommandsFixture(t)
	ctx := context.Background()
	seen, err := idempotency.NewStore(filepath.Join(t.TempDir(), "processed.json"))
	require.NoError(t, err)
	f.commands.WithDedup(seen, time.Hour)
	require.NoError(t, f.registry.Link(ctx, "789", "a@example.com", "telegram", "test"))

	evt := telegramEvent("done with chapter one")
	evt.Metadata = map[string]string{"msg_id": "55"}
	for i := 0; i < 2; i++ {
		_, err := f.commands.Handle(ctx, evt)
		require.NoError(t, err)
	}

	untracked := telegramEvent("no id on this one")
	for i := 0; i < 2; i++ {
		_, err := f.commands.Handle(ctx, untracked)
		require.NoError(t, err)
	}

	st, err := f.users.Load(ctx, "a@example.com")
	require.NoError(t, err)
	require.Len(t, st.ChatHistory, 3)
	assert.Equal(t, "done with chapter one", st.ChatHistory[0].Text())
}
