package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"teamchat/internal/application/entity"
	"teamchat/pkg/cache"
	"teamchat/pkg/config"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type presenceFixture struct {
	presence *Presence
	cache    *cache.MemoryCache
	producer *fakeProducer
	clock    time.Time
}

func newPresenceFixture(t *testing.T) *presenceFixture {
	t.Helper()
	mem := cache.NewMemoryCache()
	prod := &fakeProducer{}
	p := NewPresence(mem, prod, testLogger(), &config.Presence{
		OnlineTTL: 60 * time.Second,
		TypingTTL: 5 * time.Second,
	})

	f := &presenceFixture{presence: p, cache: mem, producer: prod, clock: time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)}
	now := func() time.Time { return f.clock }
	mem.Now = now
	p.now = now
	return f
}

func (f *presenceFixture) advance(d time.Duration) { f.clock = f.clock.Add(d) }

func TestMarkOnlineAndExpiry(t *testing.T) {
	f := newPresenceFixture(t)
	workspaceID := uuid.Must(uuid.NewV4())
	userID := uuid.Must(uuid.NewV4())

	require.NoError(t, f.presence.MarkOnline(context.Background(), workspaceID, userID))

	online, err := f.presence.Online(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, online)

	users, err := f.presence.OnlineUsers(context.Background(), workspaceID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{userID}, users)

	f.advance(61 * time.Second)

	online, err = f.presence.Online(context.Background(), userID)
	require.NoError(t, err)
	assert.False(t, online, "presence must lapse after the TTL")

	users, err = f.presence.OnlineUsers(context.Background(), workspaceID)
	require.NoError(t, err)
	assert.Empty(t, users, "expired member must be lazily evicted from the set")
}

func TestRefreshExtendsButNeverResurrects(t *testing.T) {
	f := newPresenceFixture(t)
	workspaceID := uuid.Must(uuid.NewV4())
	userID := uuid.Must(uuid.NewV4())

	require.NoError(t, f.presence.MarkOnline(context.Background(), workspaceID, userID))

	f.advance(50 * time.Second)
	refreshed, err := f.presence.Refresh(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, refreshed)

	// 50s + 59s is past the original deadline but inside the refreshed one.
	f.advance(59 * time.Second)
	online, err := f.presence.Online(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, online)

	f.advance(2 * time.Second)
	refreshed, err = f.presence.Refresh(context.Background(), userID)
	require.NoError(t, err)
	assert.False(t, refreshed, "refresh after expiry must not recreate the session")

	online, err = f.presence.Online(context.Background(), userID)
	require.NoError(t, err)
	assert.False(t, online)
}

func TestMarkOfflineEmitsOnlyWhenPresent(t *testing.T) {
	f := newPresenceFixture(t)
	workspaceID := uuid.Must(uuid.NewV4())
	userID := uuid.Must(uuid.NewV4())

	require.NoError(t, f.presence.MarkOnline(context.Background(), workspaceID, userID))
	require.NoError(t, f.presence.MarkOffline(context.Background(), workspaceID, userID))
	require.NoError(t, f.presence.MarkOffline(context.Background(), workspaceID, userID))

	var kinds []string
	for _, m := range f.producer.byTopic("broadcast-events") {
		var be entity.BroadcastEvent
		require.NoError(t, json.Unmarshal(m.Value, &be))
		kinds = append(kinds, be.Kind)
	}
	assert.Equal(t, []string{"presence_online", "presence_offline"}, kinds,
		"second offline must be silent")
}

func TestTypingLifecycle(t *testing.T) {
	f := newPresenceFixture(t)
	conversationID := uuid.Must(uuid.NewV4())
	alice := uuid.Must(uuid.NewV4())
	bob := uuid.Must(uuid.NewV4())
	asker := uuid.Must(uuid.NewV4())

	require.NoError(t, f.presence.StartTyping(context.Background(), conversationID, alice, "Alice"))
	require.NoError(t, f.presence.StartTyping(context.Background(), conversationID, bob, "Bob"))
	require.NoError(t, f.presence.StartTyping(context.Background(), conversationID, asker, "Asker"))

	names, err := f.presence.TypingUsers(context.Background(), conversationID, asker)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "Bob"}, names, "asker excluded, insertion order kept")

	require.NoError(t, f.presence.StopTyping(context.Background(), conversationID, bob))
	names, err = f.presence.TypingUsers(context.Background(), conversationID, asker)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice"}, names)

	// Markers lapse after 5s; the longer-lived set is cleaned lazily.
	f.advance(6 * time.Second)
	names, err = f.presence.TypingUsers(context.Background(), conversationID, asker)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestStartTypingRefreshesMarker(t *testing.T) {
	f := newPresenceFixture(t)
	conversationID := uuid.Must(uuid.NewV4())
	alice := uuid.Must(uuid.NewV4())

	require.NoError(t, f.presence.StartTyping(context.Background(), conversationID, alice, "Alice"))
	f.advance(4 * time.Second)
	require.NoError(t, f.presence.StartTyping(context.Background(), conversationID, alice, "Alice"))
	f.advance(4 * time.Second)

	names, err := f.presence.TypingUsers(context.Background(), conversationID, uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice"}, names, "restart must extend the 5s window")
}

func TestTypingMessageFormatting(t *testing.T) {
	assert.Equal(t, "", TypingMessage(nil))
	assert.Equal(t, "Alice is typing...", TypingMessage([]string{"Alice"}))
	assert.Equal(t, "Alice and Bob are typing...", TypingMessage([]string{"Alice", "Bob"}))
	assert.Equal(t, "Alice and 2 others are typing...", TypingMessage([]string{"Alice", "Bob", "Carol"}))
	assert.Equal(t, "Alice and 3 others are typing...", TypingMessage([]string{"Alice", "Bob", "Carol", "Dave"}))
}
