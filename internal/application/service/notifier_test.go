package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"teamchat/internal/application/entity"
	"teamchat/pkg/config"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type notifierFixture struct {
	notifier *Notifier
	store    *fakeRepo
	producer *fakeProducer

	workspaceID    uuid.UUID
	conversationID uuid.UUID
	actorID        uuid.UUID
}

func newNotifierFixture(t *testing.T) *notifierFixture {
	t.Helper()
	store := newFakeRepo()
	prod := &fakeProducer{}
	notifier := NewNotifier(store, prod, testLogger(), &config.Notify{PreviewLength: 120}, nil)

	f := &notifierFixture{
		notifier:       notifier,
		store:          store,
		producer:       prod,
		workspaceID:    uuid.Must(uuid.NewV4()),
		conversationID: uuid.Must(uuid.NewV4()),
		actorID:        uuid.Must(uuid.NewV4()),
	}
	f.store.settings[f.actorID] = &entity.UserSettings{
		UserID:             f.actorID,
		DisplayName:        "Poster",
		DefaultNotifyLevel: entity.NotifyAll,
	}
	f.store.members[f.conversationID] = append(f.store.members[f.conversationID], f.actorID)
	return f
}

func (f *notifierFixture) addUser(name string) uuid.UUID {
	userID := uuid.Must(uuid.NewV4())
	f.store.settings[userID] = &entity.UserSettings{
		UserID:             userID,
		DisplayName:        name,
		DefaultNotifyLevel: entity.NotifyAll,
		MobilePush:         true,
		DesktopPush:        true,
	}
	f.store.members[f.conversationID] = append(f.store.members[f.conversationID], userID)
	return userID
}

func (f *notifierFixture) messageEvent(body string, mentions ...uuid.UUID) *entity.MessageEvent {
	return &entity.MessageEvent{
		MessageID:      uuid.Must(uuid.NewV4()),
		WorkspaceID:    f.workspaceID,
		ConversationID: f.conversationID,
		ActorID:        f.actorID,
		ActorName:      "Poster",
		Body:           body,
		MentionUserIDs: mentions,
	}
}

func TestMentionCreatesNotificationAndFanOut(t *testing.T) {
	f := newNotifierFixture(t)
	userID := f.addUser("Alice")
	f.store.devices[userID] = []entity.Device{
		{ID: uuid.Must(uuid.NewV4()), UserID: userID, Platform: entity.PlatformIOS, PushToken: "tok-1"},
	}

	evt := f.messageEvent("hey @alice, ship it", userID)
	require.NoError(t, f.notifier.HandleMessageCreated(context.Background(), evt))

	n, err := f.store.GetNotificationByKey(context.Background(), userID, evt.MessageID, entity.NotificationMention)
	require.NoError(t, err)
	assert.Equal(t, f.workspaceID, n.WorkspaceID)
	assert.Equal(t, f.actorID, n.ActorID)
	assert.False(t, n.IsRead)

	var body entity.NotificationBody
	require.NoError(t, json.Unmarshal(n.Payload, &body))
	assert.Equal(t, "hey @alice, ship it", body.Preview)
	assert.Equal(t, "Poster", body.ActorName)

	broadcasts := f.producer.byTopic("broadcast-events")
	require.Len(t, broadcasts, 1)
	var be entity.BroadcastEvent
	require.NoError(t, json.Unmarshal(broadcasts[0].Value, &be))
	assert.Equal(t, "notification", be.Kind)
	assert.Equal(t, n.ID, be.NotificationID)

	pushes := f.producer.byTopic("push-events")
	require.Len(t, pushes, 1)
	var pm entity.PushMessage
	require.NoError(t, json.Unmarshal(pushes[0].Value, &pm))
	assert.Equal(t, "tok-1", pm.PushToken)
	assert.Equal(t, entity.NotificationMention, pm.Type)
}

func TestSelfMentionNeverNotifies(t *testing.T) {
	f := newNotifierFixture(t)

	evt := f.messageEvent("note to self", f.actorID)
	require.NoError(t, f.notifier.HandleMessageCreated(context.Background(), evt))

	assert.Empty(t, f.store.notifications)
	assert.Empty(t, f.producer.published)
}

func TestDuplicateDeliveryCreatesOneNotification(t *testing.T) {
	f := newNotifierFixture(t)
	userID := f.addUser("Alice")

	evt := f.messageEvent("hello", userID)
	require.NoError(t, f.notifier.HandleMessageCreated(context.Background(), evt))
	require.NoError(t, f.notifier.HandleMessageCreated(context.Background(), evt))

	assert.Len(t, f.store.notifications, 1)
	assert.Len(t, f.producer.byTopic("broadcast-events"), 1, "duplicate trigger must not re-broadcast")
}

func TestDoNotDisturbSuppresses(t *testing.T) {
	f := newNotifierFixture(t)
	userID := f.addUser("Alice")
	until := time.Now().Add(time.Hour)
	f.store.settings[userID].DoNotDisturbUntil = &until

	require.NoError(t, f.notifier.HandleMessageCreated(context.Background(), f.messageEvent("ping", userID)))
	assert.Empty(t, f.store.notifications)

	// Expired DND no longer suppresses.
	past := time.Now().Add(-time.Minute)
	f.store.settings[userID].DoNotDisturbUntil = &past
	require.NoError(t, f.notifier.HandleMessageCreated(context.Background(), f.messageEvent("ping again", userID)))
	assert.Len(t, f.store.notifications, 1)
}

func TestQuietHoursWrapAroundMidnight(t *testing.T) {
	f := newNotifierFixture(t)
	userID := f.addUser("Alice")
	f.store.settings[userID].QuietHoursStart = "22:00"
	f.store.settings[userID].QuietHoursEnd = "06:00"

	cases := []struct {
		clock      time.Time
		suppressed bool
	}{
		{time.Date(2026, 8, 30, 23, 30, 0, 0, time.UTC), true},
		{time.Date(2026, 8, 30, 2, 0, 0, 0, time.UTC), true},
		{time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC), false},
	}
	for _, tc := range cases {
		f.notifier.now = func() time.Time { return tc.clock }
		before := len(f.store.notifications)

		require.NoError(t, f.notifier.HandleMessageCreated(context.Background(), f.messageEvent("ping", userID)))

		created := len(f.store.notifications) - before
		if tc.suppressed {
			assert.Zero(t, created, "at %s", tc.clock.Format("15:04"))
		} else {
			assert.Equal(t, 1, created, "at %s", tc.clock.Format("15:04"))
		}
	}
}

func TestMutedConversationSuppresses(t *testing.T) {
	f := newNotifierFixture(t)
	userID := f.addUser("Alice")
	until := time.Now().Add(time.Hour)
	f.store.prefs[prefKey(userID, f.conversationID)] = &entity.NotificationPreference{
		UserID:         userID,
		ConversationID: f.conversationID,
		NotifyLevel:    entity.NotifyAll,
		MutedUntil:     &until,
	}

	require.NoError(t, f.notifier.HandleMessageCreated(context.Background(), f.messageEvent("ping", userID)))
	assert.Empty(t, f.store.notifications)
}

func TestMentionsOnlyPreferenceLetsMentionsThrough(t *testing.T) {
	f := newNotifierFixture(t)
	parentAuthor := f.addUser("Alice")
	f.store.prefs[prefKey(parentAuthor, f.conversationID)] = &entity.NotificationPreference{
		UserID:         parentAuthor,
		ConversationID: f.conversationID,
		NotifyLevel:    entity.NotifyMentions,
	}

	// Thread reply is filtered by the mentions-only preference.
	parentMessageID := uuid.Must(uuid.NewV4())
	reply := f.messageEvent("replying")
	reply.ParentMessageID = &parentMessageID
	reply.ParentAuthorID = &parentAuthor
	require.NoError(t, f.notifier.HandleMessageCreated(context.Background(), reply))
	assert.Empty(t, f.store.notifications)

	// A mention still gets through.
	require.NoError(t, f.notifier.HandleMessageCreated(context.Background(), f.messageEvent("cc", parentAuthor)))
	assert.Len(t, f.store.notifications, 1)
}

func TestDefaultLevelNothingSuppressesEverything(t *testing.T) {
	f := newNotifierFixture(t)
	userID := f.addUser("Alice")
	f.store.settings[userID].DefaultNotifyLevel = entity.NotifyNothing

	require.NoError(t, f.notifier.HandleMessageCreated(context.Background(), f.messageEvent("ping", userID)))
	assert.Empty(t, f.store.notifications)
}

func TestThreadReplyNotifiesParentAuthor(t *testing.T) {
	f := newNotifierFixture(t)
	parentAuthor := f.addUser("Alice")
	parentMessageID := uuid.Must(uuid.NewV4())

	reply := f.messageEvent("good point")
	reply.ParentMessageID = &parentMessageID
	reply.ParentAuthorID = &parentAuthor
	require.NoError(t, f.notifier.HandleMessageCreated(context.Background(), reply))

	_, err := f.store.GetNotificationByKey(context.Background(), parentAuthor, reply.MessageID, entity.NotificationThreadReply)
	require.NoError(t, err)
	assert.Equal(t, 1, f.store.replyCounts[parentMessageID])
}

func TestKeywordMatchNotifiesMember(t *testing.T) {
	f := newNotifierFixture(t)
	userID := f.addUser("Alice")
	f.store.settings[userID].Keywords = []string{"deploy", "incident"}

	evt := f.messageEvent("the Deploy finished")
	require.NoError(t, f.notifier.HandleMessageCreated(context.Background(), evt))

	n, err := f.store.GetNotificationByKey(context.Background(), userID, evt.MessageID, entity.NotificationKeyword)
	require.NoError(t, err)

	var body entity.NotificationBody
	require.NoError(t, json.Unmarshal(n.Payload, &body))
	assert.Equal(t, "deploy", body.Keyword)
}

func TestMentionAndKeywordBothFire(t *testing.T) {
	f := newNotifierFixture(t)
	userID := f.addUser("Alice")
	f.store.settings[userID].Keywords = []string{"deploy"}

	evt := f.messageEvent("@alice the deploy is live", userID)
	require.NoError(t, f.notifier.HandleMessageCreated(context.Background(), evt))

	_, err := f.store.GetNotificationByKey(context.Background(), userID, evt.MessageID, entity.NotificationMention)
	require.NoError(t, err)
	_, err = f.store.GetNotificationByKey(context.Background(), userID, evt.MessageID, entity.NotificationKeyword)
	require.NoError(t, err)
	assert.Len(t, f.store.notifications, 2)
}

func TestPushRespectsPlatformFlags(t *testing.T) {
	f := newNotifierFixture(t)
	userID := f.addUser("Alice")
	f.store.settings[userID].MobilePush = false
	f.store.devices[userID] = []entity.Device{
		{ID: uuid.Must(uuid.NewV4()), UserID: userID, Platform: entity.PlatformIOS, PushToken: "mobile-tok"},
		{ID: uuid.Must(uuid.NewV4()), UserID: userID, Platform: entity.PlatformDesktop, PushToken: "desktop-tok"},
	}

	require.NoError(t, f.notifier.HandleMessageCreated(context.Background(), f.messageEvent("ping", userID)))

	pushes := f.producer.byTopic("push-events")
	require.Len(t, pushes, 1)
	var pm entity.PushMessage
	require.NoError(t, json.Unmarshal(pushes[0].Value, &pm))
	assert.Equal(t, "desktop-tok", pm.PushToken)
}

func TestPreviewTruncatesLongBodies(t *testing.T) {
	f := newNotifierFixture(t)
	userID := f.addUser("Alice")

	long := strings.Repeat("я", 300)
	evt := f.messageEvent(long, userID)
	require.NoError(t, f.notifier.HandleMessageCreated(context.Background(), evt))

	n, err := f.store.GetNotificationByKey(context.Background(), userID, evt.MessageID, entity.NotificationMention)
	require.NoError(t, err)

	var body entity.NotificationBody
	require.NoError(t, json.Unmarshal(n.Payload, &body))
	assert.Equal(t, 120, len([]rune(body.Preview)))
}
