package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNotifyLevelSuppresses(t *testing.T) {
	assert.False(t, NotifyAll.Suppresses(NotificationMention))
	assert.False(t, NotifyAll.Suppresses(NotificationKeyword))

	assert.False(t, NotifyMentions.Suppresses(NotificationMention))
	assert.True(t, NotifyMentions.Suppresses(NotificationThreadReply))
	assert.True(t, NotifyMentions.Suppresses(NotificationKeyword))

	assert.True(t, NotifyNothing.Suppresses(NotificationMention))
	assert.True(t, NotifyNothing.Suppresses(NotificationThreadReply))
	assert.True(t, NotifyNothing.Suppresses(NotificationKeyword))
}

func TestPreferenceMuted(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	assert.True(t, (&NotificationPreference{MutedUntil: &future}).Muted(now))
	assert.False(t, (&NotificationPreference{MutedUntil: &past}).Muted(now))
	assert.False(t, (&NotificationPreference{}).Muted(now))
}

func TestOutboxStatusTerminal(t *testing.T) {
	assert.False(t, OutboxPending.Terminal())
	assert.True(t, OutboxSuccess.Terminal())
	assert.True(t, OutboxFailed.Terminal())
}

func TestOutboxEventTypeValid(t *testing.T) {
	assert.True(t, EventSlashCommand.Valid())
	assert.True(t, EventWebhook.Valid())
	assert.False(t, OutboxEventType("message").Valid())
}
