package entity

import (
	"encoding/json"
	"time"

	"github.com/gofrs/uuid"
)

type NotificationType string

const (
	NotificationMention     NotificationType = "mention"
	NotificationThreadReply NotificationType = "thread_reply"
	NotificationKeyword     NotificationType = "keyword"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationMention, NotificationThreadReply, NotificationKeyword:
		return true
	}
	return false
}

// Notification is a per-user in-app record. At most one row exists per
// (user, message, type); duplicate triggers return the existing row.
type Notification struct {
	ID             int64            `db:"id"`
	WorkspaceID    uuid.UUID        `db:"workspace_id"`
	UserID         uuid.UUID        `db:"user_id"`
	Type           NotificationType `db:"type"`
	ActorID        uuid.UUID        `db:"actor_id"`
	ConversationID uuid.UUID        `db:"conversation_id"`
	MessageID      uuid.UUID        `db:"message_id"`
	Payload        json.RawMessage  `db:"payload"`
	IsRead         bool             `db:"is_read"`
	CreatedAt      time.Time        `db:"created_at"`
}

// NotificationBody is what goes into Notification.Payload.
type NotificationBody struct {
	Preview   string `json:"preview"`
	Keyword   string `json:"keyword,omitempty"`
	ActorName string `json:"actor_name,omitempty"`
}

type NotifyLevel string

const (
	NotifyAll      NotifyLevel = "all"
	NotifyMentions NotifyLevel = "mentions"
	NotifyNothing  NotifyLevel = "nothing"
)

// Suppresses reports whether the level blocks a notification of the given
// type. "mentions" lets only mention notifications through.
func (l NotifyLevel) Suppresses(t NotificationType) bool {
	switch l {
	case NotifyNothing:
		return true
	case NotifyMentions:
		return t != NotificationMention
	}
	return false
}

// NotificationPreference is the per-(user, conversation) override. Absence of
// a row falls back to UserSettings.DefaultNotifyLevel.
type NotificationPreference struct {
	UserID         uuid.UUID   `db:"user_id"`
	ConversationID uuid.UUID   `db:"conversation_id"`
	NotifyLevel    NotifyLevel `db:"notify_level"`
	MobilePush     bool        `db:"mobile_push"`
	DesktopPush    bool        `db:"desktop_push"`
	Email          bool        `db:"email"`
	MutedUntil     *time.Time  `db:"muted_until"`
	UpdatedAt      time.Time   `db:"updated_at"`
}

// Muted reports whether the conversation is explicitly muted at ts.
func (p *NotificationPreference) Muted(ts time.Time) bool {
	return p.MutedUntil != nil && p.MutedUntil.After(ts)
}
