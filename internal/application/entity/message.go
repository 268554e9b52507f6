package entity

import (
	"github.com/gofrs/uuid"
)

// MessageEvent is the message-created event consumed from the broker.
// Message persistence, body parsing and mention extraction happen upstream;
// this carries the already-resolved references the fan-out needs.
type MessageEvent struct {
	MessageID      uuid.UUID   `json:"message_id" validate:"required"`
	WorkspaceID    uuid.UUID   `json:"workspace_id" validate:"required"`
	ConversationID uuid.UUID   `json:"conversation_id" validate:"required"`
	ActorID        uuid.UUID   `json:"actor_id" validate:"required"`
	ActorName      string      `json:"actor_name"`
	Body           string      `json:"body"`
	MentionUserIDs []uuid.UUID `json:"mention_user_ids"`

	// Set when the message is a thread reply.
	ParentMessageID *uuid.UUID `json:"parent_message_id,omitempty"`
	ParentAuthorID  *uuid.UUID `json:"parent_author_id,omitempty"`
}

// Reply reports whether the event is a thread reply.
func (e *MessageEvent) Reply() bool {
	return e.ParentMessageID != nil && e.ParentAuthorID != nil
}

// BroadcastEvent is published to the realtime topic for UI consumers
// (websocket layer is an external collaborator).
type BroadcastEvent struct {
	Kind           string    `json:"kind"` // notification|presence_online|presence_offline
	WorkspaceID    uuid.UUID `json:"workspace_id,omitempty"`
	UserID         uuid.UUID `json:"user_id"`
	NotificationID int64     `json:"notification_id,omitempty"`
}

// PushMessage is published to the push topic, one per device token.
type PushMessage struct {
	UserID         uuid.UUID        `json:"user_id"`
	DeviceID       uuid.UUID        `json:"device_id"`
	Platform       DevicePlatform   `json:"platform"`
	PushToken      string           `json:"push_token"`
	Type           NotificationType `json:"type"`
	Preview        string           `json:"preview"`
	ConversationID uuid.UUID        `json:"conversation_id"`
}
