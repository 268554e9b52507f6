package entity

import (
	"encoding/json"
	"time"

	"github.com/gofrs/uuid"
)

type OutboxStatus string

const (
	OutboxPending OutboxStatus = "PENDING"
	OutboxSuccess OutboxStatus = "SUCCESS"
	OutboxFailed  OutboxStatus = "FAILED"
)

// Terminal reports whether the status admits no further delivery attempts.
func (s OutboxStatus) Terminal() bool {
	return s == OutboxSuccess || s == OutboxFailed
}

type OutboxEventType string

const (
	EventSlashCommand OutboxEventType = "slash_command"
	EventWebhook      OutboxEventType = "webhook"
)

func (t OutboxEventType) Valid() bool {
	return t == EventSlashCommand || t == EventWebhook
}

// OutboxEvent is one durable record of an app-bound delivery. Status and
// Attempts together act as the fencing token: every mutation is conditional
// on the (status, attempts) pair the worker observed when it picked the row.
type OutboxEvent struct {
	ID            int64           `db:"id"`
	WorkspaceID   uuid.UUID       `db:"workspace_id"`
	AppID         uuid.UUID       `db:"app_id"`
	EventType     OutboxEventType `db:"event_type"`
	Payload       json.RawMessage `db:"payload"`
	Status        OutboxStatus    `db:"status"`
	Attempts      int             `db:"attempts"`
	NextAttemptAt time.Time       `db:"next_attempt_at"`
	LastAttemptAt *time.Time      `db:"last_attempt_at"`
	LastError     *string         `db:"last_error"`
	CreatedAt     time.Time       `db:"created_at"`
}

// SlashCommandPayload is the JSON body posted to an app callback for
// slash_command events. Generic webhook events carry an opaque payload.
type SlashCommandPayload struct {
	Command        string    `json:"command"`
	Text           string    `json:"text"`
	ConversationID uuid.UUID `json:"conversation_id"`
	UserID         uuid.UUID `json:"user_id"`
	UserName       string    `json:"user_name"`
	WorkspaceID    uuid.UUID `json:"workspace_id"`
}
