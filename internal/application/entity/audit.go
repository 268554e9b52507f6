package entity

import (
	"encoding/json"
	"time"

	"github.com/gofrs/uuid"
)

// SubjectKind tags what an audit entry is about. Kept as a closed enum so
// audit rows stay queryable without free-form type strings.
type SubjectKind string

const (
	SubjectMessage         SubjectKind = "message"
	SubjectApp             SubjectKind = "app"
	SubjectBotInstallation SubjectKind = "bot_installation"
	SubjectUser            SubjectKind = "user"
	SubjectWorkspace       SubjectKind = "workspace"
	SubjectInvite          SubjectKind = "invite"
)

func (k SubjectKind) Valid() bool {
	switch k {
	case SubjectMessage, SubjectApp, SubjectBotInstallation,
		SubjectUser, SubjectWorkspace, SubjectInvite:
		return true
	}
	return false
}

// AuditLog is an append-only record of an app/bot action. Nil UserID means
// the action was system-triggered.
type AuditLog struct {
	ID          int64           `db:"id"`
	WorkspaceID uuid.UUID       `db:"workspace_id"`
	AppID       *uuid.UUID      `db:"app_id"`
	UserID      *uuid.UUID      `db:"user_id"`
	Action      string          `db:"action"`
	SubjectKind *SubjectKind    `db:"subject_kind"`
	SubjectID   *uuid.UUID      `db:"subject_id"`
	Metadata    json.RawMessage `db:"metadata"`
	IPAddress   string          `db:"ip_address"`
	UserAgent   string          `db:"user_agent"`
	CreatedAt   time.Time       `db:"created_at"`
}
