package service

import (
	"context"
	"encoding/json"
	"testing"

	"teamchat/internal/appers"
	"teamchat/internal/application/entity"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLogAppends(t *testing.T) {
	store := newFakeRepo()
	audit := NewAudit(store, testLogger())
	workspaceID := uuid.Must(uuid.NewV4())
	userID := uuid.Must(uuid.NewV4())
	kind := entity.SubjectMessage
	subjectID := uuid.Must(uuid.NewV4())

	entry := &entity.AuditLog{
		WorkspaceID: workspaceID,
		UserID:      &userID,
		Action:      "message.delete",
		SubjectKind: &kind,
		SubjectID:   &subjectID,
		Metadata:    json.RawMessage(`{"reason":"spam"}`),
		IPAddress:   "10.0.0.1",
		UserAgent:   "cli/1.0",
	}
	require.NoError(t, audit.Log(context.Background(), entry))
	assert.NotZero(t, entry.ID)

	logs, err := audit.List(context.Background(), workspaceID, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "message.delete", logs[0].Action)
}

func TestAuditLogRequiresWorkspaceAndAction(t *testing.T) {
	store := newFakeRepo()
	audit := NewAudit(store, testLogger())

	err := audit.Log(context.Background(), &entity.AuditLog{Action: "x"})
	assert.ErrorIs(t, err, appers.ErrAuditIncomplete)

	err = audit.Log(context.Background(), &entity.AuditLog{WorkspaceID: uuid.Must(uuid.NewV4())})
	assert.ErrorIs(t, err, appers.ErrAuditIncomplete)

	bad := entity.SubjectKind("spaceship")
	err = audit.Log(context.Background(), &entity.AuditLog{
		WorkspaceID: uuid.Must(uuid.NewV4()),
		Action:      "x",
		SubjectKind: &bad,
	})
	assert.ErrorIs(t, err, appers.ErrAuditIncomplete)

	assert.Empty(t, store.audits)
}
