package service

import (
	"context"
	"fmt"

	"teamchat/internal/appers"
	"teamchat/internal/application/entity"
	"teamchat/internal/application/repo"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"
)

// Audit is a pure append surface. It records and never interprets; the only
// validation is the pair of fields without which a row is meaningless.
// Write failures propagate to the caller, an incomplete trail is an error
// the action owner has to see.
type Audit struct {
	repo   repo.Repo
	logger *zap.SugaredLogger
}

func NewAudit(repo repo.Repo, logger *zap.SugaredLogger) *Audit {
	return &Audit{repo: repo, logger: logger}
}

func (a *Audit) Log(ctx context.Context, entry *entity.AuditLog) error {
	if entry.WorkspaceID == uuid.Nil || entry.Action == "" {
		return fmt.Errorf("%w: workspace and action are required", appers.ErrAuditIncomplete)
	}
	if entry.SubjectKind != nil && !entry.SubjectKind.Valid() {
		return fmt.Errorf("%w: unknown subject kind %q", appers.ErrAuditIncomplete, *entry.SubjectKind)
	}

	if err := a.repo.InsertAudit(ctx, entry); err != nil {
		a.logger.Errorf("[workspace: %s] audit append failed, action: %s, err: %v", entry.WorkspaceID, entry.Action, err)
		return err
	}
	a.logger.Debugf("[ID %d] audit appended, action: %s", entry.ID, entry.Action)
	return nil
}

func (a *Audit) List(ctx context.Context, workspaceID uuid.UUID, limit int) ([]entity.AuditLog, error) {
	return a.repo.ListAuditLogs(ctx, workspaceID, limit)
}
