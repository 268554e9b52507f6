package repo

import (
	"context"
	"fmt"

	"teamchat/internal/application/entity"

	"github.com/gofrs/uuid"
)

// InsertAudit appends one audit row. Errors propagate to the caller; audit
// completeness is a compliance requirement, so nothing is swallowed here.
func (r *RepoImpl) InsertAudit(ctx context.Context, a *entity.AuditLog) error {
	var kind *string
	if a.SubjectKind != nil {
		s := string(*a.SubjectKind)
		kind = &s
	}

	metadata := a.Metadata
	if len(metadata) == 0 {
		metadata = []byte("{}")
	}

	err := r.db.QueryRow(ctx, insertAuditQuery,
		a.WorkspaceID, a.AppID, a.UserID, a.Action, kind, a.SubjectID,
		[]byte(metadata), a.IPAddress, a.UserAgent,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert audit_log: %w", err)
	}

	return nil
}

func (r *RepoImpl) ListAuditLogs(ctx context.Context, workspaceID uuid.UUID, limit int) ([]entity.AuditLog, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, listAuditLogsQuery, workspaceID, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	var res []entity.AuditLog
	for rows.Next() {
		var a entity.AuditLog
		var kind *string
		if err := rows.Scan(
			&a.ID, &a.WorkspaceID, &a.AppID, &a.UserID, &a.Action,
			&kind, &a.SubjectID, &a.Metadata, &a.IPAddress, &a.UserAgent, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		if kind != nil {
			k := entity.SubjectKind(*kind)
			a.SubjectKind = &k
		}
		res = append(res, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit rows err: %w", err)
	}
	return res, nil
}
