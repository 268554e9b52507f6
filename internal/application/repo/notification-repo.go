package repo

import (
	"context"
	"errors"
	"fmt"

	"teamchat/internal/appers"
	"teamchat/internal/application/entity"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
)

// InsertNotification creates the row unless one already exists for the
// (user, message, type) key. Returns false on the duplicate path; the caller
// re-reads the existing row for the idempotent result.
func (r *RepoImpl) InsertNotification(ctx context.Context, n *entity.Notification) (bool, error) {
	r.logger.Debugf("[user: %s, message: %s, type: %s] InsertNotification started", n.UserID, n.MessageID, n.Type)

	err := r.db.QueryRow(ctx, insertNotificationQuery,
		n.WorkspaceID, n.UserID, string(n.Type), n.ActorID, n.ConversationID, n.MessageID, []byte(n.Payload),
	).Scan(&n.ID, &n.CreatedAt)

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, pgx.ErrNoRows):
		// ON CONFLICT DO NOTHING returned no row: already exists
		return false, nil
	case isDuplicateKeyError(err):
		return false, nil
	default:
		return false, fmt.Errorf("insert notification: %w", err)
	}
}

func (r *RepoImpl) GetNotificationByKey(ctx context.Context, userID, messageID uuid.UUID, typ entity.NotificationType) (*entity.Notification, error) {
	var n entity.Notification
	var t string
	err := r.db.QueryRow(ctx, getNotificationByKeyQuery, userID, messageID, string(typ)).Scan(
		&n.ID, &n.WorkspaceID, &n.UserID, &t, &n.ActorID, &n.ConversationID,
		&n.MessageID, &n.Payload, &n.IsRead, &n.CreatedAt,
	)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, appers.ErrNotificationNotFound
	case err != nil:
		return nil, fmt.Errorf("get notification by key: %w", err)
	}
	n.Type = entity.NotificationType(t)
	return &n, nil
}

func (r *RepoImpl) ListNotifications(ctx context.Context, userID uuid.UUID, limit int) ([]entity.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, listNotificationsQuery, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var res []entity.Notification
	for rows.Next() {
		var n entity.Notification
		var t string
		if err := rows.Scan(
			&n.ID, &n.WorkspaceID, &n.UserID, &t, &n.ActorID, &n.ConversationID,
			&n.MessageID, &n.Payload, &n.IsRead, &n.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Type = entity.NotificationType(t)
		res = append(res, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("notifications rows err: %w", err)
	}
	return res, nil
}

// MarkNotificationRead flips is_read, the only mutation a notification row
// ever sees. Scoped by user so one user cannot ack another's rows.
func (r *RepoImpl) MarkNotificationRead(ctx context.Context, id int64, userID uuid.UUID) error {
	result, err := r.db.Exec(ctx, markNotificationReadQuery, id, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if result.RowsAffected() == 0 {
		return appers.ErrNotificationNotFound
	}
	return nil
}
