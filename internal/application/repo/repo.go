package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"teamchat/internal/appers"
	"teamchat/internal/application/entity"
	"teamchat/pkg/db"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

type Repo interface {
	GetApp(ctx context.Context, id uuid.UUID) (*entity.App, error)
	UpdateAppFromManifest(ctx context.Context, id uuid.UUID, m *entity.AppManifest) error

	InsertOutbox(ctx context.Context, e *entity.OutboxEvent) error
	GetOutboxEvent(ctx context.Context, id int64) (*entity.OutboxEvent, error)
	ListOutbox(ctx context.Context, workspaceID uuid.UUID, status entity.OutboxStatus, limit int) ([]entity.OutboxEvent, error)
	ReserveOutboxBatch(ctx context.Context, lease time.Duration, limit, maxAttempts int) ([]entity.OutboxEvent, error)
	MarkOutboxDelivered(ctx context.Context, id int64, attempts int, at time.Time) error
	MarkOutboxRetry(ctx context.Context, id int64, attempts int, lastErr string, at, nextAttemptAt time.Time) error
	MarkOutboxExhausted(ctx context.Context, id int64, attempts int, lastErr string, at time.Time) error
	MarkOutboxUndeliverable(ctx context.Context, id int64, attempts int, reason string) error
	CountOutboxByStatus(ctx context.Context) (map[entity.OutboxStatus]int64, error)

	InsertNotification(ctx context.Context, n *entity.Notification) (bool, error)
	GetNotificationByKey(ctx context.Context, userID, messageID uuid.UUID, typ entity.NotificationType) (*entity.Notification, error)
	ListNotifications(ctx context.Context, userID uuid.UUID, limit int) ([]entity.Notification, error)
	MarkNotificationRead(ctx context.Context, id int64, userID uuid.UUID) error

	GetUserSettings(ctx context.Context, userID uuid.UUID) (*entity.UserSettings, error)
	GetPreference(ctx context.Context, userID, conversationID uuid.UUID) (*entity.NotificationPreference, error)
	UpsertPreference(ctx context.Context, p *entity.NotificationPreference) error
	ListMemberSettings(ctx context.Context, conversationID uuid.UUID) ([]entity.UserSettings, error)
	ListDevices(ctx context.Context, userID uuid.UUID) ([]entity.Device, error)

	IncrementReplyCount(ctx context.Context, messageID uuid.UUID) (int, error)

	InsertAudit(ctx context.Context, a *entity.AuditLog) error
	ListAuditLogs(ctx context.Context, workspaceID uuid.UUID, limit int) ([]entity.AuditLog, error)

	HealthCheck(ctx context.Context) error
}

type RepoImpl struct {
	db     db.DB
	logger *zap.SugaredLogger
}

func NewRepo(db db.DB, logger *zap.SugaredLogger) *RepoImpl {
	return &RepoImpl{db: db, logger: logger}
}

func (r *RepoImpl) HealthCheck(ctx context.Context) error {
	var result int
	err := r.db.QueryRow(ctx, "SELECT 1").Scan(&result)
	if err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

func (r *RepoImpl) GetApp(ctx context.Context, id uuid.UUID) (*entity.App, error) {
	r.logger.Debugf("[app: %s] GetApp started", id)

	var a entity.App
	err := r.db.QueryRow(ctx, getAppQuery, id).Scan(
		&a.ID, &a.WorkspaceID, &a.Name, &a.CallbackURL, &a.ManifestURL, &a.CreatedAt, &a.UpdatedAt,
	)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, appers.ErrAppNotFound
	case err != nil:
		return nil, fmt.Errorf("get app: %w", err)
	}
	return &a, nil
}

func (r *RepoImpl) UpdateAppFromManifest(ctx context.Context, id uuid.UUID, m *entity.AppManifest) error {
	r.logger.Debugf("[app: %s] UpdateAppFromManifest started", id)

	var callback *string
	if m.CallbackURL != "" {
		callback = &m.CallbackURL
	}
	result, err := r.db.Exec(ctx, updateAppFromManifestQuery, id, m.Name, callback)
	if err != nil {
		return fmt.Errorf("update app from manifest: %w", err)
	}
	if result.RowsAffected() == 0 {
		return appers.ErrAppNotFound
	}
	return nil
}

func (r *RepoImpl) GetUserSettings(ctx context.Context, userID uuid.UUID) (*entity.UserSettings, error) {
	var u entity.UserSettings
	err := r.db.QueryRow(ctx, getUserSettingsQuery, userID).Scan(
		&u.UserID, &u.DisplayName, &u.DefaultNotifyLevel, &u.DoNotDisturbUntil,
		&u.QuietHoursStart, &u.QuietHoursEnd, &u.Keywords, &u.MobilePush, &u.DesktopPush,
	)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, appers.ErrUserNotFound
	case err != nil:
		return nil, fmt.Errorf("get user settings: %w", err)
	}
	return &u, nil
}

// GetPreference returns (nil, nil) when the user has no override for the
// conversation; callers fall back to UserSettings.DefaultNotifyLevel.
func (r *RepoImpl) GetPreference(ctx context.Context, userID, conversationID uuid.UUID) (*entity.NotificationPreference, error) {
	var p entity.NotificationPreference
	err := r.db.QueryRow(ctx, getPreferenceQuery, userID, conversationID).Scan(
		&p.UserID, &p.ConversationID, &p.NotifyLevel, &p.MobilePush, &p.DesktopPush,
		&p.Email, &p.MutedUntil, &p.UpdatedAt,
	)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("get preference: %w", err)
	}
	return &p, nil
}

func (r *RepoImpl) UpsertPreference(ctx context.Context, p *entity.NotificationPreference) error {
	r.logger.Debugf("[user: %s, conversation: %s] UpsertPreference started", p.UserID, p.ConversationID)

	_, err := r.db.Exec(ctx, upsertPreferenceQuery,
		p.UserID, p.ConversationID, string(p.NotifyLevel), p.MobilePush, p.DesktopPush, p.Email, p.MutedUntil,
	)
	if err != nil {
		return fmt.Errorf("upsert preference: %w", err)
	}
	return nil
}

func (r *RepoImpl) ListMemberSettings(ctx context.Context, conversationID uuid.UUID) ([]entity.UserSettings, error) {
	rows, err := r.db.Query(ctx, listMemberSettingsQuery, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list member settings: %w", err)
	}
	defer rows.Close()

	var res []entity.UserSettings
	for rows.Next() {
		var u entity.UserSettings
		if err := rows.Scan(
			&u.UserID, &u.DisplayName, &u.DefaultNotifyLevel, &u.DoNotDisturbUntil,
			&u.QuietHoursStart, &u.QuietHoursEnd, &u.Keywords, &u.MobilePush, &u.DesktopPush,
		); err != nil {
			return nil, fmt.Errorf("scan member settings: %w", err)
		}
		res = append(res, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("member settings rows err: %w", err)
	}
	return res, nil
}

func (r *RepoImpl) ListDevices(ctx context.Context, userID uuid.UUID) ([]entity.Device, error) {
	rows, err := r.db.Query(ctx, listDevicesQuery, userID)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	var res []entity.Device
	for rows.Next() {
		var d entity.Device
		if err := rows.Scan(&d.ID, &d.UserID, &d.Platform, &d.PushToken, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		res = append(res, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("devices rows err: %w", err)
	}
	return res, nil
}

// IncrementReplyCount bumps the thread counter for a parent message,
// creating the stats row on first reply. Returns the new count.
func (r *RepoImpl) IncrementReplyCount(ctx context.Context, messageID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, incrementReplyCountQuery, messageID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("increment reply count: %w", err)
	}
	return count, nil
}

// isDuplicateKeyError reports SQLSTATE 23505 (unique violation).
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
