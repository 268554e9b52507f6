package use_cases

import (
	"context"
	"encoding/json"
	"fmt"

	"teamchat/internal/appers"
	"teamchat/internal/application/entity"
	"teamchat/internal/application/repo"
	"teamchat/internal/application/service"
	"teamchat/internal/transport/webhook"
	"teamchat/pkg/config"
	"teamchat/pkg/validator"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"
)

type UseCaser interface {
	Dispatch(ctx context.Context, req service.DispatchRequest) (*entity.OutboxEvent, error)
	GetOutboxEvent(ctx context.Context, id int64) (*entity.OutboxEvent, error)
	ListOutbox(ctx context.Context, workspaceID uuid.UUID, status entity.OutboxStatus, limit int) ([]entity.OutboxEvent, error)
	SyncAppManifest(ctx context.Context, appID uuid.UUID) (*entity.App, error)

	ConsumeMessageEvent(ctx context.Context, msg []byte) error
	ListNotifications(ctx context.Context, userID uuid.UUID, limit int) ([]entity.Notification, error)
	MarkNotificationRead(ctx context.Context, id int64, userID uuid.UUID) error
	UpsertPreference(ctx context.Context, p *entity.NotificationPreference) error

	MarkOnline(ctx context.Context, workspaceID, userID uuid.UUID) error
	MarkOffline(ctx context.Context, workspaceID, userID uuid.UUID) error
	RefreshPresence(ctx context.Context, userID uuid.UUID) (bool, error)
	OnlineUsers(ctx context.Context, workspaceID uuid.UUID) ([]uuid.UUID, error)
	StartTyping(ctx context.Context, conversationID, userID uuid.UUID) error
	StopTyping(ctx context.Context, conversationID, userID uuid.UUID) error
	TypingIndicator(ctx context.Context, conversationID, excludeUser uuid.UUID) (string, error)

	ListAuditLogs(ctx context.Context, workspaceID uuid.UUID, limit int) ([]entity.AuditLog, error)

	RunRelay(ctx context.Context)
	SweepOutboxStats(ctx context.Context)

	HealthCheck(ctx context.Context) (dbHealthy, kafkaHealthy, redisHealthy bool, err error)
}

type UseCase struct {
	service *service.Service
	repo    repo.Repo
	fetcher webhook.ManifestFetcher
	logger  *zap.SugaredLogger
	conf    *config.Config
}

func NewUseCase(service *service.Service, repo repo.Repo, fetcher webhook.ManifestFetcher, logger *zap.SugaredLogger, conf *config.Config) *UseCase {
	return &UseCase{
		service: service,
		repo:    repo,
		fetcher: fetcher,
		logger:  logger,
		conf:    conf,
	}
}

func (u *UseCase) HealthCheck(ctx context.Context) (dbHealthy, kafkaHealthy, redisHealthy bool, err error) {
	return u.service.HealthCheck(ctx)
}

func (u *UseCase) Dispatch(ctx context.Context, req service.DispatchRequest) (*entity.OutboxEvent, error) {
	u.logger.Debugf("[app: %s] Dispatch started", req.AppID)
	return u.service.Dispatcher.Dispatch(ctx, req)
}

func (u *UseCase) GetOutboxEvent(ctx context.Context, id int64) (*entity.OutboxEvent, error) {
	return u.service.Dispatcher.GetOutboxEvent(ctx, id)
}

func (u *UseCase) ListOutbox(ctx context.Context, workspaceID uuid.UUID, status entity.OutboxStatus, limit int) ([]entity.OutboxEvent, error) {
	return u.service.Dispatcher.ListOutbox(ctx, workspaceID, status, limit)
}

// SyncAppManifest re-fetches an app's manifest and applies name/callback
// changes. Returns the refreshed app row.
func (u *UseCase) SyncAppManifest(ctx context.Context, appID uuid.UUID) (*entity.App, error) {
	u.logger.Debugf("[app: %s] SyncAppManifest started", appID)

	app, err := u.repo.GetApp(ctx, appID)
	if err != nil {
		return nil, err
	}
	if app.ManifestURL == nil || *app.ManifestURL == "" {
		return nil, appers.ErrNoManifest
	}

	manifest, err := u.fetcher.FetchManifest(ctx, *app.ManifestURL)
	if err != nil {
		return nil, fmt.Errorf("fetch manifest: %w", err)
	}
	if err := validator.Validate.Struct(manifest); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}

	if err := u.repo.UpdateAppFromManifest(ctx, appID, manifest); err != nil {
		return nil, err
	}

	subjectKind := entity.SubjectApp
	if err := u.service.Audit.Log(ctx, &entity.AuditLog{
		WorkspaceID: app.WorkspaceID,
		AppID:       &app.ID,
		Action:      "app.manifest_sync",
		SubjectKind: &subjectKind,
		SubjectID:   &app.ID,
	}); err != nil {
		return nil, err
	}

	return u.repo.GetApp(ctx, appID)
}

// ConsumeMessageEvent decodes one broker message and runs notification
// fan-out. Decode and validation failures are returned so the listener can
// count them; the message is still committed, a malformed event never
// becomes deliverable by retrying.
func (u *UseCase) ConsumeMessageEvent(ctx context.Context, msg []byte) error {
	var evt entity.MessageEvent
	if err := json.Unmarshal(msg, &evt); err != nil {
		return fmt.Errorf("decode message event: %w", err)
	}
	if err := validator.Validate.Struct(&evt); err != nil {
		return fmt.Errorf("invalid message event: %w", err)
	}

	return u.service.Notifier.HandleMessageCreated(ctx, &evt)
}

func (u *UseCase) ListNotifications(ctx context.Context, userID uuid.UUID, limit int) ([]entity.Notification, error) {
	return u.service.Notifier.ListNotifications(ctx, userID, limit)
}

func (u *UseCase) MarkNotificationRead(ctx context.Context, id int64, userID uuid.UUID) error {
	return u.service.Notifier.MarkRead(ctx, id, userID)
}

func (u *UseCase) UpsertPreference(ctx context.Context, p *entity.NotificationPreference) error {
	return u.service.Notifier.UpsertPreference(ctx, p)
}

func (u *UseCase) MarkOnline(ctx context.Context, workspaceID, userID uuid.UUID) error {
	return u.service.Presence.MarkOnline(ctx, workspaceID, userID)
}

func (u *UseCase) MarkOffline(ctx context.Context, workspaceID, userID uuid.UUID) error {
	return u.service.Presence.MarkOffline(ctx, workspaceID, userID)
}

func (u *UseCase) RefreshPresence(ctx context.Context, userID uuid.UUID) (bool, error) {
	return u.service.Presence.Refresh(ctx, userID)
}

func (u *UseCase) OnlineUsers(ctx context.Context, workspaceID uuid.UUID) ([]uuid.UUID, error) {
	return u.service.Presence.OnlineUsers(ctx, workspaceID)
}

// StartTyping resolves the user's display name once so the indicator can be
// rendered straight from the cache.
func (u *UseCase) StartTyping(ctx context.Context, conversationID, userID uuid.UUID) error {
	settings, err := u.repo.GetUserSettings(ctx, userID)
	if err != nil {
		return err
	}
	return u.service.Presence.StartTyping(ctx, conversationID, userID, settings.DisplayName)
}

func (u *UseCase) StopTyping(ctx context.Context, conversationID, userID uuid.UUID) error {
	return u.service.Presence.StopTyping(ctx, conversationID, userID)
}

func (u *UseCase) TypingIndicator(ctx context.Context, conversationID, excludeUser uuid.UUID) (string, error) {
	names, err := u.service.Presence.TypingUsers(ctx, conversationID, excludeUser)
	if err != nil {
		return "", err
	}
	return service.TypingMessage(names), nil
}

func (u *UseCase) ListAuditLogs(ctx context.Context, workspaceID uuid.UUID, limit int) ([]entity.AuditLog, error) {
	return u.service.Audit.List(ctx, workspaceID, limit)
}

func (u *UseCase) RunRelay(ctx context.Context) {
	u.logger.Debug("relay started")
	u.service.Relay.Run(ctx)
}

// SweepOutboxStats refreshes the per-status outbox gauges; wired to cron.
func (u *UseCase) SweepOutboxStats(ctx context.Context) {
	if err := u.service.Dispatcher.UpdateOutboxGauges(ctx); err != nil {
		u.logger.Errorw("outbox stats sweep failed", "err", err)
	}
}
