package service

import (
	"context"
	"encoding/json"
	"time"
	"unicode/utf8"

	"teamchat/internal/application/entity"
	"teamchat/internal/application/repo"
	"teamchat/internal/transport/producer"
	"teamchat/pkg/config"
	"teamchat/pkg/metrics"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"
)

const defaultPreviewLength = 120

// Notifier turns incoming message events into per-user notifications and
// fan-out publishes. All entry points are idempotent: the unique
// (user, message, type) key in the notifications table absorbs redelivery
// from the broker, so side effects of a duplicate trigger are no-ops.
type Notifier struct {
	repo          repo.Repo
	producer      producer.Producer
	logger        *zap.SugaredLogger
	previewLength int
	m             *metrics.Metrics
	now           func() time.Time
}

func NewNotifier(repo repo.Repo, producer producer.Producer, logger *zap.SugaredLogger, cfg *config.Notify, m *metrics.Metrics) *Notifier {
	previewLength := cfg.PreviewLength
	if previewLength <= 0 {
		previewLength = defaultPreviewLength
	}
	return &Notifier{
		repo:          repo,
		producer:      producer,
		logger:        logger,
		previewLength: previewLength,
		m:             m,
		now:           time.Now,
	}
}

// HandleMessageCreated is the fan-out entry point for one message event.
// It fires mention notifications for the explicit mention list, a
// thread_reply notification for the parent author on replies, and keyword
// notifications for every other conversation member whose keyword list
// matches the body. A user gets at most one notification per type; mention
// and keyword may both fire for the same user on the same message.
func (n *Notifier) HandleMessageCreated(ctx context.Context, evt *entity.MessageEvent) error {
	n.logger.Debugf("[message: %s] HandleMessageCreated started", evt.MessageID)

	for _, userID := range evt.MentionUserIDs {
		n.notifyOne(ctx, evt, userID, entity.NotificationMention, "")
	}

	if evt.Reply() {
		if _, err := n.repo.IncrementReplyCount(ctx, *evt.ParentMessageID); err != nil {
			n.logger.Errorf("[message: %s] increment reply count failed: %v", evt.MessageID, err)
		}
		n.notifyOne(ctx, evt, *evt.ParentAuthorID, entity.NotificationThreadReply, "")
	}

	members, err := n.repo.ListMemberSettings(ctx, evt.ConversationID)
	if err != nil {
		return err
	}

	// Keyword runs independently of mentions: a mentioned user whose keyword
	// also matches gets both rows, distinguished by type.
	for i := range members {
		member := &members[i]
		kw := member.MatchKeyword(evt.Body)
		if kw == "" {
			continue
		}
		n.notifyOne(ctx, evt, member.UserID, entity.NotificationKeyword, kw)
	}

	n.logger.Debugf("[message: %s] HandleMessageCreated completed", evt.MessageID)
	return nil
}

// notifyOne runs the full suppression chain for one (user, type) candidate
// and, when it passes, inserts the row and publishes broadcast + push.
// Failures are logged, never propagated: one bad recipient must not stall
// the rest of the fan-out.
func (n *Notifier) notifyOne(ctx context.Context, evt *entity.MessageEvent, userID uuid.UUID, typ entity.NotificationType, keyword string) {
	if userID == evt.ActorID {
		n.suppress(typ, "self")
		return
	}

	settings, err := n.repo.GetUserSettings(ctx, userID)
	if err != nil {
		n.logger.Errorf("[user: %s] load settings failed: %v", userID, err)
		return
	}

	ts := n.now()
	if settings.InDoNotDisturb(ts) {
		n.suppress(typ, "dnd")
		return
	}
	if settings.InQuietHours(ts) {
		n.suppress(typ, "quiet_hours")
		return
	}

	pref, err := n.repo.GetPreference(ctx, userID, evt.ConversationID)
	if err != nil {
		n.logger.Errorf("[user: %s] load preference failed: %v", userID, err)
		return
	}

	level := settings.DefaultNotifyLevel
	if pref != nil {
		if pref.Muted(ts) {
			n.suppress(typ, "preference")
			return
		}
		level = pref.NotifyLevel
	}
	if level.Suppresses(typ) {
		n.suppress(typ, "preference")
		return
	}

	body, err := json.Marshal(entity.NotificationBody{
		Preview:   n.preview(evt.Body),
		Keyword:   keyword,
		ActorName: evt.ActorName,
	})
	if err != nil {
		n.logger.Errorf("[user: %s] marshal notification body failed: %v", userID, err)
		return
	}

	notification := &entity.Notification{
		WorkspaceID:    evt.WorkspaceID,
		UserID:         userID,
		Type:           typ,
		ActorID:        evt.ActorID,
		ConversationID: evt.ConversationID,
		MessageID:      evt.MessageID,
		Payload:        body,
	}

	created, err := n.repo.InsertNotification(ctx, notification)
	if err != nil {
		n.logger.Errorf("[user: %s] insert notification failed: %v", userID, err)
		return
	}
	if !created {
		n.suppress(typ, "duplicate")
		return
	}

	n.logger.Infof("[ID %d] notification created, user: %s, type: %s", notification.ID, userID, typ)
	if n.m != nil {
		n.m.Notify.CreatedTotal.WithLabelValues(string(typ)).Inc()
	}

	n.broadcast(ctx, notification)
	n.pushFanOut(ctx, settings, pref, notification)
}

func (n *Notifier) suppress(typ entity.NotificationType, reason string) {
	n.logger.Debugf("notification suppressed, type: %s, reason: %s", typ, reason)
	if n.m != nil {
		n.m.Notify.SuppressedTotal.WithLabelValues(string(typ), reason).Inc()
	}
}

func (n *Notifier) broadcast(ctx context.Context, notification *entity.Notification) {
	msg, err := json.Marshal(entity.BroadcastEvent{
		Kind:           "notification",
		WorkspaceID:    notification.WorkspaceID,
		UserID:         notification.UserID,
		NotificationID: notification.ID,
	})
	if err != nil {
		n.logger.Errorf("[ID %d] marshal broadcast failed: %v", notification.ID, err)
		return
	}
	if err := n.producer.Publish(ctx, n.producer.BroadcastTopic(), notification.UserID.String(), msg); err != nil {
		n.logger.Errorf("[ID %d] publish broadcast failed: %v", notification.ID, err)
	}
}

// pushFanOut enqueues one push message per eligible device. Mobile devices
// honor the mobile_push flag, desktop the desktop_push flag; a per-channel
// conversation preference overrides the user default when present.
func (n *Notifier) pushFanOut(ctx context.Context, settings *entity.UserSettings, pref *entity.NotificationPreference, notification *entity.Notification) {
	mobilePush, desktopPush := settings.MobilePush, settings.DesktopPush
	if pref != nil {
		mobilePush, desktopPush = pref.MobilePush, pref.DesktopPush
	}
	if !mobilePush && !desktopPush {
		return
	}

	devices, err := n.repo.ListDevices(ctx, notification.UserID)
	if err != nil {
		n.logger.Errorf("[user: %s] list devices failed: %v", notification.UserID, err)
		return
	}

	var body entity.NotificationBody
	_ = json.Unmarshal(notification.Payload, &body)

	for _, d := range devices {
		if d.Platform.Mobile() && !mobilePush {
			continue
		}
		if !d.Platform.Mobile() && !desktopPush {
			continue
		}

		msg, err := json.Marshal(entity.PushMessage{
			UserID:         notification.UserID,
			DeviceID:       d.ID,
			Platform:       d.Platform,
			PushToken:      d.PushToken,
			Type:           notification.Type,
			Preview:        body.Preview,
			ConversationID: notification.ConversationID,
		})
		if err != nil {
			n.logger.Errorf("[device: %s] marshal push failed: %v", d.ID, err)
			continue
		}
		if err := n.producer.Publish(ctx, n.producer.PushTopic(), notification.UserID.String(), msg); err != nil {
			n.logger.Errorf("[device: %s] publish push failed: %v", d.ID, err)
			continue
		}
		if n.m != nil {
			n.m.Notify.PushEnqueued.Inc()
		}
	}
}

// preview truncates a message body to the configured rune length.
func (n *Notifier) preview(body string) string {
	if utf8.RuneCountInString(body) <= n.previewLength {
		return body
	}
	runes := []rune(body)
	return string(runes[:n.previewLength])
}

func (n *Notifier) ListNotifications(ctx context.Context, userID uuid.UUID, limit int) ([]entity.Notification, error) {
	return n.repo.ListNotifications(ctx, userID, limit)
}

func (n *Notifier) MarkRead(ctx context.Context, id int64, userID uuid.UUID) error {
	return n.repo.MarkNotificationRead(ctx, id, userID)
}

func (n *Notifier) UpsertPreference(ctx context.Context, p *entity.NotificationPreference) error {
	return n.repo.UpsertPreference(ctx, p)
}
