package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"teamchat/internal/appers"
	"teamchat/internal/application/entity"
	"teamchat/pkg/config"

	"github.com/gofrs/uuid"
)

// fakeRepo is an in-memory repo.Repo with the same CAS semantics the SQL
// layer enforces, so the service tests exercise real transition rules.
type fakeRepo struct {
	mu sync.Mutex

	apps          map[uuid.UUID]*entity.App
	outbox        map[int64]*entity.OutboxEvent
	nextOutboxID  int64
	notifications map[string]*entity.Notification
	nextNotifID   int64
	settings      map[uuid.UUID]*entity.UserSettings
	prefs         map[string]*entity.NotificationPreference
	members       map[uuid.UUID][]uuid.UUID
	devices       map[uuid.UUID][]entity.Device
	replyCounts   map[uuid.UUID]int
	audits        []entity.AuditLog

	failInsertNotification error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		apps:          make(map[uuid.UUID]*entity.App),
		outbox:        make(map[int64]*entity.OutboxEvent),
		notifications: make(map[string]*entity.Notification),
		settings:      make(map[uuid.UUID]*entity.UserSettings),
		prefs:         make(map[string]*entity.NotificationPreference),
		members:       make(map[uuid.UUID][]uuid.UUID),
		devices:       make(map[uuid.UUID][]entity.Device),
		replyCounts:   make(map[uuid.UUID]int),
	}
}

func notifKey(userID, messageID uuid.UUID, typ entity.NotificationType) string {
	return fmt.Sprintf("%s/%s/%s", userID, messageID, typ)
}

func prefKey(userID, conversationID uuid.UUID) string {
	return fmt.Sprintf("%s/%s", userID, conversationID)
}

func (f *fakeRepo) GetApp(_ context.Context, id uuid.UUID) (*entity.App, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	app, ok := f.apps[id]
	if !ok {
		return nil, appers.ErrAppNotFound
	}
	cp := *app
	return &cp, nil
}

func (f *fakeRepo) UpdateAppFromManifest(_ context.Context, id uuid.UUID, m *entity.AppManifest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	app, ok := f.apps[id]
	if !ok {
		return appers.ErrAppNotFound
	}
	app.Name = m.Name
	if m.CallbackURL != "" {
		cb := m.CallbackURL
		app.CallbackURL = &cb
	}
	return nil
}

func (f *fakeRepo) InsertOutbox(_ context.Context, e *entity.OutboxEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextOutboxID++
	e.ID = f.nextOutboxID
	e.CreatedAt = time.Now()
	e.NextAttemptAt = e.CreatedAt
	cp := *e
	f.outbox[e.ID] = &cp
	return nil
}

func (f *fakeRepo) GetOutboxEvent(_ context.Context, id int64) (*entity.OutboxEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.outbox[id]
	if !ok {
		return nil, appers.ErrOutboxNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *fakeRepo) ListOutbox(_ context.Context, workspaceID uuid.UUID, status entity.OutboxStatus, limit int) ([]entity.OutboxEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var res []entity.OutboxEvent
	for _, e := range f.outbox {
		if e.WorkspaceID == workspaceID && e.Status == status {
			res = append(res, *e)
		}
		if len(res) == limit {
			break
		}
	}
	return res, nil
}

func (f *fakeRepo) ReserveOutboxBatch(_ context.Context, lease time.Duration, limit, maxAttempts int) ([]entity.OutboxEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	var res []entity.OutboxEvent
	for id := int64(1); id <= f.nextOutboxID && len(res) < limit; id++ {
		e, ok := f.outbox[id]
		if !ok || e.Status != entity.OutboxPending || e.Attempts >= maxAttempts || e.NextAttemptAt.After(now) {
			continue
		}
		e.NextAttemptAt = now.Add(lease)
		res = append(res, *e)
	}
	return res, nil
}

// cas applies fn only when the row is PENDING at the observed attempt count.
func (f *fakeRepo) cas(id int64, attempts int, fn func(e *entity.OutboxEvent)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.outbox[id]
	if !ok || e.Status != entity.OutboxPending || e.Attempts != attempts {
		return appers.ErrStaleAttempt
	}
	fn(e)
	return nil
}

func (f *fakeRepo) MarkOutboxDelivered(_ context.Context, id int64, attempts int, at time.Time) error {
	return f.cas(id, attempts, func(e *entity.OutboxEvent) {
		e.Status = entity.OutboxSuccess
		e.LastAttemptAt = &at
		e.LastError = nil
	})
}

func (f *fakeRepo) MarkOutboxRetry(_ context.Context, id int64, attempts int, lastErr string, at, nextAttemptAt time.Time) error {
	return f.cas(id, attempts, func(e *entity.OutboxEvent) {
		e.Attempts++
		e.LastError = &lastErr
		e.LastAttemptAt = &at
		e.NextAttemptAt = nextAttemptAt
	})
}

func (f *fakeRepo) MarkOutboxExhausted(_ context.Context, id int64, attempts int, lastErr string, at time.Time) error {
	return f.cas(id, attempts, func(e *entity.OutboxEvent) {
		e.Status = entity.OutboxFailed
		e.Attempts++
		e.LastError = &lastErr
		e.LastAttemptAt = &at
	})
}

func (f *fakeRepo) MarkOutboxUndeliverable(_ context.Context, id int64, attempts int, reason string) error {
	return f.cas(id, attempts, func(e *entity.OutboxEvent) {
		e.Status = entity.OutboxFailed
		e.LastError = &reason
	})
}

func (f *fakeRepo) CountOutboxByStatus(context.Context) (map[entity.OutboxStatus]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[entity.OutboxStatus]int64)
	for _, e := range f.outbox {
		counts[e.Status]++
	}
	return counts, nil
}

func (f *fakeRepo) InsertNotification(_ context.Context, n *entity.Notification) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failInsertNotification != nil {
		return false, f.failInsertNotification
	}
	key := notifKey(n.UserID, n.MessageID, n.Type)
	if _, exists := f.notifications[key]; exists {
		return false, nil
	}
	f.nextNotifID++
	n.ID = f.nextNotifID
	n.CreatedAt = time.Now()
	cp := *n
	f.notifications[key] = &cp
	return true, nil
}

func (f *fakeRepo) GetNotificationByKey(_ context.Context, userID, messageID uuid.UUID, typ entity.NotificationType) (*entity.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.notifications[notifKey(userID, messageID, typ)]
	if !ok {
		return nil, appers.ErrNotificationNotFound
	}
	cp := *n
	return &cp, nil
}

func (f *fakeRepo) ListNotifications(_ context.Context, userID uuid.UUID, limit int) ([]entity.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var res []entity.Notification
	for _, n := range f.notifications {
		if n.UserID == userID {
			res = append(res, *n)
		}
		if len(res) == limit {
			break
		}
	}
	return res, nil
}

func (f *fakeRepo) MarkNotificationRead(_ context.Context, id int64, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.notifications {
		if n.ID == id && n.UserID == userID {
			n.IsRead = true
			return nil
		}
	}
	return appers.ErrNotificationNotFound
}

func (f *fakeRepo) GetUserSettings(_ context.Context, userID uuid.UUID) (*entity.UserSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.settings[userID]
	if !ok {
		return nil, appers.ErrUserNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeRepo) GetPreference(_ context.Context, userID, conversationID uuid.UUID) (*entity.NotificationPreference, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.prefs[prefKey(userID, conversationID)]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakeRepo) UpsertPreference(_ context.Context, p *entity.NotificationPreference) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	f.prefs[prefKey(p.UserID, p.ConversationID)] = &cp
	return nil
}

func (f *fakeRepo) ListMemberSettings(_ context.Context, conversationID uuid.UUID) ([]entity.UserSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var res []entity.UserSettings
	for _, userID := range f.members[conversationID] {
		if s, ok := f.settings[userID]; ok {
			res = append(res, *s)
		}
	}
	return res, nil
}

func (f *fakeRepo) ListDevices(_ context.Context, userID uuid.UUID) ([]entity.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]entity.Device(nil), f.devices[userID]...), nil
}

func (f *fakeRepo) IncrementReplyCount(_ context.Context, messageID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replyCounts[messageID]++
	return f.replyCounts[messageID], nil
}

func (f *fakeRepo) InsertAudit(_ context.Context, a *entity.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a.ID = int64(len(f.audits) + 1)
	a.CreatedAt = time.Now()
	f.audits = append(f.audits, *a)
	return nil
}

func (f *fakeRepo) ListAuditLogs(_ context.Context, workspaceID uuid.UUID, limit int) ([]entity.AuditLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var res []entity.AuditLog
	for _, a := range f.audits {
		if a.WorkspaceID == workspaceID {
			res = append(res, a)
		}
		if len(res) == limit {
			break
		}
	}
	return res, nil
}

func (f *fakeRepo) HealthCheck(context.Context) error { return nil }

// fakeTransactions runs both writes against the fake without a real tx; the
// dispatcher only cares that both rows land.
type fakeTransactions struct {
	repo *fakeRepo
}

func (t *fakeTransactions) DispatchEvent(ctx context.Context, evt *entity.OutboxEvent, audit *entity.AuditLog) error {
	if err := t.repo.InsertOutbox(ctx, evt); err != nil {
		return err
	}
	return t.repo.InsertAudit(ctx, audit)
}

func (t *fakeTransactions) ReserveOutboxBatch(ctx context.Context, c config.Relay) ([]entity.OutboxEvent, error) {
	return t.repo.ReserveOutboxBatch(ctx, c.Lease, c.BatchSize, c.MaxAttempts)
}

// fakeDeliverer replays scripted outcomes in call order; past the script it
// keeps returning the last entry.
type fakeDeliverer struct {
	mu       sync.Mutex
	outcomes []error
	calls    int
	urls     []string
}

func (d *fakeDeliverer) Deliver(_ context.Context, callbackURL string, _ []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.urls = append(d.urls, callbackURL)
	i := d.calls
	d.calls++
	if i >= len(d.outcomes) {
		i = len(d.outcomes) - 1
	}
	if i < 0 {
		return nil
	}
	return d.outcomes[i]
}

type publishedMessage struct {
	Topic string
	Key   string
	Value []byte
}

type fakeProducer struct {
	mu        sync.Mutex
	published []publishedMessage
	failWith  error
}

func (p *fakeProducer) Publish(_ context.Context, topic, key string, message []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWith != nil {
		return p.failWith
	}
	p.published = append(p.published, publishedMessage{Topic: topic, Key: key, Value: message})
	return nil
}

func (p *fakeProducer) BroadcastTopic() string { return "broadcast-events" }

func (p *fakeProducer) PushTopic() string { return "push-events" }

func (p *fakeProducer) HealthCheck(context.Context) error { return nil }

func (p *fakeProducer) byTopic(topic string) []publishedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	var res []publishedMessage
	for _, m := range p.published {
		if m.Topic == topic {
			res = append(res, m)
		}
	}
	return res
}
