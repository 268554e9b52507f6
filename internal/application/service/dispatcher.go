package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"teamchat/internal/appers"
	"teamchat/internal/application/entity"
	"teamchat/internal/application/repo"
	"teamchat/internal/transport/webhook"
	"teamchat/pkg/metrics"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"
)

const reasonNoCallback = "no_callback_configured"
const reasonMaxRetries = "max_retries_exceeded"

// Dispatcher owns the outbox: it enqueues delivery events and applies the
// outcome of each delivery attempt. A row's (status, attempts) pair is the
// fencing token; every state transition is conditional on it, which makes
// duplicate task triggers from the at-least-once relay harmless.
type Dispatcher struct {
	repo      repo.Repo
	tx        repo.Transactions
	deliverer webhook.Deliverer
	logger    *zap.SugaredLogger
	policy    RetryPolicy
	m         *metrics.Metrics
	now       func() time.Time
}

func NewDispatcher(
	repo repo.Repo,
	tx repo.Transactions,
	deliverer webhook.Deliverer,
	logger *zap.SugaredLogger,
	policy RetryPolicy,
	m *metrics.Metrics,
) *Dispatcher {
	return &Dispatcher{
		repo:      repo,
		tx:        tx,
		deliverer: deliverer,
		logger:    logger,
		policy:    policy,
		m:         m,
		now:       time.Now,
	}
}

// DispatchRequest carries the caller context the audit trail needs.
type DispatchRequest struct {
	AppID     uuid.UUID
	EventType entity.OutboxEventType
	Payload   json.RawMessage
	ActorID   *uuid.UUID
	IPAddress string
	UserAgent string
}

// Dispatch persists a pending OutboxEvent with attempts=0 plus its audit row
// in one transaction. The relay loop performs the first delivery attempt;
// the caller never waits on the callback.
func (d *Dispatcher) Dispatch(ctx context.Context, req DispatchRequest) (*entity.OutboxEvent, error) {
	d.logger.Debugf("[app: %s] Dispatch started, type: %s", req.AppID, req.EventType)

	if !req.EventType.Valid() {
		return nil, appers.ErrBadEventType
	}

	app, err := d.repo.GetApp(ctx, req.AppID)
	if err != nil {
		return nil, err
	}

	evt := &entity.OutboxEvent{
		WorkspaceID: app.WorkspaceID,
		AppID:       app.ID,
		EventType:   req.EventType,
		Payload:     req.Payload,
		Status:      entity.OutboxPending,
	}

	subjectKind := entity.SubjectApp
	audit := &entity.AuditLog{
		WorkspaceID: app.WorkspaceID,
		AppID:       &app.ID,
		UserID:      req.ActorID,
		Action:      "outbox.dispatch." + string(req.EventType),
		SubjectKind: &subjectKind,
		SubjectID:   &app.ID,
		IPAddress:   req.IPAddress,
		UserAgent:   req.UserAgent,
	}

	if err := d.tx.DispatchEvent(ctx, evt, audit); err != nil {
		return nil, err
	}

	d.logger.Infof("[ID %d] dispatched %s for app %s", evt.ID, evt.EventType, app.ID)
	return evt, nil
}

// ProcessOne runs a single delivery attempt for a reserved event. Stale
// events (terminal, or attempts moved on) are dropped without side effects.
func (d *Dispatcher) ProcessOne(ctx context.Context, wid int, e entity.OutboxEvent) {
	d.logger.Debugf("[ID %d] delivery attempt started, workerID: %d, attempts: %d", e.ID, wid, e.Attempts)

	if e.Status.Terminal() {
		d.logger.Warnf("[ID %d] skipping terminal event in status %s", e.ID, e.Status)
		d.countResult(e.EventType, "stale")
		return
	}

	app, err := d.repo.GetApp(ctx, e.AppID)
	if err != nil {
		// Row stays reserved until the lease lapses, then gets re-picked.
		d.logger.Errorf("[ID %d] load app %s failed: %v", e.ID, e.AppID, err)
		return
	}

	if app.CallbackURL == nil || *app.CallbackURL == "" {
		d.markResult(e, "no_callback", func() error {
			return d.repo.MarkOutboxUndeliverable(ctx, e.ID, e.Attempts, reasonNoCallback)
		})
		return
	}

	t0 := d.now()
	deliverErr := d.deliverer.Deliver(ctx, *app.CallbackURL, e.Payload)
	at := d.now()

	if d.m != nil {
		res := "ok"
		if deliverErr != nil {
			res = "error"
		}
		d.m.Outbox.DeliveryAttemptLatencySeconds.WithLabelValues(string(e.EventType), res).Observe(at.Sub(t0).Seconds())
	}

	if deliverErr == nil {
		d.markResult(e, "success", func() error {
			return d.repo.MarkOutboxDelivered(ctx, e.ID, e.Attempts, at)
		})
		return
	}

	reason := deliverErr.Error()
	newAttempts := e.Attempts + 1

	if newAttempts >= d.policy.MaxAttempts {
		d.markResult(e, "failed", func() error {
			return d.repo.MarkOutboxExhausted(ctx, e.ID, e.Attempts, reasonMaxRetries+": "+reason, at)
		})
		return
	}

	next := at.Add(d.policy.Delay(newAttempts))
	d.markResult(e, "retry", func() error {
		return d.repo.MarkOutboxRetry(ctx, e.ID, e.Attempts, reason, at, next)
	})
}

// markResult applies a transition and downgrades a lost CAS race to a log
// line: the competing worker's result already stands.
func (d *Dispatcher) markResult(e entity.OutboxEvent, result string, apply func() error) {
	err := apply()
	switch {
	case errors.Is(err, appers.ErrStaleAttempt):
		d.logger.Warnf("[ID %d] stale attempt %d, result %q discarded", e.ID, e.Attempts, result)
		d.countResult(e.EventType, "stale")
	case err != nil:
		d.logger.Errorf("[ID %d] apply result %q failed: %v", e.ID, result, err)
	default:
		d.logger.Infof("[ID %d] delivery result: %s, attempts: %d", e.ID, result, e.Attempts)
		d.countResult(e.EventType, result)
	}
}

func (d *Dispatcher) countResult(eventType entity.OutboxEventType, result string) {
	if d.m != nil {
		d.m.Outbox.DeliveryResultsTotal.WithLabelValues(string(eventType), result).Inc()
	}
}

func (d *Dispatcher) GetOutboxEvent(ctx context.Context, id int64) (*entity.OutboxEvent, error) {
	return d.repo.GetOutboxEvent(ctx, id)
}

func (d *Dispatcher) ListOutbox(ctx context.Context, workspaceID uuid.UUID, status entity.OutboxStatus, limit int) ([]entity.OutboxEvent, error) {
	return d.repo.ListOutbox(ctx, workspaceID, status, limit)
}

// UpdateOutboxGauges refreshes the per-status row-count gauges; called from
// the cron sweep.
func (d *Dispatcher) UpdateOutboxGauges(ctx context.Context) error {
	counts, err := d.repo.CountOutboxByStatus(ctx)
	if err != nil {
		return err
	}
	if d.m == nil {
		return nil
	}
	for _, status := range []entity.OutboxStatus{entity.OutboxPending, entity.OutboxSuccess, entity.OutboxFailed} {
		d.m.Outbox.EventsByStatus.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
	return nil
}
