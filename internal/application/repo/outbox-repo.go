package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"teamchat/internal/appers"
	"teamchat/internal/application/common"
	"teamchat/internal/application/entity"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
)

func (r *RepoImpl) InsertOutbox(ctx context.Context, e *entity.OutboxEvent) error {
	r.logger.Debugf("[app: %s] InsertOutbox started", e.AppID)

	err := r.db.QueryRow(ctx, insertOutboxQuery,
		e.WorkspaceID, e.AppID, string(e.EventType), []byte(e.Payload), string(e.Status),
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert outbox_event: %w", err)
	}

	return nil
}

func (r *RepoImpl) GetOutboxEvent(ctx context.Context, id int64) (*entity.OutboxEvent, error) {
	var e entity.OutboxEvent
	var status string
	err := r.db.QueryRow(ctx, getOutboxQuery, id).Scan(
		&e.ID, &e.WorkspaceID, &e.AppID, &e.EventType, &e.Payload,
		&status, &e.Attempts, &e.NextAttemptAt, &e.LastAttemptAt, &e.LastError, &e.CreatedAt,
	)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, appers.ErrOutboxNotFound
	case err != nil:
		return nil, fmt.Errorf("get outbox event: %w", err)
	}
	e.Status = entity.OutboxStatus(status)
	return &e, nil
}

func (r *RepoImpl) ListOutbox(ctx context.Context, workspaceID uuid.UUID, status entity.OutboxStatus, limit int) ([]entity.OutboxEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, listOutboxQuery, workspaceID, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("list outbox: %w", err)
	}
	defer rows.Close()

	return scanOutboxRows(rows)
}

// ReserveOutboxBatch picks due pending rows and pushes their next_attempt_at
// forward by the lease so concurrent relays skip them. SKIP LOCKED keeps
// pollers from serializing on each other.
func (r *RepoImpl) ReserveOutboxBatch(ctx context.Context, lease time.Duration, limit, maxAttempts int) ([]entity.OutboxEvent, error) {
	r.logger.Debugf("[lease: %s, limit: %d, maxAttempts: %d] ReserveOutboxBatch started", lease, limit, maxAttempts)

	rows, err := r.db.Query(ctx, reserveOutboxBatchQuery, common.PgInterval(lease), limit, maxAttempts)
	if err != nil {
		return nil, fmt.Errorf("reserve outbox batch: %w", err)
	}
	defer rows.Close()

	return scanOutboxRows(rows)
}

// MarkOutboxDelivered finalizes a successful attempt. The update is CAS on
// (PENDING, attempts); zero rows means another worker got there first and
// this worker's result must be discarded.
func (r *RepoImpl) MarkOutboxDelivered(ctx context.Context, id int64, attempts int, at time.Time) error {
	result, err := r.db.Exec(ctx, markOutboxDeliveredQuery, id, attempts, at)
	if err != nil {
		return fmt.Errorf("outbox mark delivered: %w", err)
	}
	if result.RowsAffected() == 0 {
		return appers.ErrStaleAttempt
	}
	return nil
}

// MarkOutboxRetry records a failed attempt and schedules the next one.
// Increments attempts, CAS-guarded like MarkOutboxDelivered.
func (r *RepoImpl) MarkOutboxRetry(ctx context.Context, id int64, attempts int, lastErr string, at, nextAttemptAt time.Time) error {
	result, err := r.db.Exec(ctx, markOutboxRetryQuery, id, attempts, lastErr, at, nextAttemptAt)
	if err != nil {
		return fmt.Errorf("outbox mark retry: %w", err)
	}
	if result.RowsAffected() == 0 {
		return appers.ErrStaleAttempt
	}
	return nil
}

// MarkOutboxExhausted records the final failed attempt: increments attempts
// and moves the row to its terminal FAILED state.
func (r *RepoImpl) MarkOutboxExhausted(ctx context.Context, id int64, attempts int, lastErr string, at time.Time) error {
	result, err := r.db.Exec(ctx, markOutboxExhaustedQuery, id, attempts, lastErr, at)
	if err != nil {
		return fmt.Errorf("outbox mark exhausted: %w", err)
	}
	if result.RowsAffected() == 0 {
		return appers.ErrStaleAttempt
	}
	return nil
}

// MarkOutboxUndeliverable fails a row without counting an attempt (no HTTP
// call happened, e.g. the app has no callback URL).
func (r *RepoImpl) MarkOutboxUndeliverable(ctx context.Context, id int64, attempts int, reason string) error {
	result, err := r.db.Exec(ctx, markOutboxUndeliverableQuery, id, attempts, reason)
	if err != nil {
		return fmt.Errorf("outbox mark undeliverable: %w", err)
	}
	if result.RowsAffected() == 0 {
		return appers.ErrStaleAttempt
	}
	return nil
}

func (r *RepoImpl) CountOutboxByStatus(ctx context.Context) (map[entity.OutboxStatus]int64, error) {
	rows, err := r.db.Query(ctx, countOutboxByStatusQuery)
	if err != nil {
		return nil, fmt.Errorf("count outbox by status: %w", err)
	}
	defer rows.Close()

	res := make(map[entity.OutboxStatus]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan outbox count: %w", err)
		}
		res[entity.OutboxStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("outbox count rows err: %w", err)
	}
	return res, nil
}

func scanOutboxRows(rows pgx.Rows) ([]entity.OutboxEvent, error) {
	var res []entity.OutboxEvent
	for rows.Next() {
		var e entity.OutboxEvent
		var status string
		if err := rows.Scan(
			&e.ID, &e.WorkspaceID, &e.AppID, &e.EventType, &e.Payload,
			&status, &e.Attempts, &e.NextAttemptAt, &e.LastAttemptAt, &e.LastError, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan outbox: %w", err)
		}
		e.Status = entity.OutboxStatus(status)
		res = append(res, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("outbox rows err: %w", err)
	}
	return res, nil
}
