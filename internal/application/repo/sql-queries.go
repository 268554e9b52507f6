package repo

// APPS

const getAppQuery = `SELECT id, workspace_id, name, callback_url, manifest_url, created_at, updated_at
FROM apps WHERE id = $1`

const updateAppFromManifestQuery = `UPDATE apps
SET name = $2, callback_url = COALESCE($3, callback_url), updated_at = now()
WHERE id = $1`

// USERS / PREFERENCES / DEVICES

const getUserSettingsQuery = `SELECT user_id, display_name, default_notify_level, do_not_disturb_until,
       quiet_hours_start, quiet_hours_end, keywords, mobile_push, desktop_push
FROM user_settings WHERE user_id = $1`

const getPreferenceQuery = `SELECT user_id, conversation_id, notify_level, mobile_push, desktop_push, email, muted_until, updated_at
FROM notification_preferences
WHERE user_id = $1 AND conversation_id = $2`

const upsertPreferenceQuery = `INSERT INTO notification_preferences (
  user_id, conversation_id, notify_level, mobile_push, desktop_push, email, muted_until, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, now())
ON CONFLICT (user_id, conversation_id) DO UPDATE SET
  notify_level = EXCLUDED.notify_level,
  mobile_push  = EXCLUDED.mobile_push,
  desktop_push = EXCLUDED.desktop_push,
  email        = EXCLUDED.email,
  muted_until  = EXCLUDED.muted_until,
  updated_at   = now()`

const listMemberSettingsQuery = `SELECT us.user_id, us.display_name, us.default_notify_level, us.do_not_disturb_until,
       us.quiet_hours_start, us.quiet_hours_end, us.keywords, us.mobile_push, us.desktop_push
FROM user_settings us
JOIN conversation_members cm ON cm.user_id = us.user_id
WHERE cm.conversation_id = $1`

const listDevicesQuery = `SELECT id, user_id, platform, push_token, created_at
FROM devices WHERE user_id = $1`

// THREADS

const incrementReplyCountQuery = `INSERT INTO thread_stats (message_id, reply_count)
VALUES ($1, 1)
ON CONFLICT (message_id) DO UPDATE SET reply_count = thread_stats.reply_count + 1
RETURNING reply_count`

// OUTBOX

const insertOutboxQuery = `INSERT INTO outbox_events (
  workspace_id, app_id, event_type, payload, status, attempts, next_attempt_at, created_at
) VALUES ($1, $2, $3, ($4)::jsonb, $5, 0, now(), now())
RETURNING id, created_at`

const outboxColumns = `id, workspace_id, app_id, event_type, payload, status, attempts, next_attempt_at, last_attempt_at, last_error, created_at`

const getOutboxQuery = `SELECT ` + outboxColumns + ` FROM outbox_events WHERE id = $1`

const listOutboxQuery = `SELECT ` + outboxColumns + `
FROM outbox_events
WHERE workspace_id = $1 AND status = $2
ORDER BY id DESC
LIMIT $3`

const reserveOutboxBatchQuery = `
WITH picked AS (
	SELECT id
	FROM outbox_events
	WHERE status = 'PENDING'
		AND next_attempt_at <= now()
		AND attempts < $3
	ORDER BY id
	FOR UPDATE SKIP LOCKED
	LIMIT $2
)
UPDATE outbox_events AS o
SET next_attempt_at = now() + $1::interval
FROM picked
WHERE o.id = picked.id
RETURNING o.id, o.workspace_id, o.app_id, o.event_type, o.payload, o.status, o.attempts, o.next_attempt_at, o.last_attempt_at, o.last_error, o.created_at`

// Terminal transitions are compare-and-swap on (status, attempts): a worker
// holding a stale attempt number updates zero rows.

const markOutboxDeliveredQuery = `UPDATE outbox_events
SET status = 'SUCCESS', last_attempt_at = $3, last_error = NULL
WHERE id = $1 AND status = 'PENDING' AND attempts = $2`

const markOutboxRetryQuery = `UPDATE outbox_events
SET attempts = attempts + 1, last_error = $3, last_attempt_at = $4, next_attempt_at = $5
WHERE id = $1 AND status = 'PENDING' AND attempts = $2`

const markOutboxExhaustedQuery = `UPDATE outbox_events
SET status = 'FAILED', attempts = attempts + 1, last_error = $3, last_attempt_at = $4
WHERE id = $1 AND status = 'PENDING' AND attempts = $2`

const markOutboxUndeliverableQuery = `UPDATE outbox_events
SET status = 'FAILED', last_error = $3
WHERE id = $1 AND status = 'PENDING' AND attempts = $2`

const countOutboxByStatusQuery = `SELECT status, count(*) FROM outbox_events GROUP BY status`

// NOTIFICATIONS

const insertNotificationQuery = `INSERT INTO notifications (
  workspace_id, user_id, type, actor_id, conversation_id, message_id, payload, is_read, created_at
) VALUES ($1, $2, $3, $4, $5, $6, ($7)::jsonb, false, now())
ON CONFLICT (user_id, message_id, type) DO NOTHING
RETURNING id, created_at`

const notificationColumns = `id, workspace_id, user_id, type, actor_id, conversation_id, message_id, payload, is_read, created_at`

const getNotificationByKeyQuery = `SELECT ` + notificationColumns + `
FROM notifications
WHERE user_id = $1 AND message_id = $2 AND type = $3`

const listNotificationsQuery = `SELECT ` + notificationColumns + `
FROM notifications
WHERE user_id = $1
ORDER BY id DESC
LIMIT $2`

const markNotificationReadQuery = `UPDATE notifications
SET is_read = true
WHERE id = $1 AND user_id = $2`

// AUDIT

const insertAuditQuery = `INSERT INTO audit_logs (
  workspace_id, app_id, user_id, action, subject_kind, subject_id, metadata, ip_address, user_agent, created_at
) VALUES ($1, $2, $3, $4, $5, $6, ($7)::jsonb, $8, $9, now())
RETURNING id, created_at`

const listAuditLogsQuery = `SELECT id, workspace_id, app_id, user_id, action, subject_kind, subject_id, metadata, ip_address, user_agent, created_at
FROM audit_logs
WHERE workspace_id = $1
ORDER BY id DESC
LIMIT $2`
