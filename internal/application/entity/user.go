package entity

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/uuid"
)

// UserSettings holds the global notification knobs for one user. Keywords is
// the list matched against message bodies for keyword notifications.
type UserSettings struct {
	UserID             uuid.UUID   `db:"user_id"`
	DisplayName        string      `db:"display_name"`
	DefaultNotifyLevel NotifyLevel `db:"default_notify_level"`
	DoNotDisturbUntil  *time.Time  `db:"do_not_disturb_until"`
	QuietHoursStart    string      `db:"quiet_hours_start"` // "HH:MM", empty = disabled
	QuietHoursEnd      string      `db:"quiet_hours_end"`
	Keywords           []string    `db:"keywords"`
	MobilePush         bool        `db:"mobile_push"`
	DesktopPush        bool        `db:"desktop_push"`
}

// InDoNotDisturb reports whether an active DND window covers ts.
func (u *UserSettings) InDoNotDisturb(ts time.Time) bool {
	return u.DoNotDisturbUntil != nil && u.DoNotDisturbUntil.After(ts)
}

// InQuietHours reports whether ts falls inside the user's recurring quiet
// window. A window with start > end wraps past midnight:
// [start, 24:00) ∪ [00:00, end].
func (u *UserSettings) InQuietHours(ts time.Time) bool {
	if u.QuietHoursStart == "" || u.QuietHoursEnd == "" {
		return false
	}
	start, err := parseClock(u.QuietHoursStart)
	if err != nil {
		return false
	}
	end, err := parseClock(u.QuietHoursEnd)
	if err != nil {
		return false
	}

	now := ts.Hour()*60 + ts.Minute()
	if start <= end {
		return now >= start && now <= end
	}
	return now >= start || now <= end
}

// MatchKeyword returns the first of the user's keywords found in body,
// case-insensitively. Empty string means no match.
func (u *UserSettings) MatchKeyword(body string) string {
	lower := strings.ToLower(body)
	for _, kw := range u.Keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			return kw
		}
	}
	return ""
}

func parseClock(s string) (int, error) {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("bad clock value %q", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("bad hour in %q", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("bad minute in %q", s)
	}
	return h*60 + m, nil
}

type DevicePlatform string

const (
	PlatformIOS     DevicePlatform = "ios"
	PlatformAndroid DevicePlatform = "android"
	PlatformDesktop DevicePlatform = "desktop"
)

// Mobile groups the platforms gated by the mobile_push preference flag.
func (p DevicePlatform) Mobile() bool {
	return p == PlatformIOS || p == PlatformAndroid
}

// Device is a registered push target for a user.
type Device struct {
	ID        uuid.UUID      `db:"id"`
	UserID    uuid.UUID      `db:"user_id"`
	Platform  DevicePlatform `db:"platform"`
	PushToken string         `db:"push_token"`
	CreatedAt time.Time      `db:"created_at"`
}
