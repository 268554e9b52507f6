package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInQuietHoursSameDayWindow(t *testing.T) {
	u := UserSettings{QuietHoursStart: "09:00", QuietHoursEnd: "17:00"}

	assert.True(t, u.InQuietHours(time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)))
	assert.True(t, u.InQuietHours(time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)))
	assert.True(t, u.InQuietHours(time.Date(2026, 8, 30, 17, 0, 0, 0, time.UTC)))
	assert.False(t, u.InQuietHours(time.Date(2026, 8, 30, 8, 59, 0, 0, time.UTC)))
	assert.False(t, u.InQuietHours(time.Date(2026, 8, 30, 20, 0, 0, 0, time.UTC)))
}

func TestInQuietHoursWrapsMidnight(t *testing.T) {
	u := UserSettings{QuietHoursStart: "22:00", QuietHoursEnd: "06:00"}

	assert.True(t, u.InQuietHours(time.Date(2026, 8, 30, 23, 30, 0, 0, time.UTC)))
	assert.True(t, u.InQuietHours(time.Date(2026, 8, 30, 2, 0, 0, 0, time.UTC)))
	assert.True(t, u.InQuietHours(time.Date(2026, 8, 30, 22, 0, 0, 0, time.UTC)))
	assert.True(t, u.InQuietHours(time.Date(2026, 8, 30, 6, 0, 0, 0, time.UTC)))
	assert.False(t, u.InQuietHours(time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)))
	assert.False(t, u.InQuietHours(time.Date(2026, 8, 30, 6, 1, 0, 0, time.UTC)))
}

func TestInQuietHoursDisabledOrMalformed(t *testing.T) {
	noon := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	assert.False(t, (&UserSettings{}).InQuietHours(noon))
	assert.False(t, (&UserSettings{QuietHoursStart: "22:00"}).InQuietHours(noon))
	assert.False(t, (&UserSettings{QuietHoursStart: "25:00", QuietHoursEnd: "06:00"}).InQuietHours(noon))
	assert.False(t, (&UserSettings{QuietHoursStart: "bogus", QuietHoursEnd: "06:00"}).InQuietHours(noon))
}

func TestMatchKeyword(t *testing.T) {
	u := UserSettings{Keywords: []string{"Deploy", "", "  incident  "}}

	assert.Equal(t, "Deploy", u.MatchKeyword("the DEPLOY went out"))
	assert.Equal(t, "incident", u.MatchKeyword("new Incident opened"))
	assert.Equal(t, "", u.MatchKeyword("all quiet"))
	assert.Equal(t, "", (&UserSettings{}).MatchKeyword("deploy"))
}

func TestInDoNotDisturb(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	assert.True(t, (&UserSettings{DoNotDisturbUntil: &future}).InDoNotDisturb(now))
	assert.False(t, (&UserSettings{DoNotDisturbUntil: &past}).InDoNotDisturb(now))
	assert.False(t, (&UserSettings{}).InDoNotDisturb(now))
}

func TestDevicePlatformMobile(t *testing.T) {
	assert.True(t, PlatformIOS.Mobile())
	assert.True(t, PlatformAndroid.Mobile())
	assert.False(t, PlatformDesktop.Mobile())
}
