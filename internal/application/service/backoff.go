package service

import (
	"fmt"
	"strings"
	"time"

	"teamchat/pkg/config"
)

// DefaultBackoffSchedule is the delay ladder for outbox redelivery, indexed
// by attempt number. Attempts past the end reuse the last entry.
var DefaultBackoffSchedule = []time.Duration{
	1 * time.Second,
	5 * time.Second,
	30 * time.Second,
	2 * time.Minute,
	5 * time.Minute,
	10 * time.Minute,
}

const DefaultMaxAttempts = 6

// RetryPolicy is injected into the dispatcher at construction so tests can
// swap in a fast schedule. Delays are looked up, never computed, to keep
// them exactly reproducible.
type RetryPolicy struct {
	MaxAttempts int
	Schedule    []time.Duration
}

func NewRetryPolicy(cfg config.Relay) (RetryPolicy, error) {
	p := RetryPolicy{
		MaxAttempts: cfg.MaxAttempts,
		Schedule:    DefaultBackoffSchedule,
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BackoffSchedule != "" {
		schedule, err := ParseBackoffSchedule(cfg.BackoffSchedule)
		if err != nil {
			return RetryPolicy{}, err
		}
		p.Schedule = schedule
	}
	return p, nil
}

// Delay returns the backoff before the next attempt. Out-of-range attempt
// numbers clamp to the schedule bounds.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if len(p.Schedule) == 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= len(p.Schedule) {
		attempt = len(p.Schedule) - 1
	}
	return p.Schedule[attempt]
}

// ParseBackoffSchedule parses a comma-separated duration list like
// "1s,5s,30s,2m,5m,10m".
func ParseBackoffSchedule(s string) ([]time.Duration, error) {
	parts := strings.Split(s, ",")
	schedule := make([]time.Duration, 0, len(parts))
	for _, part := range parts {
		d, err := time.ParseDuration(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("parse backoff schedule %q: %w", s, err)
		}
		if d < 0 {
			return nil, fmt.Errorf("parse backoff schedule %q: negative entry", s)
		}
		schedule = append(schedule, d)
	}
	if len(schedule) == 0 {
		return nil, fmt.Errorf("parse backoff schedule %q: empty", s)
	}
	return schedule, nil
}
