package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryCache is an in-process Cache used in tests and single-node dev runs.
// Expired keys are evicted lazily on access. Now is overridable so TTL
// behavior can be tested without sleeping.
type MemoryCache struct {
	mu   sync.Mutex
	keys map[string]memEntry
	sets map[string]*memSet
	Now  func() time.Time
}

type memEntry struct {
	val       string
	expiresAt time.Time // zero = no expiry
}

// memSet keeps insertion order so SetMembers is deterministic.
type memSet struct {
	members   []string
	index     map[string]struct{}
	expiresAt time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		keys: make(map[string]memEntry),
		sets: make(map[string]*memSet),
		Now:  time.Now,
	}
}

func (c *MemoryCache) expired(at time.Time) bool {
	return !at.IsZero() && !c.Now().Before(at)
}

func (c *MemoryCache) liveEntry(key string) (memEntry, bool) {
	e, ok := c.keys[key]
	if !ok {
		return memEntry{}, false
	}
	if c.expired(e.expiresAt) {
		delete(c.keys, key)
		return memEntry{}, false
	}
	return e, true
}

func (c *MemoryCache) liveSet(key string) (*memSet, bool) {
	s, ok := c.sets[key]
	if !ok {
		return nil, false
	}
	if c.expired(s.expiresAt) {
		delete(c.sets, key)
		return nil, false
	}
	return s, true
}

func (c *MemoryCache) deadline(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return c.Now().Add(ttl)
}

func (c *MemoryCache) Set(_ context.Context, key, val string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys[key] = memEntry{val: val, expiresAt: c.deadline(ttl)}
	return nil
}

func (c *MemoryCache) SetIfExists(_ context.Context, key, val string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.liveEntry(key); !ok {
		return false, nil
	}
	c.keys[key] = memEntry{val: val, expiresAt: c.deadline(ttl)}
	return true, nil
}

func (c *MemoryCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.liveEntry(key)
	if !ok {
		return "", false, nil
	}
	return e.val, true, nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.liveEntry(key)
	delete(c.keys, key)
	return ok, nil
}

func (c *MemoryCache) SetAdd(_ context.Context, key, member string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.liveSet(key)
	if !ok {
		s = &memSet{index: make(map[string]struct{})}
		c.sets[key] = s
	}
	if _, dup := s.index[member]; !dup {
		s.index[member] = struct{}{}
		s.members = append(s.members, member)
	}
	return nil
}

func (c *MemoryCache) SetRemove(_ context.Context, key, member string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.liveSet(key)
	if !ok {
		return nil
	}
	if _, exists := s.index[member]; !exists {
		return nil
	}
	delete(s.index, member)
	for i, m := range s.members {
		if m == member {
			s.members = append(s.members[:i], s.members[i+1:]...)
			break
		}
	}
	return nil
}

func (c *MemoryCache) SetMembers(_ context.Context, key string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.liveSet(key)
	if !ok {
		return nil, nil
	}
	out := make([]string, len(s.members))
	copy(out, s.members)
	return out, nil
}

func (c *MemoryCache) Expire(_ context.Context, key string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.liveEntry(key); ok {
		e.expiresAt = c.deadline(ttl)
		c.keys[key] = e
	}
	if s, ok := c.liveSet(key); ok {
		s.expiresAt = c.deadline(ttl)
	}
	return nil
}

func (c *MemoryCache) HealthCheck(context.Context) error { return nil }

func (c *MemoryCache) Close() error { return nil }
