package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"teamchat/internal/application/entity"
	"teamchat/internal/transport/producer"
	"teamchat/pkg/cache"
	"teamchat/pkg/config"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"
)

const (
	defaultOnlineTTL = 60 * time.Second
	defaultTypingTTL = 5 * time.Second

	// Aggregate sets outlive their member keys so that eviction stays lazy;
	// the factor keeps a set alive through several refresh cycles.
	setTTLFactor = 4
)

// Presence tracks the short-lived liveness signals: who is online per
// workspace and who is typing per conversation. Nothing here survives a
// cache flush and nothing needs to; sources re-announce on activity.
//
// Layout: one TTL'd key per user ("presence:user:<id>") plus a workspace
// set ("presence:ws:<id>") whose TTL is longer than any member key. The set
// can therefore hold stale members; readers check the companion key and
// evict on read. Typing follows the same shape with a 5s TTL.
type Presence struct {
	cache     cache.Cache
	producer  producer.Producer
	logger    *zap.SugaredLogger
	onlineTTL time.Duration
	typingTTL time.Duration
	now       func() time.Time
}

func NewPresence(cache cache.Cache, producer producer.Producer, logger *zap.SugaredLogger, cfg *config.Presence) *Presence {
	onlineTTL := cfg.OnlineTTL
	if onlineTTL <= 0 {
		onlineTTL = defaultOnlineTTL
	}
	typingTTL := cfg.TypingTTL
	if typingTTL <= 0 {
		typingTTL = defaultTypingTTL
	}
	return &Presence{
		cache:     cache,
		producer:  producer,
		logger:    logger,
		onlineTTL: onlineTTL,
		typingTTL: typingTTL,
		now:       time.Now,
	}
}

func presenceKey(userID uuid.UUID) string { return "presence:user:" + userID.String() }
func onlineSetKey(workspaceID uuid.UUID) string {
	return "presence:ws:" + workspaceID.String()
}
func typingKey(conversationID, userID uuid.UUID) string {
	return fmt.Sprintf("typing:%s:%s", conversationID, userID)
}
func typingSetKey(conversationID uuid.UUID) string {
	return "typing:conv:" + conversationID.String()
}

// MarkOnline registers the user as online for onlineTTL and announces it.
func (p *Presence) MarkOnline(ctx context.Context, workspaceID, userID uuid.UUID) error {
	p.logger.Debugf("[user: %s] MarkOnline started", userID)

	lastSeen := strconv.FormatInt(p.now().Unix(), 10)
	if err := p.cache.Set(ctx, presenceKey(userID), lastSeen, p.onlineTTL); err != nil {
		return fmt.Errorf("mark online: %w", err)
	}

	setKey := onlineSetKey(workspaceID)
	if err := p.cache.SetAdd(ctx, setKey, userID.String()); err != nil {
		return fmt.Errorf("add to online set: %w", err)
	}
	if err := p.cache.Expire(ctx, setKey, p.onlineTTL*setTTLFactor); err != nil {
		p.logger.Warnf("[workspace: %s] refresh online set ttl failed: %v", workspaceID, err)
	}

	p.announce(ctx, "presence_online", workspaceID, userID)
	return nil
}

// MarkOffline drops the user's presence. The offline event fires only when
// an entry actually existed; a repeated call is silent.
func (p *Presence) MarkOffline(ctx context.Context, workspaceID, userID uuid.UUID) error {
	p.logger.Debugf("[user: %s] MarkOffline started", userID)

	existed, err := p.cache.Delete(ctx, presenceKey(userID))
	if err != nil {
		return fmt.Errorf("mark offline: %w", err)
	}
	if err := p.cache.SetRemove(ctx, onlineSetKey(workspaceID), userID.String()); err != nil {
		return fmt.Errorf("remove from online set: %w", err)
	}

	if existed {
		p.announce(ctx, "presence_offline", workspaceID, userID)
	}
	return nil
}

// Refresh extends an existing presence entry to a full TTL from now. An
// expired or absent entry stays absent: activity alone does not resurrect a
// session, that takes an explicit MarkOnline.
func (p *Presence) Refresh(ctx context.Context, userID uuid.UUID) (bool, error) {
	lastSeen := strconv.FormatInt(p.now().Unix(), 10)
	ok, err := p.cache.SetIfExists(ctx, presenceKey(userID), lastSeen, p.onlineTTL)
	if err != nil {
		return false, fmt.Errorf("refresh presence: %w", err)
	}
	return ok, nil
}

// Online reports whether the user currently has a live presence entry.
func (p *Presence) Online(ctx context.Context, userID uuid.UUID) (bool, error) {
	_, ok, err := p.cache.Get(ctx, presenceKey(userID))
	if err != nil {
		return false, fmt.Errorf("get presence: %w", err)
	}
	return ok, nil
}

// OnlineUsers lists the workspace's online user IDs, lazily evicting set
// members whose presence key already expired.
func (p *Presence) OnlineUsers(ctx context.Context, workspaceID uuid.UUID) ([]uuid.UUID, error) {
	setKey := onlineSetKey(workspaceID)
	members, err := p.cache.SetMembers(ctx, setKey)
	if err != nil {
		return nil, fmt.Errorf("online set members: %w", err)
	}

	var res []uuid.UUID
	for _, member := range members {
		userID, err := uuid.FromString(member)
		if err != nil {
			_ = p.cache.SetRemove(ctx, setKey, member)
			continue
		}
		_, alive, err := p.cache.Get(ctx, presenceKey(userID))
		if err != nil {
			return nil, fmt.Errorf("check presence: %w", err)
		}
		if !alive {
			_ = p.cache.SetRemove(ctx, setKey, member)
			continue
		}
		res = append(res, userID)
	}
	return res, nil
}

// StartTyping writes or refreshes the user's 5s typing marker. The value is
// the display name so readers can format the indicator without a DB hit.
func (p *Presence) StartTyping(ctx context.Context, conversationID, userID uuid.UUID, displayName string) error {
	if err := p.cache.Set(ctx, typingKey(conversationID, userID), displayName, p.typingTTL); err != nil {
		return fmt.Errorf("start typing: %w", err)
	}

	setKey := typingSetKey(conversationID)
	if err := p.cache.SetAdd(ctx, setKey, userID.String()); err != nil {
		return fmt.Errorf("add to typing set: %w", err)
	}
	if err := p.cache.Expire(ctx, setKey, p.typingTTL*setTTLFactor); err != nil {
		p.logger.Warnf("[conversation: %s] refresh typing set ttl failed: %v", conversationID, err)
	}
	return nil
}

func (p *Presence) StopTyping(ctx context.Context, conversationID, userID uuid.UUID) error {
	if _, err := p.cache.Delete(ctx, typingKey(conversationID, userID)); err != nil {
		return fmt.Errorf("stop typing: %w", err)
	}
	if err := p.cache.SetRemove(ctx, typingSetKey(conversationID), userID.String()); err != nil {
		return fmt.Errorf("remove from typing set: %w", err)
	}
	return nil
}

// TypingUsers returns the display names of everyone currently typing in the
// conversation, excluding excludeUser (the asking client). Stale set members
// are evicted on the way through; names come back in the set's order.
func (p *Presence) TypingUsers(ctx context.Context, conversationID, excludeUser uuid.UUID) ([]string, error) {
	setKey := typingSetKey(conversationID)
	members, err := p.cache.SetMembers(ctx, setKey)
	if err != nil {
		return nil, fmt.Errorf("typing set members: %w", err)
	}

	var names []string
	for _, member := range members {
		userID, err := uuid.FromString(member)
		if err != nil {
			_ = p.cache.SetRemove(ctx, setKey, member)
			continue
		}
		if userID == excludeUser {
			continue
		}
		name, alive, err := p.cache.Get(ctx, typingKey(conversationID, userID))
		if err != nil {
			return nil, fmt.Errorf("check typing marker: %w", err)
		}
		if !alive {
			_ = p.cache.SetRemove(ctx, setKey, member)
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// TypingMessage renders the indicator line for a list of names.
func TypingMessage(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0] + " is typing..."
	case 2:
		return names[0] + " and " + names[1] + " are typing..."
	default:
		return fmt.Sprintf("%s and %d others are typing...", names[0], len(names)-1)
	}
}

func (p *Presence) announce(ctx context.Context, kind string, workspaceID, userID uuid.UUID) {
	msg, err := json.Marshal(entity.BroadcastEvent{
		Kind:        kind,
		WorkspaceID: workspaceID,
		UserID:      userID,
	})
	if err != nil {
		p.logger.Errorf("[user: %s] marshal %s event failed: %v", userID, kind, err)
		return
	}
	if err := p.producer.Publish(ctx, p.producer.BroadcastTopic(), userID.String(), msg); err != nil {
		p.logger.Errorf("[user: %s] publish %s event failed: %v", userID, kind, err)
	}
}
