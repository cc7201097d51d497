package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "session:"

// RedisStore keeps sessions in Redis so several gateway replicas can share
// them. Keys carry the session's idle timeout as TTL, so Sweep has nothing
// left to do; the engine's own expiry check at turn start stays authoritative.
type RedisStore struct {
	redis *redis.Client
	now   func() time.Time
}

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(redisClient *redis.Client) *RedisStore {
	if redisClient == nil {
		return nil
	}
	return &RedisStore{redis: redisClient, now: time.Now}
}

func sessionKey(userID string) string {
	return sessionKeyPrefix + userID
}

// Get returns the session for userID, creating an idle one if absent.
func (s *RedisStore) Get(ctx context.Context, userID string) (*Session, error) {
	raw, err := s.redis.Get(ctx, sessionKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return &Session{
			UserID:          userID,
			State:           StateIdle,
			LastInteraction: s.now(),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: get %s: %w", userID, err)
	}

	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		// A corrupt record is unrecoverable; drop it and start over idle.
		s.redis.Del(ctx, sessionKey(userID))
		return &Session{
			UserID:          userID,
			State:           StateIdle,
			LastInteraction: s.now(),
		}, nil
	}
	return &sess, nil
}

// Put stores the session, letting the key expire with the session's timeout.
func (s *RedisStore) Put(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("session: marshal %s: %w", sess.UserID, err)
	}
	ttl := sess.Timeout
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if err := s.redis.Set(ctx, sessionKey(sess.UserID), data, ttl).Err(); err != nil {
		return fmt.Errorf("session: put %s: %w", sess.UserID, err)
	}
	return nil
}

// Clear removes the session for userID.
func (s *RedisStore) Clear(ctx context.Context, userID string) error {
	if err := s.redis.Del(ctx, sessionKey(userID)).Err(); err != nil {
		return fmt.Errorf("session: clear %s: %w", userID, err)
	}
	return nil
}

// Touch refreshes LastInteraction for an existing session.
func (s *RedisStore) Touch(ctx context.Context, userID string) error {
	raw, err := s.redis.Get(ctx, sessionKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("session: touch %s: %w", userID, err)
	}
	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return nil
	}
	sess.LastInteraction = s.now()
	return s.Put(ctx, &sess)
}

// IsActive reports whether userID has a live non-idle session, clearing it
// when expired.
func (s *RedisStore) IsActive(ctx context.Context, userID string) (bool, error) {
	raw, err := s.redis.Get(ctx, sessionKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("session: is active %s: %w", userID, err)
	}
	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		s.redis.Del(ctx, sessionKey(userID))
		return false, nil
	}
	if sess.State == StateIdle {
		return false, nil
	}
	if sess.Expired(s.now()) {
		s.redis.Del(ctx, sessionKey(userID))
		return false, nil
	}
	return true, nil
}

// Sweep is a no-op: key TTLs already evict idle sessions.
func (s *RedisStore) Sweep(_ context.Context) (int, error) {
	return 0, nil
}
