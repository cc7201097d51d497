package session

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

const memoryShardCount = 16

// MemoryStore is a sharded in-process Store. Each shard has its own lock so
// turns for different users rarely contend.
type MemoryStore struct {
	shards [memoryShardCount]*memoryShard
	now    func() time.Time
}

type memoryShard struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{now: time.Now}
	for i := range s.shards {
		s.shards[i] = &memoryShard{sessions: make(map[string]*Session)}
	}
	return s
}

func (s *MemoryStore) shard(userID string) *memoryShard {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return s.shards[h.Sum32()%memoryShardCount]
}

// Get returns a copy of the session for userID. An absent user gets a fresh
// idle session that is not persisted until Put, so idle reads never grow the
// map.
func (s *MemoryStore) Get(_ context.Context, userID string) (*Session, error) {
	sh := s.shard(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sess, ok := sh.sessions[userID]
	if !ok {
		return &Session{
			UserID:          userID,
			State:           StateIdle,
			LastInteraction: s.now(),
		}, nil
	}
	return copySession(sess), nil
}

// Put stores a copy of the session under its UserID.
func (s *MemoryStore) Put(_ context.Context, sess *Session) error {
	sh := s.shard(sess.UserID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.sessions[sess.UserID] = copySession(sess)
	return nil
}

// Clear removes the session for userID.
func (s *MemoryStore) Clear(_ context.Context, userID string) error {
	sh := s.shard(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	delete(sh.sessions, userID)
	return nil
}

// Touch refreshes LastInteraction for an existing session.
func (s *MemoryStore) Touch(_ context.Context, userID string) error {
	sh := s.shard(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if sess, ok := sh.sessions[userID]; ok {
		sess.LastInteraction = s.now()
	}
	return nil
}

// IsActive reports whether userID has a live non-idle session, clearing it
// when the idle timeout has elapsed.
func (s *MemoryStore) IsActive(_ context.Context, userID string) (bool, error) {
	sh := s.shard(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sess, ok := sh.sessions[userID]
	if !ok || sess.State == StateIdle {
		return false, nil
	}
	if sess.Expired(s.now()) {
		delete(sh.sessions, userID)
		return false, nil
	}
	return true, nil
}

// Sweep deletes expired sessions across all shards.
func (s *MemoryStore) Sweep(_ context.Context) (int, error) {
	now := s.now()
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for userID, sess := range sh.sessions {
			if sess.Expired(now) {
				delete(sh.sessions, userID)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed, nil
}

func copySession(sess *Session) *Session {
	out := *sess
	if sess.Scratch != nil {
		out.Scratch = make(map[string]string, len(sess.Scratch))
		for k, v := range sess.Scratch {
			out.Scratch[k] = v
		}
	}
	return &out
}
