package bot

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"leetbot/types"
)

// Session is the state a chat's follow-up buttons refer to. Results never
// change after creation; the mirror table grows as items are surfaced.
type Session struct {
	ID        uint64
	Query     string
	Results   []types.SearchResultItem
	CreatedAt time.Time

	mu      sync.RWMutex
	mirrors map[int]string
}

// SetMirror records the magnet behind display index idx (1-based)
func (s *Session) SetMirror(idx int, magnet string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mirrors[idx] = magnet
}

// Mirror returns the magnet recorded for display index idx
func (s *Session) Mirror(idx int) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	magnet, ok := s.mirrors[idx]
	return magnet, ok
}

// SessionCache is the storage a SessionStore keeps sessions in
type SessionCache interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{}, ttl time.Duration)
	Delete(key string)
}

// SessionStore keeps one session per chat. Starting a new search replaces
// the chat's session; sessions also expire after the TTL.
type SessionStore struct {
	cache SessionCache
	ttl   time.Duration
	seq   atomic.Uint64
}

func NewSessionStore(cache SessionCache, ttl time.Duration) *SessionStore {
	return &SessionStore{cache: cache, ttl: ttl}
}

func sessionKey(chatID int64) string {
	return fmt.Sprintf("session_%d", chatID)
}

// Start creates the chat's session, invalidating the previous one
func (s *SessionStore) Start(chatID int64, query string, results []types.SearchResultItem) *Session {
	session := &Session{
		ID:        s.seq.Add(1),
		Query:     query,
		Results:   results,
		CreatedAt: time.Now(),
		mirrors:   make(map[int]string),
	}
	s.cache.Set(sessionKey(chatID), session, s.ttl)
	return session
}

// Get returns the chat's live session
func (s *SessionStore) Get(chatID int64) (*Session, bool) {
	v, ok := s.cache.Get(sessionKey(chatID))
	if !ok {
		return nil, false
	}
	session, ok := v.(*Session)
	return session, ok
}

// End drops the chat's session
func (s *SessionStore) End(chatID int64) {
	s.cache.Delete(sessionKey(chatID))
}
