package storage

import (
	"sort"
	"sync"
	"time"

	"github.com/lehigh-university-libraries/scrivener/internal/generation"
	"github.com/patrickmn/go-cache"
)

// Session is one user's workspace
type Session struct {
	ID           string
	CreatedAt    time.Time
	Orchestrator *generation.Orchestrator
}

// SessionStore keeps sessions in memory and forgets idle ones
type SessionStore struct {
	// mu makes Get's lookup and refresh atomic with respect to Set and Delete
	mu       sync.Mutex
	sessions *cache.Cache
}

// DefaultExpiration is how long an untouched session is kept
const DefaultExpiration = 24 * time.Hour

func New() *SessionStore {
	return NewWithExpiration(DefaultExpiration, time.Hour)
}

func NewWithExpiration(expiration, cleanupInterval time.Duration) *SessionStore {
	return &SessionStore{
		sessions: cache.New(expiration, cleanupInterval),
	}
}

// Get returns a session and refreshes its expiry
func (s *SessionStore) Get(sessionID string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, exists := s.sessions.Get(sessionID)
	if !exists {
		return nil, false
	}
	session, ok := v.(*Session)
	if !ok {
		return nil, false
	}
	s.sessions.SetDefault(sessionID, session)
	return session, true
}

func (s *SessionStore) Set(sessionID string, session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions.SetDefault(sessionID, session)
}

// GetAll returns live sessions, oldest first
func (s *SessionStore) GetAll() []*Session {
	items := s.sessions.Items()
	result := make([]*Session, 0, len(items))
	for _, item := range items {
		if session, ok := item.Object.(*Session); ok {
			result = append(result, session)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions.Delete(sessionID)
}
