package api

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Qingzhee/rag-engine/internal/core/ports/driving"
	"github.com/Qingzhee/rag-engine/internal/logger"
)

// DefaultMaxSessions bounds the registry when no size is given.
const DefaultMaxSessions = 128

// Sessions holds one conversation per session id. The least recently used
// session is forgotten when the registry is full.
type Sessions struct {
	factory driving.ConversationFactory

	mu    sync.Mutex
	cache *lru.Cache[string, driving.ConversationService]
}

// NewSessions creates a registry over factory.
func NewSessions(factory driving.ConversationFactory, maxSessions int) (*Sessions, error) {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	cache, err := lru.NewWithEvict(maxSessions, func(id string, _ driving.ConversationService) {
		logger.Debug("api: evicted session %s", id)
	})
	if err != nil {
		return nil, fmt.Errorf("creating session cache: %w", err)
	}
	return &Sessions{factory: factory, cache: cache}, nil
}

// Get returns the session's conversation, starting one if needed.
func (s *Sessions) Get(id string) driving.ConversationService {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conv, ok := s.cache.Get(id); ok {
		return conv
	}
	conv := s.factory.NewConversation()
	s.cache.Add(id, conv)
	return conv
}

// Lookup returns the session's conversation without starting one.
func (s *Sessions) Lookup(id string) (driving.ConversationService, bool) {
	return s.cache.Get(id)
}

// Remove forgets a session.
func (s *Sessions) Remove(id string) bool {
	return s.cache.Remove(id)
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	return s.cache.Len()
}
