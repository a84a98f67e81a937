// Package session holds the single automation session a server instance
// serves.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/devicelab-dev/uia2-server/pkg/core"
	"github.com/devicelab-dev/uia2-server/pkg/element"
	"github.com/devicelab-dev/uia2-server/pkg/logger"
)

// Session is the top-level scope for element ids. It lives as long as the
// server and owns the Element Cache.
type Session struct {
	mu           sync.RWMutex
	id           string
	capabilities map[string]interface{}
	createdAt    time.Time
	cache        *element.Cache
	closed       bool

	newID func() string
}

// New creates a session with a fresh id and an empty cache.
func New() *Session {
	s := &Session{
		cache: element.NewCache(),
		newID: uuid.NewString,
	}
	s.id = s.newID()
	s.createdAt = time.Now()
	return s
}

// ID returns the current session id.
func (s *Session) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

// Cache returns the element cache.
func (s *Session) Cache() *element.Cache {
	return s.cache
}

// Capabilities returns the capabilities echoed at creation.
func (s *Session) Capabilities() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]interface{}, len(s.capabilities))
	for k, v := range s.capabilities {
		out[k] = v
	}
	return out
}

// CreatedAt returns when the current id was issued.
func (s *Session) CreatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.createdAt
}

// Open records client capabilities for the current session and returns its
// id. Clients attach to the live session; there is never more than one.
func (s *Session) Open(caps map[string]interface{}) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.capabilities = caps
	s.closed = false
	logger.Info("session %s opened", s.id)
	return s.id
}

// Check validates a session id carried by a request.
func (s *Session) Check(id string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id != s.id {
		return core.ErrNoSuchSession.WithDetails(map[string]interface{}{"sessionId": id})
	}
	return nil
}

// Reset invalidates every element id and rotates the session id.
func (s *Session) Reset() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.id
	s.cache.Clear()
	s.capabilities = nil
	s.id = s.newID()
	s.createdAt = time.Now()
	logger.Info("session %s ended, new session %s", old, s.id)
	return s.id
}

// Close drops all cached elements. It is safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.cache.Clear()
}
