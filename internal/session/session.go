package session

import (
	"sync"
	"time"

	"github.com/talkflow/talkflow/internal/pipeline"
)

// Session is one client's streaming context. All audio and control traffic
// for the session flows through its Pipeline.
type Session struct {
	ID        string
	CreatedAt time.Time
	Pipeline  *pipeline.Orchestrator

	mu           sync.RWMutex
	lastActivity time.Time
}

// Touch records activity, deferring idle expiry.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// LastActivity returns the time of the most recent audio or control message.
func (s *Session) LastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActivity
}

// IdleFor returns how long the session has been without traffic.
func (s *Session) IdleFor() time.Duration {
	return time.Since(s.LastActivity())
}
