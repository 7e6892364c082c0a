package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/talkflow/talkflow/internal/asr"
	"github.com/talkflow/talkflow/internal/config"
	"github.com/talkflow/talkflow/internal/metrics"
	"github.com/talkflow/talkflow/internal/pipeline"
	"github.com/talkflow/talkflow/internal/translate"
	"github.com/talkflow/talkflow/internal/tts"
	"github.com/talkflow/talkflow/internal/vad"
)

// Collaborators are the shared stage backends handed to every session's
// pipeline. The VAD detector is per session and built by the manager.
type Collaborators struct {
	Recognizer  asr.Recognizer
	Translator  translate.Translator
	Synthesizer tts.Synthesizer
}

// Manager tracks active sessions and expires the ones that go idle.
type Manager struct {
	cfg     *config.Config
	collab  Collaborators
	metrics *metrics.Metrics
	logger  *slog.Logger

	sessions map[string]*Session
	mu       sync.RWMutex

	stopCleanup chan struct{}
	cleanupDone chan struct{}

	// Statistics
	totalCreated uint64
	totalExpired uint64
}

// ManagerStats represents session manager statistics
type ManagerStats struct {
	ActiveSessions int    `json:"active_sessions"`
	TotalCreated   uint64 `json:"total_created"`
	TotalExpired   uint64 `json:"total_expired"`
}

// NewManager creates a session manager and starts its idle cleanup loop.
func NewManager(cfg *config.Config, collab Collaborators, m *metrics.Metrics, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	mgr := &Manager{
		cfg:         cfg,
		collab:      collab,
		metrics:     m,
		logger:      logger,
		sessions:    make(map[string]*Session),
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}

	go mgr.cleanupLoop()

	return mgr
}

// Create starts a new session with its own pipeline. Fails when the session
// limit is reached.
func (m *Manager) Create() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) >= m.cfg.Session.MaxSessions {
		return nil, fmt.Errorf("session limit reached (%d)", m.cfg.Session.MaxSessions)
	}

	id := uuid.NewString()

	orch, err := pipeline.NewOrchestrator(id, m.cfg, pipeline.Deps{
		Detector:    m.newDetector(),
		Recognizer:  m.collab.Recognizer,
		Translator:  m.collab.Translator,
		Synthesizer: m.collab.Synthesizer,
		Metrics:     m.metrics,
		Logger:      m.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session pipeline: %w", err)
	}

	now := time.Now()
	s := &Session{
		ID:           id,
		CreatedAt:    now,
		Pipeline:     orch,
		lastActivity: now,
	}

	m.sessions[id] = s
	m.totalCreated++
	m.metrics.RecordSessionStarted()

	m.logger.Info("session created", "session_id", id, "active_sessions", len(m.sessions))

	return s, nil
}

// Get returns the session with the given ID.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	return s, ok
}

// Close stops a session's pipeline, bounded by the configured close grace
// window, and removes it from the registry.
func (m *Manager) Close(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.Session.GetCloseGrace())
	defer cancel()
	s.Pipeline.Stop(ctx)

	m.metrics.RecordSessionEnded()
	m.logger.Info("session closed", "session_id", id, "lifetime", time.Since(s.CreatedAt))
}

// Count returns the number of active sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// List returns pipeline statistics for every active session.
func (m *Manager) List() []pipeline.Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]pipeline.Stats, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Pipeline.GetStats())
	}
	return out
}

// GetStats returns current manager statistics
func (m *Manager) GetStats() ManagerStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return ManagerStats{
		ActiveSessions: len(m.sessions),
		TotalCreated:   m.totalCreated,
		TotalExpired:   m.totalExpired,
	}
}

// Shutdown stops the cleanup loop and closes every active session.
func (m *Manager) Shutdown() {
	close(m.stopCleanup)
	<-m.cleanupDone

	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.Close(id)
	}

	m.logger.Info("session manager stopped")
}

func (m *Manager) newDetector() vad.Detector {
	frameSize := m.cfg.Audio.FrameSize()
	if m.cfg.VAD.Engine == "mock" {
		return &vad.Mock{FrameSize: frameSize}
	}
	return vad.NewEnergyDetector(frameSize, m.cfg.VAD.Threshold)
}

// cleanupLoop expires idle sessions at half the idle timeout interval.
func (m *Manager) cleanupLoop() {
	defer close(m.cleanupDone)

	interval := m.cfg.Session.GetIdleTimeout() / 2
	if interval < time.Second {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.expireIdle()
		case <-m.stopCleanup:
			return
		}
	}
}

func (m *Manager) expireIdle() {
	timeout := m.cfg.Session.GetIdleTimeout()

	m.mu.RLock()
	var expired []string
	for id, s := range m.sessions {
		if s.IdleFor() > timeout {
			expired = append(expired, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range expired {
		m.logger.Info("expiring idle session", "session_id", id)
		m.Close(id)

		m.mu.Lock()
		m.totalExpired++
		m.mu.Unlock()
	}
}
