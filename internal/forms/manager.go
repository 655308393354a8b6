// Package forms hosts booking form sessions over HTTP: one cascade
// controller and confirmation gate per page view, plus a WebSocket stream of
// field updates.
package forms

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/booking-cascade/internal/availability"
	"github.com/wolfman30/booking-cascade/internal/cascade"
	"github.com/wolfman30/booking-cascade/internal/clock"
	"github.com/wolfman30/booking-cascade/internal/confirmation"
	"github.com/wolfman30/booking-cascade/internal/observability/metrics"
	"github.com/wolfman30/booking-cascade/pkg/logging"
)

// ErrSessionNotFound is returned for unknown or reaped form ids.
var ErrSessionNotFound = errors.New("forms: session not found")

const defaultIdleTimeout = 30 * time.Minute

// Session is one page view's form.
type Session struct {
	ID         string
	PatientID  string
	CreatedAt  time.Time
	Controller *cascade.Controller
	Gate       *confirmation.Gate

	lastSeen atomic.Int64
}

func (s *Session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

// LastSeen returns when the session was last used.
func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

// ManagerConfig wires the collaborators shared by every session.
type ManagerConfig struct {
	Gateway      availability.Gateway
	Submitter    confirmation.Submitter
	Clock        clock.Clock
	Metrics      *metrics.CascadeMetrics
	FetchTimeout time.Duration
	IdleTimeout  time.Duration
	Messages     cascade.Messages
}

// Manager owns the live form sessions.
type Manager struct {
	cfg    ManagerConfig
	logger *logging.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a session manager.
func NewManager(cfg ManagerConfig, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewSystem(nil)
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}
	return &Manager{
		cfg:      cfg,
		logger:   logger.Component("forms"),
		sessions: make(map[string]*Session),
	}
}

// Create starts a new form session. The specialty catalog starts loading
// immediately.
func (m *Manager) Create(patientID string) (*Session, error) {
	id := uuid.New().String()
	ctrl, err := cascade.New(cascade.Options{
		ID:           id,
		Gateway:      m.cfg.Gateway,
		Clock:        m.cfg.Clock,
		Logger:       m.logger,
		Metrics:      m.cfg.Metrics,
		Messages:     m.cfg.Messages,
		FetchTimeout: m.cfg.FetchTimeout,
	})
	if err != nil {
		return nil, err
	}
	gate := confirmation.NewGate(ctrl, m.cfg.Submitter, confirmation.Options{
		PatientID: patientID,
		Logger:    m.logger.With("form_id", id),
		Metrics:   m.cfg.Metrics,
	})

	now := m.cfg.Clock.Now()
	s := &Session{ID: id, PatientID: patientID, CreatedAt: now, Controller: ctrl, Gate: gate}
	s.touch(now)

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	m.cfg.Metrics.SessionOpened()
	m.logger.Info("form session opened", "form_id", id, "has_patient", patientID != "")
	return s, nil
}

// invalidateCatalog clears the gateway's catalog cache when it has one.
// A failure only means the reload may still see cached entries.
func (m *Manager) invalidateCatalog(ctx context.Context) {
	inv, ok := m.cfg.Gateway.(availability.Invalidator)
	if !ok {
		return
	}
	if err := inv.Invalidate(ctx); err != nil {
		m.logger.Warn("catalog cache invalidation failed", "error", err)
	}
}

// Get returns a live session and marks it as used.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	m.touch(s)
	return s, nil
}

func (m *Manager) touch(s *Session) {
	s.touch(m.cfg.Clock.Now())
}

// Close stops and forgets a session.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	m.stop(s, "closed")
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Reap closes sessions idle since before now minus the idle timeout.
func (m *Manager) Reap(now time.Time) int {
	cutoff := now.Add(-m.cfg.IdleTimeout)
	var idle []*Session

	m.mu.Lock()
	for id, s := range m.sessions {
		if s.LastSeen().Before(cutoff) {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		m.stop(s, "idle")
	}
	return len(idle)
}

// Run reaps idle sessions every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Reap(m.cfg.Clock.Now()); n > 0 {
				m.logger.Info("reaped idle form sessions", "count", n)
			}
		}
	}
}

// Shutdown closes every session.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		all = append(all, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, s := range all {
		m.stop(s, "shutdown")
	}
}

func (m *Manager) stop(s *Session, reason string) {
	_ = s.Controller.Close()
	m.cfg.Metrics.SessionClosed()
	m.logger.Info("form session closed", "form_id", s.ID, "reason", reason)
}
