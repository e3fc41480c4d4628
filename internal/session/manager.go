// Package session tracks per-client connectivity with grace-period
// reconnection, independent of any transport.
package session

import (
	"sync"
	"time"

	"github.com/partyline/partyline-server/internal/proto"
)

// DefaultGracePeriod is how long a disconnected client may return before
// its session is destroyed.
const DefaultGracePeriod = 60 * time.Second

// Session is the lifecycle record for one stable client id. D is the
// game-defined payload attached to the session (score, ready state, ...).
type Session[D any] struct {
	Context        *proto.ClientContext
	Connected      bool
	DisconnectedAt time.Time // zero while connected
	Data           D
}

// Hooks receive lifecycle notifications. All are optional and are called
// outside the manager's lock.
type Hooks[D any] struct {
	// OnConnected fires on first connect (reconnect=false) and on a
	// reconnect inside the grace period (reconnect=true).
	OnConnected func(clientID string, s *Session[D], reconnect bool)
	// OnDisconnected fires when the transport drops.
	OnDisconnected func(clientID string, s *Session[D])
	// OnTimeout fires exactly once when the grace period elapses; the
	// record is already gone when it runs.
	OnTimeout func(clientID string, s *Session[D])
}

// Options configure a Manager.
type Options struct {
	// GracePeriod bounds reconnection; zero means DefaultGracePeriod.
	GracePeriod time.Duration
	// Reconnection disabled means every disconnect times the session out
	// immediately and every connect starts fresh.
	Reconnection bool
}

// Manager owns one Session per stable client id plus at most one live
// grace-period timer per id. Maps are mutated only by Manager methods.
type Manager[D any] struct {
	mu       sync.Mutex
	sessions map[string]*Session[D]
	timers   map[string]*time.Timer
	hooks    Hooks[D]
	opts     Options
}

// NewManager creates a manager with the given options and hooks.
func NewManager[D any](opts Options, hooks Hooks[D]) *Manager[D] {
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = DefaultGracePeriod
	}
	return &Manager[D]{
		sessions: make(map[string]*Session[D]),
		timers:   make(map[string]*time.Timer),
		hooks:    hooks,
		opts:     opts,
	}
}

// Connect registers a client as connected. With reconnection enabled and
// a record still inside its grace period, the record is revived and
// reconnect=true is returned; otherwise a fresh session is created.
func (m *Manager[D]) Connect(clientID string, ctx *proto.ClientContext, initial D) (*Session[D], bool) {
	m.mu.Lock()
	if m.opts.Reconnection {
		if s, ok := m.sessions[clientID]; ok {
			m.cancelTimerLocked(clientID)
			s.Connected = true
			s.DisconnectedAt = time.Time{}
			s.Context = ctx
			m.mu.Unlock()
			if m.hooks.OnConnected != nil {
				m.hooks.OnConnected(clientID, s, true)
			}
			return s, true
		}
	} else {
		// Prior records are ignored entirely when reconnection is off.
		m.cancelTimerLocked(clientID)
		delete(m.sessions, clientID)
	}
	s := &Session[D]{Context: ctx, Connected: true, Data: initial}
	m.sessions[clientID] = s
	m.mu.Unlock()
	if m.hooks.OnConnected != nil {
		m.hooks.OnConnected(clientID, s, false)
	}
	return s, false
}

// Disconnect marks the client disconnected and arms the grace-period
// timer. With reconnection disabled the session times out synchronously.
// Returns nil when no session exists for the id.
func (m *Manager[D]) Disconnect(clientID string) *Session[D] {
	m.mu.Lock()
	s, ok := m.sessions[clientID]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	s.Connected = false
	s.DisconnectedAt = time.Now()

	if !m.opts.Reconnection {
		delete(m.sessions, clientID)
		m.mu.Unlock()
		if m.hooks.OnDisconnected != nil {
			m.hooks.OnDisconnected(clientID, s)
		}
		if m.hooks.OnTimeout != nil {
			m.hooks.OnTimeout(clientID, s)
		}
		return s
	}

	m.cancelTimerLocked(clientID)
	var timer *time.Timer
	timer = time.AfterFunc(m.opts.GracePeriod, func() {
		m.expire(clientID, timer)
	})
	m.timers[clientID] = timer
	m.mu.Unlock()

	if m.hooks.OnDisconnected != nil {
		m.hooks.OnDisconnected(clientID, s)
	}
	return s
}

// expire destroys the session when its grace timer fires. A timer that
// lost the race to a reconnect or removal finds it no longer owns the
// id and does nothing.
func (m *Manager[D]) expire(clientID string, timer *time.Timer) {
	m.mu.Lock()
	current, ok := m.timers[clientID]
	if !ok || current != timer {
		m.mu.Unlock()
		return
	}
	delete(m.timers, clientID)
	s, ok := m.sessions[clientID]
	if !ok || s.Connected {
		m.mu.Unlock()
		return
	}
	delete(m.sessions, clientID)
	m.mu.Unlock()

	if m.hooks.OnTimeout != nil {
		m.hooks.OnTimeout(clientID, s)
	}
}

// Get returns the session for the id, if present.
func (m *Manager[D]) Get(clientID string) (*Session[D], bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[clientID]
	return s, ok
}

// Has reports whether a session exists for the id.
func (m *Manager[D]) Has(clientID string) bool {
	_, ok := m.Get(clientID)
	return ok
}

// All returns every session keyed by client id.
func (m *Manager[D]) All() map[string]*Session[D] {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]*Session[D], len(m.sessions))
	for id, s := range m.sessions {
		out[id] = s
	}
	return out
}

// Connected returns the sessions currently connected.
func (m *Manager[D]) Connected() map[string]*Session[D] {
	return m.filter(true)
}

// Disconnected returns the sessions inside their grace period.
func (m *Manager[D]) Disconnected() map[string]*Session[D] {
	return m.filter(false)
}

func (m *Manager[D]) filter(connected bool) map[string]*Session[D] {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]*Session[D])
	for id, s := range m.sessions {
		if s.Connected == connected {
			out[id] = s
		}
	}
	return out
}

// Remove deletes a session and cancels its timer without firing
// OnTimeout. Returns true if a session existed.
func (m *Manager[D]) Remove(clientID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelTimerLocked(clientID)
	if _, ok := m.sessions[clientID]; !ok {
		return false
	}
	delete(m.sessions, clientID)
	return true
}

// Clear cancels every timer and drops every session silently.
func (m *Manager[D]) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.timers {
		m.timers[id].Stop()
		delete(m.timers, id)
	}
	m.sessions = make(map[string]*Session[D])
}

// HasLiveTimer reports whether a grace timer is armed for the id.
func (m *Manager[D]) HasLiveTimer(clientID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.timers[clientID]
	return ok
}

func (m *Manager[D]) cancelTimerLocked(clientID string) {
	if t, ok := m.timers[clientID]; ok {
		t.Stop()
		delete(m.timers, clientID)
	}
}
