package state

import (
	"sync"
	"time"

	"clockbot/core/logger"
	"log/slog"
)

const janitorInterval = time.Minute

type session struct {
	flow    string
	step    int
	fields  map[string]string
	touched time.Time
}

type memoryManager struct {
	mu       sync.Mutex
	sessions map[int64]*session
	ttl      time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemoryManager constructs an in-memory Manager. Sessions idle for longer
// than ttl are evicted by a background janitor and also lazily on access.
func NewMemoryManager(ttl time.Duration) Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m := &memoryManager{
		sessions: make(map[int64]*session),
		ttl:      ttl,
		stop:     make(chan struct{}),
	}
	go m.janitor()
	return m
}

func (m *memoryManager) janitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *memoryManager) sweep() {
	now := time.Now()
	expired := 0

	m.mu.Lock()
	for id, sess := range m.sessions {
		if now.Sub(sess.touched) > m.ttl {
			delete(m.sessions, id)
			expired++
		}
	}
	m.mu.Unlock()

	if expired > 0 {
		logger.TG.Debug("sessions expired",
			slog.String("event", "fsm.expire"),
			slog.Int("count", expired),
		)
	}
}

// active returns the live session for a user, expiring it lazily.
// Callers must hold m.mu.
func (m *memoryManager) active(userID int64) (*session, bool) {
	sess, ok := m.sessions[userID]
	if !ok {
		return nil, false
	}
	if time.Since(sess.touched) > m.ttl {
		delete(m.sessions, userID)
		return nil, false
	}
	return sess, true
}

func (m *memoryManager) Get(userID int64) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.active(userID)
	if !ok {
		return Session{}, false
	}

	fields := make(map[string]string, len(sess.fields))
	for k, v := range sess.fields {
		fields[k] = v
	}
	return Session{Flow: sess.flow, Step: sess.step, Fields: fields}, true
}

func (m *memoryManager) Begin(userID int64, flow string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[userID] = &session{
		flow:    flow,
		fields:  make(map[string]string),
		touched: time.Now(),
	}
}

func (m *memoryManager) SetField(userID int64, key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.active(userID); ok {
		sess.fields[key] = value
		sess.touched = time.Now()
	}
}

func (m *memoryManager) Advance(userID int64, step int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.active(userID); ok {
		sess.step = step
		sess.touched = time.Now()
	}
}

func (m *memoryManager) Clear(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
}

func (m *memoryManager) InProgress(userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.active(userID)
	return ok
}

func (m *memoryManager) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
}
