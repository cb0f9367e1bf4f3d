package state

import "sync"

type memoryManager struct {
	mu       sync.RWMutex
	sessions map[int64]*Session

	pauseMin int
	pauseMax int
}

// NewMemoryManager constructs an in-memory Manager. New sessions start idle with
// the given default pause bounds.
func NewMemoryManager(pauseMin, pauseMax int) Manager {
	return &memoryManager{
		sessions: make(map[int64]*Session),
		pauseMin: pauseMin,
		pauseMax: pauseMax,
	}
}

func (m *memoryManager) fresh() Session {
	return Session{State: StateIdle, PauseMin: m.pauseMin, PauseMax: m.pauseMax}
}

// session returns the stored session, creating it if needed. Callers hold mu.
func (m *memoryManager) session(chatID int64) *Session {
	sess, ok := m.sessions[chatID]
	if !ok {
		s := m.fresh()
		sess = &s
		m.sessions[chatID] = sess
	}
	return sess
}

func (m *memoryManager) Get(chatID int64) Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if sess, ok := m.sessions[chatID]; ok {
		return *sess
	}
	return m.fresh()
}

func (m *memoryManager) Update(chatID int64, fn func(*Session)) Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess := m.session(chatID)
	if fn != nil {
		fn(sess)
	}
	return *sess
}

// SetState sets the FSM state for the given chat.
func (m *memoryManager) SetState(chatID int64, st State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session(chatID).State = st
}

// GetState returns the current FSM state of a chat, or StateIdle if none exists.
func (m *memoryManager) GetState(chatID int64) State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if sess, ok := m.sessions[chatID]; ok {
		return sess.State
	}
	return StateIdle
}

func (m *memoryManager) Reset(chatID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[chatID]; ok {
		sess.State = StateIdle
		sess.Source = ""
	}
}

// InProgress reports whether the chat has an active state other than idle.
func (m *memoryManager) InProgress(chatID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[chatID]
	return ok && sess.State != StateIdle
}

func (m *memoryManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
