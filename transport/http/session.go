package http

import (
	"sync"
	"time"

	"github.com/cocos-mcp/cocos-mcp-go/logger"
)

// SessionManager manages MCP sessions for Streamable HTTP
type SessionManager struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	onRemove func(sessionID string)
}

// Session represents an MCP session
type Session struct {
	ID              string
	Created         time.Time
	LastSeen        time.Time
	Initialized     bool
	ProtocolVersion string
	Transport       *StreamableHTTPTransport
}

// NewSessionManager creates a new session manager. onRemove runs after a
// session is deleted or expires.
func NewSessionManager(onRemove func(sessionID string)) *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
		onRemove: onRemove,
	}
}

// CreateSession creates a session, or touches it when it already exists.
func (sm *SessionManager) CreateSession(sessionID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	now := time.Now()
	if session, exists := sm.sessions[sessionID]; exists {
		session.LastSeen = now
		return
	}
	sm.sessions[sessionID] = &Session{
		ID:       sessionID,
		Created:  now,
		LastSeen: now,
	}
}

func (sm *SessionManager) HasSession(sessionID string) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	_, exists := sm.sessions[sessionID]
	return exists
}

// TouchSession refreshes LastSeen and reports whether the session exists.
func (sm *SessionManager) TouchSession(sessionID string) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	session, exists := sm.sessions[sessionID]
	if exists {
		session.LastSeen = time.Now()
	}
	return exists
}

func (sm *SessionManager) MarkInitialized(sessionID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if session, exists := sm.sessions[sessionID]; exists {
		session.Initialized = true
	}
}

func (sm *SessionManager) IsInitialized(sessionID string) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	session, exists := sm.sessions[sessionID]
	return exists && session.Initialized
}

func (sm *SessionManager) SetProtocolVersion(sessionID, version string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if session, exists := sm.sessions[sessionID]; exists {
		session.ProtocolVersion = version
	}
}

func (sm *SessionManager) GetProtocolVersion(sessionID string) (string, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	session, exists := sm.sessions[sessionID]
	if !exists {
		return "", false
	}
	return session.ProtocolVersion, true
}

// SetTransport binds an open SSE stream to the session, closing any stream
// it replaces.
func (sm *SessionManager) SetTransport(sessionID string, transport *StreamableHTTPTransport) bool {
	sm.mu.Lock()
	session, exists := sm.sessions[sessionID]
	var previous *StreamableHTTPTransport
	if exists {
		previous = session.Transport
		session.Transport = transport
	}
	sm.mu.Unlock()

	if previous != nil && previous != transport {
		previous.Close()
	}
	return exists
}

func (sm *SessionManager) ClearTransportIfMatch(sessionID string, transport *StreamableHTTPTransport) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if session, exists := sm.sessions[sessionID]; exists && session.Transport == transport {
		session.Transport = nil
	}
}

// Notify pushes a server notification down the session's SSE stream. It
// reports false when the session has no open stream.
func (sm *SessionManager) Notify(sessionID string, message map[string]any) bool {
	sm.mu.RLock()
	session, exists := sm.sessions[sessionID]
	var transport *StreamableHTTPTransport
	if exists {
		transport = session.Transport
	}
	sm.mu.RUnlock()

	if transport == nil || transport.IsClosed() {
		return false
	}
	if err := transport.SendJSON(message); err != nil {
		logger.Warn("Failed to push SSE notification", "session_id", sessionID, "error", err)
		return false
	}
	return true
}

// RemoveSession removes a session
func (sm *SessionManager) RemoveSession(sessionID string) {
	sm.mu.Lock()
	session, exists := sm.sessions[sessionID]
	if exists {
		delete(sm.sessions, sessionID)
	}
	sm.mu.Unlock()

	if exists {
		sm.release(session)
	}
}

// CleanupSessions removes expired sessions
func (sm *SessionManager) CleanupSessions(timeout time.Duration) int {
	sm.mu.Lock()
	now := time.Now()
	expired := make([]*Session, 0)
	for sessionID, session := range sm.sessions {
		if now.Sub(session.LastSeen) > timeout {
			expired = append(expired, session)
			delete(sm.sessions, sessionID)
		}
	}
	sm.mu.Unlock()

	for _, session := range expired {
		logger.Debug("Expiring idle MCP session", "session_id", session.ID)
		sm.release(session)
	}
	return len(expired)
}

func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

func (sm *SessionManager) release(session *Session) {
	if session.Transport != nil {
		session.Transport.Close()
	}
	if sm.onRemove != nil {
		sm.onRemove(session.ID)
	}
}
