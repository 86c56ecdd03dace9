package editorbus

import (
	"sync"
	"time"
)

const defaultStaleAfter = 10 * time.Second

// EditorInfo is what the editor extension reports when it registers.
type EditorInfo struct {
	Version     string `json:"version,omitempty"`
	ProjectPath string `json:"project_path,omitempty"`
	ProjectName string `json:"project_name,omitempty"`
	Extension   string `json:"extension,omitempty"`
}

// Registration binds one MCP session to a running editor.
type Registration struct {
	SessionID    string     `json:"session_id"`
	Info         EditorInfo `json:"info"`
	RegisteredAt time.Time  `json:"registered_at"`
	LastSeen     time.Time  `json:"last_seen"`
}

// Presence tracks editor registrations by MCP session. The most recently
// active fresh registration receives bus commands.
type Presence struct {
	mu          sync.RWMutex
	staleAfter  time.Duration
	latestID    string
	bySessionID map[string]Registration
}

func NewPresence(staleAfter time.Duration) *Presence {
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	return &Presence{
		staleAfter:  staleAfter,
		bySessionID: make(map[string]Registration),
	}
}

func (p *Presence) Register(sessionID string, info EditorInfo, now time.Time) {
	if p == nil || sessionID == "" {
		return
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	registeredAt := now.UTC()
	if existing, ok := p.bySessionID[sessionID]; ok {
		registeredAt = existing.RegisteredAt
	}
	p.bySessionID[sessionID] = Registration{
		SessionID:    sessionID,
		Info:         info,
		RegisteredAt: registeredAt,
		LastSeen:     now.UTC(),
	}
	p.latestID = sessionID
}

// Touch refreshes LastSeen for an existing registration.
func (p *Presence) Touch(sessionID string, now time.Time) bool {
	if p == nil || sessionID == "" {
		return false
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	reg, ok := p.bySessionID[sessionID]
	if !ok {
		return false
	}
	reg.LastSeen = now.UTC()
	p.bySessionID[sessionID] = reg
	p.latestID = sessionID
	return true
}

func (p *Presence) Remove(sessionID string) {
	if p == nil || sessionID == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.bySessionID, sessionID)
	if p.latestID != sessionID {
		return
	}
	p.latestID = ""
	var latest Registration
	for id, candidate := range p.bySessionID {
		if latest.SessionID == "" || candidate.LastSeen.After(latest.LastSeen) {
			latest = candidate
			p.latestID = id
		}
	}
}

// Active returns the registration that should receive bus commands.
func (p *Presence) Active(now time.Time) (Registration, bool, string) {
	if p == nil {
		return Registration{}, false, "editor_presence_unavailable"
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.latestID == "" {
		return Registration{}, false, "editor_not_registered"
	}
	reg, ok := p.bySessionID[p.latestID]
	if !ok {
		return Registration{}, false, "editor_not_registered"
	}
	if now.Sub(reg.LastSeen) > p.staleAfter {
		return Registration{}, false, "editor_registration_stale"
	}
	return reg, true, ""
}

// Latest returns the newest registration regardless of freshness.
func (p *Presence) Latest() (Registration, bool) {
	if p == nil {
		return Registration{}, false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	reg, ok := p.bySessionID[p.latestID]
	return reg, ok
}

func (p *Presence) StaleAfter() time.Duration {
	if p == nil {
		return defaultStaleAfter
	}
	return p.staleAfter
}
