package editorbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresenceActiveAndStale(t *testing.T) {
	presence := NewPresence(10 * time.Second)
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	presence.Register("session-a", EditorInfo{ProjectPath: "/projects/a"}, now)

	reg, ok, reason := presence.Active(now.Add(9 * time.Second))
	require.True(t, ok, reason)
	assert.Equal(t, "session-a", reg.SessionID)
	assert.Equal(t, "/projects/a", reg.Info.ProjectPath)

	_, ok, reason = presence.Active(now.Add(11 * time.Second))
	assert.False(t, ok)
	assert.Equal(t, "editor_registration_stale", reason)
}

func TestPresenceTouchKeepsRegistrationFresh(t *testing.T) {
	presence := NewPresence(10 * time.Second)
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	presence.Register("session-a", EditorInfo{Version: "3.8.2"}, now)

	assert.True(t, presence.Touch("session-a", now.Add(9*time.Second)))
	reg, ok, _ := presence.Active(now.Add(18 * time.Second))
	require.True(t, ok)
	assert.Equal(t, now, reg.RegisteredAt)
	assert.False(t, presence.Touch("missing", now))
}

func TestPresenceRemoveFallsBackToNewest(t *testing.T) {
	presence := NewPresence(10 * time.Second)
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	presence.Register("session-a", EditorInfo{}, now)
	presence.Register("session-b", EditorInfo{}, now.Add(time.Second))

	presence.Remove("session-b")
	reg, ok, reason := presence.Active(now.Add(2 * time.Second))
	require.True(t, ok, reason)
	assert.Equal(t, "session-a", reg.SessionID)

	presence.Remove("session-a")
	_, ok, reason = presence.Active(now)
	assert.False(t, ok)
	assert.Equal(t, "editor_not_registered", reason)
}
