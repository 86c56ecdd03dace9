package mcplog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeParams(t *testing.T) {
	tests := []struct {
		name     string
		input    map[string]any
		wantKeys []string
		wantSkip []string
	}{
		{name: "nil map returns empty", input: nil},
		{name: "short string passes through", input: map[string]any{"action": "get_log"}, wantKeys: []string{"action"}},
		{
			name:     "long string replaced with _len key",
			input:    map[string]any{"jsonString": strings.Repeat("x", 200)},
			wantKeys: []string{"jsonString_len"},
			wantSkip: []string{"jsonString"},
		},
		{
			name:     "session context dropped",
			input:    map[string]any{"_mcp": map[string]any{"session_id": "s"}, "limit": 5},
			wantKeys: []string{"limit"},
			wantSkip: []string{"_mcp"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := SanitizeParams(tc.input)
			for _, k := range tc.wantKeys {
				assert.Contains(t, out, k)
			}
			for _, k := range tc.wantSkip {
				assert.NotContains(t, out, k)
			}
		})
	}
}

func TestOpenEmptyPathDisables(t *testing.T) {
	logger, err := Open("")
	require.NoError(t, err)
	assert.Nil(t, logger)
	assert.NoError(t, logger.Write(Entry{Tool: "noop"}))
	assert.NoError(t, logger.Close())
}

func TestWriteAppendsJSONL(t *testing.T) {
	restore := Now
	Now = func() time.Time { return time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC) }
	defer func() { Now = restore }()

	path := filepath.Join(t.TempDir(), "nested", "audit.jsonl")
	logger, err := Open(path)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, logger.Write(Entry{Tool: "scene_query", DurationMs: 3}))
		}()
	}
	wg.Wait()
	require.NoError(t, logger.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	lines := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry Entry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		assert.Equal(t, "scene_query", entry.Tool)
		assert.Equal(t, "2026-10-18T09:00:00Z", entry.Ts)
		lines++
	}
	assert.Equal(t, 8, lines)
}
