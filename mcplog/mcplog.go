// Package mcplog writes one JSONL audit record per tool call.
package mcplog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const shortStringMax = 64

// Entry is one audit line.
type Entry struct {
	Ts            string         `json:"ts"`
	Tool          string         `json:"tool"`
	ResolvedTool  string         `json:"resolved_tool,omitempty"`
	Action        string         `json:"action,omitempty"`
	Params        map[string]any `json:"params"`
	DurationMs    int64          `json:"duration_ms"`
	ResponseBytes int            `json:"response_bytes"`
	Success       *bool          `json:"success,omitempty"`
	Error         *string        `json:"error"`
}

// Logger appends entries to a file. A nil Logger discards writes.
type Logger struct {
	mu  sync.Mutex
	f   *os.File
	enc *json.Encoder
}

// Open returns nil, nil for an empty path.
func Open(path string) (*Logger, error) {
	if path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mcplog: create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("mcplog: open log file: %w", err)
	}
	return &Logger{f: f, enc: json.NewEncoder(f)}, nil
}

func (l *Logger) Write(entry Entry) error {
	if l == nil {
		return nil
	}
	if entry.Ts == "" {
		entry.Ts = Now().UTC().Format(time.RFC3339Nano)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enc.Encode(entry)
}

func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}

// SanitizeParams copies args for logging. Long strings become a "<key>_len"
// entry and the injected session context is dropped.
func SanitizeParams(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		if k == "_mcp" {
			continue
		}
		if s, ok := v.(string); ok && len(s) > shortStringMax {
			out[k+"_len"] = len(s)
		} else {
			out[k] = v
		}
	}
	return out
}

// Now is a replaceable clock for testing.
var Now = func() time.Time { return time.Now() }
