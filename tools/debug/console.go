package debug

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/cocos-mcp/cocos-mcp-go/logger"
)

// MaxConsoleMessages bounds the captured console buffer.
const MaxConsoleMessages = 1000

// ConsoleMessage is one captured console line.
type ConsoleMessage struct {
	Type      string
	Message   string
	Timestamp time.Time
}

func (m ConsoleMessage) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"type":      m.Type,
		"message":   m.Message,
		"timestamp": m.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	})
}

// Console is a FIFO buffer of console messages.
type Console struct {
	mu       sync.Mutex
	messages []ConsoleMessage
	max      int
	now      func() time.Time
}

func NewConsole() *Console {
	return &Console{max: MaxConsoleMessages, now: time.Now}
}

// Capture appends a message, dropping the oldest once the buffer is full.
func (c *Console) Capture(messageType, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, ConsoleMessage{Type: messageType, Message: message, Timestamp: c.now()})
	if len(c.messages) > c.max {
		c.messages = append(c.messages[:0:0], c.messages[len(c.messages)-c.max:]...)
	}
}

func (c *Console) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// Snapshot returns the messages of the given type (all types for "" or
// "all"), newest last, limited to the trailing limit entries.
func (c *Console) Snapshot(filter string, limit int) (total int, messages []ConsoleMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	total = len(c.messages)
	for _, message := range c.messages {
		if filter == "" || filter == "all" || message.Type == filter {
			messages = append(messages, message)
		}
	}
	if limit >= 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	if messages == nil {
		messages = []ConsoleMessage{}
	}
	return total, messages
}

func (c *Console) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	previous := len(c.messages)
	c.messages = nil
	return previous
}

// LoggerSink mirrors process log records into the buffer.
func (c *Console) LoggerSink() logger.RecordSink {
	return func(level slog.Level, message string, _ time.Time) {
		c.Capture(consoleType(level), message)
	}
}

func consoleType(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warn"
	case level >= slog.LevelInfo:
		return "info"
	default:
		return "log"
	}
}
