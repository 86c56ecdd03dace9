package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	sse "github.com/tmaxmax/go-sse"
)

// StreamableHTTPTransport is the server-to-client SSE stream bound to one MCP
// session. Writes are serialized because the underlying session is not safe
// for concurrent use.
type StreamableHTTPTransport struct {
	sess    *sse.Session
	mu      sync.Mutex
	closed  bool
	onClose func()
	once    sync.Once
}

// NewStreamableHTTPTransport upgrades the response to an event stream.
func NewStreamableHTTPTransport(w http.ResponseWriter, r *http.Request, onClose ...func()) (*StreamableHTTPTransport, error) {
	sess, err := sse.Upgrade(w, r)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade SSE session: %w", err)
	}
	var closeHook func()
	if len(onClose) > 0 {
		closeHook = onClose[0]
	}
	return &StreamableHTTPTransport{
		sess:    sess,
		onClose: closeHook,
	}, nil
}

// SendJSON sends data as one "message" event.
func (t *StreamableHTTPTransport) SendJSON(data any) error {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal SSE data: %w", err)
	}

	msg := &sse.Message{Type: sse.Type("message")}
	msg.AppendData(string(dataJSON))
	if err := t.send(msg); err != nil {
		return fmt.Errorf("failed to write SSE message: %w", err)
	}
	return nil
}

// SendComment writes one SSE comment frame.
func (t *StreamableHTTPTransport) SendComment(comment string) error {
	msg := &sse.Message{}
	msg.AppendComment(comment)
	if err := t.send(msg); err != nil {
		return fmt.Errorf("failed to write SSE comment: %w", err)
	}
	return nil
}

func (t *StreamableHTTPTransport) send(msg *sse.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return fmt.Errorf("transport is closed")
	}
	if err := t.sess.Send(msg); err != nil {
		return err
	}
	return t.sess.Flush()
}

// Close marks the transport closed and ends the owning GET handler.
func (t *StreamableHTTPTransport) Close() error {
	t.mu.Lock()
	wasOpen := !t.closed
	t.closed = true
	t.mu.Unlock()

	if wasOpen && t.onClose != nil {
		t.once.Do(t.onClose)
	}
	return nil
}

func (t *StreamableHTTPTransport) IsClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
