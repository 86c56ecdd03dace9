package editorbus

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const maxHTTPReplyBytes = 8 << 20

// HTTPBus posts bus commands to an HTTP endpoint served by the editor
// extension and decodes {success, result, error} replies.
type HTTPBus struct {
	url     string
	client  *http.Client
	timeout time.Duration
}

type httpEnvelope struct {
	ID          string `json:"id"`
	Namespace   string `json:"namespace"`
	Action      string `json:"action"`
	Args        []any  `json:"args"`
	ExpectReply bool   `json:"expectReply"`
	Timestamp   int64  `json:"timestamp"`
}

type httpReply struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func NewHTTPBus(url string, timeout time.Duration) *HTTPBus {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &HTTPBus{
		url:     url,
		client:  &http.Client{},
		timeout: timeout,
	}
}

func (b *HTTPBus) Request(ctx context.Context, namespace, action string, args ...any) (any, error) {
	return b.post(ctx, newMessage(uuid.NewString(), namespace, action, args, true))
}

func (b *HTTPBus) Send(ctx context.Context, namespace, action string, args ...any) error {
	_, err := b.post(ctx, newMessage(uuid.NewString(), namespace, action, args, false))
	return err
}

func (b *HTTPBus) post(ctx context.Context, message Message) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	body, err := json.Marshal(httpEnvelope{
		ID:          message.ID,
		Namespace:   message.Namespace,
		Action:      message.Action,
		Args:        message.Args,
		ExpectReply: message.ExpectReply,
		Timestamp:   time.Now().UnixMilli(),
	})
	if err != nil {
		return nil, fmt.Errorf("encode editor request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build editor request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s/%s after %s", ErrRequestTimeout, message.Namespace, message.Action, b.timeout)
		}
		return nil, fmt.Errorf("%w: %v", ErrEditorUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxHTTPReplyBytes))
	if err != nil {
		return nil, fmt.Errorf("read editor reply: %w", err)
	}

	var reply httpReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, fmt.Errorf("%w: bridge returned HTTP %d", ErrEditorUnavailable, resp.StatusCode)
		}
		return nil, fmt.Errorf("decode editor reply: %w", err)
	}
	if !reply.Success {
		return nil, &RemoteError{Namespace: message.Namespace, Action: message.Action, Message: reply.Error}
	}
	if len(reply.Result) == 0 {
		return nil, nil
	}

	var result any
	if err := json.Unmarshal(reply.Result, &result); err != nil {
		return nil, fmt.Errorf("decode editor result: %w", err)
	}
	return result, nil
}
