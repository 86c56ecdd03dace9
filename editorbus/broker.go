package editorbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cocos-mcp/cocos-mcp-go/logger"
	"github.com/cocos-mcp/cocos-mcp-go/mcp"
	"github.com/cocos-mcp/cocos-mcp-go/mcp/jsonrpc"
)

const defaultRequestTimeout = 8 * time.Second

// NotificationSender pushes a server notification to one MCP session.
type NotificationSender func(sessionID string, message map[string]any) bool

// Ack is the editor extension's answer to one bus command.
type Ack struct {
	CommandID string
	Success   bool
	Result    any
	Error     string
	AckedAt   time.Time
}

type pendingCommand struct {
	sessionID string
	message   Message
	resultCh  chan Ack
}

// Broker is the default Bus: commands go to the registered editor session
// as notifications and complete when the extension acknowledges them.
type Broker struct {
	presence *Presence
	timeout  time.Duration

	senderMu sync.RWMutex
	sender   NotificationSender

	mu      sync.Mutex
	pending map[string]pendingCommand
}

func NewBroker(presence *Presence, timeout time.Duration) *Broker {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &Broker{
		presence: presence,
		timeout:  timeout,
		pending:  make(map[string]pendingCommand),
	}
}

func (b *Broker) Presence() *Presence {
	return b.presence
}

// SetSender installs the transport used to reach sessions.
func (b *Broker) SetSender(sender NotificationSender) {
	b.senderMu.Lock()
	defer b.senderMu.Unlock()
	b.sender = sender
}

func (b *Broker) send(sessionID string, message Message) bool {
	b.senderMu.RLock()
	sender := b.sender
	b.senderMu.RUnlock()
	if sender == nil {
		return false
	}
	notification := jsonrpc.NewNotification(mcp.NotificationEditorMessage, message)
	return sender(sessionID, notification.ToMap())
}

func (b *Broker) Request(ctx context.Context, namespace, action string, args ...any) (any, error) {
	reg, ok, reason := b.presence.Active(time.Now().UTC())
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEditorUnavailable, reason)
	}

	commandID := uuid.NewString()
	waiter := pendingCommand{
		sessionID: reg.SessionID,
		message:   newMessage(commandID, namespace, action, args, true),
		resultCh:  make(chan Ack, 1),
	}

	b.mu.Lock()
	b.pending[commandID] = waiter
	b.mu.Unlock()

	logger.Debug("Dispatching editor request", "id", commandID, "namespace", namespace, "action", action)
	if !b.send(reg.SessionID, waiter.message) {
		b.remove(commandID)
		return nil, fmt.Errorf("%w: command_transport_unavailable", ErrEditorUnavailable)
	}

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	select {
	case ack := <-waiter.resultCh:
		if !ack.Success {
			return nil, &RemoteError{Namespace: namespace, Action: action, Message: ack.Error}
		}
		return ack.Result, nil
	case <-timer.C:
		b.remove(commandID)
		return nil, fmt.Errorf("%w: %s/%s after %s", ErrRequestTimeout, namespace, action, b.timeout)
	case <-ctx.Done():
		b.remove(commandID)
		return nil, ctx.Err()
	}
}

func (b *Broker) Send(ctx context.Context, namespace, action string, args ...any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	reg, ok, reason := b.presence.Active(time.Now().UTC())
	if !ok {
		return fmt.Errorf("%w: %s", ErrEditorUnavailable, reason)
	}
	if !b.send(reg.SessionID, newMessage(uuid.NewString(), namespace, action, args, false)) {
		return fmt.Errorf("%w: command_transport_unavailable", ErrEditorUnavailable)
	}
	return nil
}

// Ack completes a pending command. It reports false for unknown, expired or
// foreign-session command ids.
func (b *Broker) Ack(sessionID string, ack Ack) bool {
	if b == nil || ack.CommandID == "" {
		return false
	}

	b.mu.Lock()
	pending, exists := b.pending[ack.CommandID]
	if !exists || pending.sessionID != sessionID {
		b.mu.Unlock()
		return false
	}
	delete(b.pending, ack.CommandID)
	b.mu.Unlock()

	if ack.AckedAt.IsZero() {
		ack.AckedAt = time.Now().UTC()
	}

	select {
	case pending.resultCh <- ack:
		return true
	default:
		return false
	}
}

// PendingCount reports commands still waiting for an acknowledgement.
func (b *Broker) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

func (b *Broker) remove(commandID string) {
	b.mu.Lock()
	delete(b.pending, commandID)
	b.mu.Unlock()
}
