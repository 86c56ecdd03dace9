// Package editorbus carries (namespace, action, args...) requests from tool
// handlers to the Cocos Creator editor's message system.
package editorbus

import (
	"context"
	"errors"
	"fmt"
)

// Namespaces addressed by the tool modules.
const (
	NamespaceScene          = "scene"
	NamespaceAssetDB        = "asset-db"
	NamespacePreferences    = "preferences"
	NamespaceReferenceImage = "reference-image"
	NamespaceConsole        = "console"
	NamespaceEditor         = "editor"
)

var (
	ErrEditorUnavailable = errors.New("editor is not connected")
	ErrRequestTimeout    = errors.New("editor request timed out")
)

// Bus is the editor message bus. Request waits for the editor's reply; Send
// only delivers the message.
type Bus interface {
	Request(ctx context.Context, namespace, action string, args ...any) (any, error)
	Send(ctx context.Context, namespace, action string, args ...any) error
}

// RemoteError is a rejection reported by the editor for one request.
type RemoteError struct {
	Namespace string
	Action    string
	Message   string
}

func (e *RemoteError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("editor rejected %s/%s", e.Namespace, e.Action)
}

// Message is the wire form of one bus command.
type Message struct {
	ID          string `json:"messageId"`
	Namespace   string `json:"namespace"`
	Action      string `json:"action"`
	Args        []any  `json:"args"`
	ExpectReply bool   `json:"expectReply"`
}

func newMessage(id, namespace, action string, args []any, expectReply bool) Message {
	if args == nil {
		args = []any{}
	}
	return Message{
		ID:          id,
		Namespace:   namespace,
		Action:      action,
		Args:        args,
		ExpectReply: expectReply,
	}
}

// FuncBus adapts plain functions to Bus.
type FuncBus struct {
	RequestFunc func(ctx context.Context, namespace, action string, args []any) (any, error)
	SendFunc    func(ctx context.Context, namespace, action string, args []any) error
}

func (b FuncBus) Request(ctx context.Context, namespace, action string, args ...any) (any, error) {
	if b.RequestFunc == nil {
		return nil, ErrEditorUnavailable
	}
	return b.RequestFunc(ctx, namespace, action, args)
}

func (b FuncBus) Send(ctx context.Context, namespace, action string, args ...any) error {
	if b.SendFunc != nil {
		return b.SendFunc(ctx, namespace, action, args)
	}
	if b.RequestFunc != nil {
		_, err := b.RequestFunc(ctx, namespace, action, args)
		return err
	}
	return ErrEditorUnavailable
}
