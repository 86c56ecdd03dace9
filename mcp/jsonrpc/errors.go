package jsonrpc

import "errors"

type ErrorCode int

// JSON-RPC 2.0 error codes
const (
	ErrParseError     ErrorCode = -32700
	ErrInvalidRequest ErrorCode = -32600
	ErrMethodNotFound ErrorCode = -32601
	ErrInvalidParams  ErrorCode = -32602
	ErrInternalError  ErrorCode = -32603

	// Implementation-defined server errors (-32000 to -32099)
	ErrServerError       ErrorCode = -32000
	ErrEditorUnavailable ErrorCode = -32001
	ErrEditorTimeout     ErrorCode = -32002
)

// JSONRPCError is an error value that carries a JSON-RPC code.
type JSONRPCError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Data    any       `json:"data,omitempty"`
}

func NewJSONRPCError(code ErrorCode, message string, data any) *JSONRPCError {
	return &JSONRPCError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

func (e *JSONRPCError) Error() string {
	return e.Message
}

// IsError reports whether err is a JSON-RPC error with the given code.
func IsError(err error, code ErrorCode) bool {
	var e *JSONRPCError
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

func IsInvalidParams(err error) bool {
	return IsError(err, ErrInvalidParams)
}

func IsMethodNotFound(err error) bool {
	return IsError(err, ErrMethodNotFound)
}
