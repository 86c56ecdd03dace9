package types

import (
	"encoding/json"
	"fmt"
)

// Response is the envelope every editor tool returns.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
	Warning string `json:"warning,omitempty"`
}

func OK(data any, message string) Response {
	return Response{Success: true, Data: data, Message: message}
}

func Fail(message string) Response {
	return Response{Success: false, Error: message}
}

func Failf(format string, args ...any) Response {
	return Fail(fmt.Sprintf(format, args...))
}

func FailErr(err error) Response {
	if err == nil {
		return Fail("unknown error")
	}
	return Fail(err.Error())
}

func (r Response) WithWarning(warning string) Response {
	r.Warning = warning
	return r
}

func (r Response) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// UnknownTool is returned by modules for names they do not own.
func UnknownTool(name string) Response {
	return Fail("Unknown tool: " + name)
}

func UnknownAction(action string) Response {
	return Fail("Unknown action: " + action)
}
