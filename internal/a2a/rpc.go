package a2a

import "encoding/json"

// JSON-RPC 2.0 error codes used by the gateway.
const (
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeTaskNotFound   = -32001
)

// Request is a JSON-RPC 2.0 request envelope.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// MessageSendParams is the payload of message/send and tasks/send.
type MessageSendParams struct {
	Message  Message        `json:"message"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// TaskIDParams is the payload of tasks/get and tasks/cancel.
type TaskIDParams struct {
	ID string `json:"id"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string { return e.Message }

// NewError builds a JSON-RPC error value.
func NewError(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Response is a JSON-RPC 2.0 response envelope. Exactly one of Result and
// Err is set.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id"`
	Result  any    `json:"result,omitempty"`
	Err     *Error `json:"error,omitempty"`
}

// ResultResponse wraps a result in a response envelope.
func ResultResponse(id, result any) Response {
	return Response{JSONRPC: "2.0", ID: id, Result: result}
}

// ErrorResponse wraps an error in a response envelope.
func ErrorResponse(id any, err *Error) Response {
	return Response{JSONRPC: "2.0", ID: id, Err: err}
}
