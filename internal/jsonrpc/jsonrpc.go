// Package jsonrpc holds the minimal JSON-RPC 2.0 envelope used by the tool
// server: inbound requests and notifications, outbound responses.
package jsonrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Version is the only accepted value of the "jsonrpc" member.
const Version = "2.0"

// ErrorCode is a JSON-RPC 2.0 error code.
type ErrorCode int

const (
	ErrorCodeParseError     ErrorCode = -32700
	ErrorCodeInvalidRequest ErrorCode = -32600
	ErrorCodeMethodNotFound ErrorCode = -32601
	ErrorCodeInvalidParams  ErrorCode = -32602
	ErrorCodeInternalError  ErrorCode = -32603
)

// ID is a request id: a string, an integral number or absent.
type ID struct {
	raw json.RawMessage
}

// IsZero reports whether the id was absent (a notification).
func (id ID) IsZero() bool { return len(id.raw) == 0 }

func (id ID) String() string {
	if id.IsZero() {
		return ""
	}
	var s string
	if err := json.Unmarshal(id.raw, &s); err == nil {
		return s
	}
	return string(id.raw)
}

// MarshalJSON writes the id verbatim, or null when absent.
func (id ID) MarshalJSON() ([]byte, error) {
	if id.IsZero() {
		return []byte("null"), nil
	}
	return id.raw, nil
}

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		id.raw = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		id.raw = append(json.RawMessage(nil), data...)
		return nil
	}
	if _, err := strconv.ParseInt(string(data), 10, 64); err == nil {
		id.raw = append(json.RawMessage(nil), data...)
		return nil
	}
	return fmt.Errorf("id must be a string or integer, got %s", data)
}

// Request is an inbound request, or a notification when ID is zero.
type Request struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	Method         string          `json:"method"`
	Params         json.RawMessage `json:"params,omitempty"`
	ID             ID              `json:"id"`
}

// IsNotification reports whether no response is expected.
func (r *Request) IsNotification() bool { return r.ID.IsZero() }

// ParseRequest decodes and validates a single request object.
func ParseRequest(data []byte) (*Request, *Error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		var syn *json.SyntaxError
		if errors.As(err, &syn) {
			return nil, &Error{Code: ErrorCodeParseError, Message: "parse error"}
		}
		return nil, &Error{Code: ErrorCodeInvalidRequest, Message: err.Error()}
	}
	if req.JSONRPCVersion != Version {
		return &req, &Error{Code: ErrorCodeInvalidRequest, Message: fmt.Sprintf("jsonrpc must be %q", Version)}
	}
	if req.Method == "" {
		return &req, &Error{Code: ErrorCodeInvalidRequest, Message: "method is required"}
	}
	return &req, nil
}

// Response is an outbound response carrying either Result or Error.
type Response struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	Result         json.RawMessage `json:"result,omitempty"`
	Error          *Error          `json:"error,omitempty"`
	ID             ID              `json:"id"`
}

// NewResultResponse builds a successful response.
func NewResultResponse(id ID, result any) (*Response, error) {
	b, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return &Response{JSONRPCVersion: Version, Result: b, ID: id}, nil
}

// NewErrorResponse builds an error response.
func NewErrorResponse(id ID, e *Error) *Response {
	return &Response{JSONRPCVersion: Version, Error: e, ID: id}
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Data    any       `json:"data,omitempty"`
}

func (e *Error) Error() string { return fmt.Sprintf("jsonrpc %d: %s", e.Code, e.Message) }
