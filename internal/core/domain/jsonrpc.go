package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

const JSONRPCVersion = "2.0"

// JSON-RPC 2.0 error codes. The -32000..-32099 range is reserved for
// implementation-defined server errors; the gateway uses three of them.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeServerError    = -32000
	CodeTimeout        = -32001
	CodeUpstreamError  = -32002
)

// Request is a JSON-RPC 2.0 request or notification. ID is kept as raw JSON
// so numeric and string ids round-trip byte-exact through the gateway.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
}

// IsNotification reports whether the request expects no response.
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0 || string(r.ID) == "null"
}

// Response is a JSON-RPC 2.0 response carrying either Result or Error,
// never both, with the id echoed from the request.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
}

// IsError reports whether the upstream answered with an error payload.
// This is still a successful call at the transport layer.
func (r *Response) IsError() bool {
	return r.Error != nil
}

type RPCError struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// NewErrorResponse builds an error response echoing the given id. A nil id
// is legal and matches requests that never parsed far enough to carry one.
func NewErrorResponse(id json.RawMessage, code int, message string, data map[string]any) Response {
	return Response{
		JSONRPC: JSONRPCVersion,
		Error: &RPCError{
			Code:    code,
			Message: message,
			Data:    data,
		},
		ID: id,
	}
}

// ParseRequest decodes a JSON-RPC request body. A malformed body or a
// missing method yields an error the HTTP layer maps to CodeParseError or
// CodeInvalidRequest.
func ParseRequest(body []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return Request{}, fmt.Errorf("parse request: %w", err)
	}
	return req, nil
}

// ResponseForError translates a routing failure into the JSON-RPC error
// response the caller sees, echoing the request id. Both the HTTP proxy
// handler and the SSE layer share this mapping; the HTTP status code is
// the handler's own concern.
func ResponseForError(id json.RawMessage, err error) Response {
	var unknown *UnknownServerError
	if errors.As(err, &unknown) {
		return NewErrorResponse(id, CodeMethodNotFound, "unknown server", map[string]any{
			"server":    unknown.Server,
			"available": unknown.Available,
		})
	}

	var open *BreakerOpenError
	if errors.As(err, &open) {
		return NewErrorResponse(id, CodeServerError, fmt.Sprintf("circuit breaker open for %s", open.Server), map[string]any{
			"retry_after_ms": open.RetryAfter.Milliseconds(),
			"state":          string(BreakerOpen),
		})
	}

	var exhausted *RestartExhaustedError
	if errors.As(err, &exhausted) {
		return NewErrorResponse(id, CodeUpstreamError, "upstream restart budget exhausted", map[string]any{
			"cause":    exhausted.Error(),
			"restarts": exhausted.Restarts,
		})
	}

	var transport *TransportError
	if errors.As(err, &transport) {
		if transport.Timeout {
			return NewErrorResponse(id, CodeTimeout, fmt.Sprintf("upstream %s timed out", transport.Server), map[string]any{
				"cause": transport.Error(),
			})
		}
		return NewErrorResponse(id, CodeServerError, fmt.Sprintf("upstream %s unreachable", transport.Server), map[string]any{
			"cause": transport.Error(),
		})
	}

	return NewErrorResponse(id, CodeInternalError, err.Error(), nil)
}
