// Package protocol defines the JSON-RPC envelope and the LSP-style types
// exchanged with the client. The server speaks JSONL: one JSON object per
// line, no Content-Length framing.
package protocol

import "encoding/json"

type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// HasID distinguishes requests from notifications. A literal null id is
// treated as absent.
func (m *Message) HasID() bool {
	return m != nil && len(m.ID) > 0 && string(m.ID) != "null"
}

type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *ErrorObject    `json:"error,omitempty"`
}

type ErrorObject struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

type ErrorCode int

const (
	ParseError     ErrorCode = -32700
	InvalidRequest ErrorCode = -32600
	MethodNotFound ErrorCode = -32601
	InvalidParams  ErrorCode = -32602
	InternalError  ErrorCode = -32603
)
