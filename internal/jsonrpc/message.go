// Package jsonrpc bridges a client issuing JSON-RPC 2.0 requests to a
// language-intelligence service living in another execution context,
// over a message channel. Messages cross as structured payloads, not
// raw text.
package jsonrpc

import "fmt"

// Version is the protocol version stamped on every message.
const Version = "2.0"

// Message is a JSON-RPC 2.0 envelope: request, notification, or
// response, depending on which fields are populated.
type Message struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id,omitempty"`
	Method  string `json:"method,omitempty"`
	Params  any    `json:"params,omitempty"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc: %d %s", e.Code, e.Message)
}

// NewRequest builds a request expecting a correlated response.
func NewRequest(id any, method string, params any) *Message {
	return &Message{JSONRPC: Version, ID: id, Method: method, Params: params}
}

// NewNotification builds a message expecting no response.
func NewNotification(method string, params any) *Message {
	return &Message{JSONRPC: Version, Method: method, Params: params}
}

// IsNotification reports whether m expects no response.
func (m *Message) IsNotification() bool {
	return m.Method != "" && m.ID == nil
}

// IsResponse reports whether m is recognizable as a response: it carries
// an id and no method.
func (m *Message) IsResponse() bool {
	return m.ID != nil && m.Method == ""
}

// idKey normalizes a message id for map correlation. JSON decoders hand
// numeric ids back as float64 while senders use int; both must match.
func idKey(id any) string {
	switch v := id.(type) {
	case nil:
		return ""
	case string:
		return "s:" + v
	case float64:
		return fmt.Sprintf("n:%d", int64(v))
	case float32:
		return fmt.Sprintf("n:%d", int64(v))
	case int:
		return fmt.Sprintf("n:%d", int64(v))
	case int32:
		return fmt.Sprintf("n:%d", int64(v))
	case int64:
		return fmt.Sprintf("n:%d", v)
	case uint64:
		return fmt.Sprintf("n:%d", int64(v))
	default:
		return fmt.Sprintf("v:%v", v)
	}
}
