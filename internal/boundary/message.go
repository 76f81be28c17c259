// Package boundary implements the machinery that lets values cross an
// execution-context boundary over a message channel: a transfer-handler
// registry for values that cannot be carried by plain structured copy
// (live sequences, cancellation signals), and the endpoint that applies
// it to every payload it sends or receives.
package boundary

// Message is the wire envelope exchanged between two endpoints. Exactly
// one of the three shapes is populated:
//
//	request:      ID + Method + Args
//	notification: Method + Args (no ID, no reply expected)
//	response:     ID + Result or Err
type Message struct {
	ID     string `cbor:"id,omitempty" json:"id,omitempty"`
	Method string `cbor:"method,omitempty" json:"method,omitempty"`
	Args   []any  `cbor:"args,omitempty" json:"args,omitempty"`
	Result any    `cbor:"result,omitempty" json:"result,omitempty"`
	Err    string `cbor:"error,omitempty" json:"error,omitempty"`
	// Reply distinguishes a response carrying a nil result from a
	// request without arguments.
	Reply bool `cbor:"reply,omitempty" json:"reply,omitempty"`
}

// IsRequest reports whether m expects a correlated response.
func (m Message) IsRequest() bool { return m.ID != "" && !m.Reply }

// IsNotification reports whether m expects no response at all.
func (m Message) IsNotification() bool { return m.ID == "" && m.Method != "" }

// IsResponse reports whether m answers an earlier request.
func (m Message) IsResponse() bool { return m.Reply }
