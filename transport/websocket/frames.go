package websocket

import (
	"encoding/json"
)

// Client commands.
const (
	CommandSubscribe   = "subscribe"
	CommandUnsubscribe = "unsubscribe"
	CommandSend        = "send"
)

// Server frame types.
const (
	FrameConnected = "connected"
	FrameMessage   = "message"
	FrameError     = "error"
)

// ClientFrame is a message from a client
type ClientFrame struct {
	Command     string          `json:"command"`
	Destination string          `json:"destination"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// Body returns the payload bytes. A payload sent as a JSON string is
// unquoted so clients may send either raw JSON or JSON text.
func (f ClientFrame) Body() []byte {
	if len(f.Payload) > 0 && f.Payload[0] == '"' {
		var text string
		if err := json.Unmarshal(f.Payload, &text); err == nil {
			return []byte(text)
		}
	}
	return f.Payload
}

// ServerFrame is a message to a client
type ServerFrame struct {
	Type         string          `json:"type"`
	ConnectionID string          `json:"connectionId,omitempty"`
	Destination  string          `json:"destination,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	Message      string          `json:"message,omitempty"`
}
