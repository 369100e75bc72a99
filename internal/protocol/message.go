// Package protocol defines the messages exchanged with the view-model server:
// the framing envelope, the outbound execute command with its argument map,
// and the inbound fragment set.
package protocol

import (
	"encoding/json"
	"fmt"

	apperrors "github.com/homectlx/panel/internal/errors"
)

// MessageType identifies the kind of frame sent over the WebSocket.
type MessageType string

const (
	// MessageTypeExecute asks a view-model to run an operation.
	// Payload: ExecutePayload
	MessageTypeExecute MessageType = "execute"

	// MessageTypeResponse carries the fragments produced by an operation.
	// Payload: FragmentSet
	MessageTypeResponse MessageType = "response"
)

// Message is the envelope every frame is wrapped in.
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encode wraps payload in an envelope of the given type.
func Encode(t MessageType, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return json.Marshal(Message{Type: t, Payload: raw})
}

// Decode parses an envelope. The payload is left raw for the handler of
// the message type to decode.
func Decode(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, apperrors.Wrap(apperrors.CodeProtocolInvalidMessage, "malformed frame", err)
	}
	if msg.Type == "" {
		return Message{}, apperrors.InvalidMessage("frame has no type")
	}
	return msg, nil
}
