// Package server defines the wire-level event envelope and the tagged
// message payloads exchanged between clients and the relay.
package server

import (
	"encoding/json"
	"strings"
)

// Outbound event names.
const (
	EventMessage         = "message"
	EventUserList        = "user_list"
	EventUsernameChanged = "username_changed"
	EventUsernameError   = "username_error"
)

// Inbound event names.
const (
	EventChatMessage = "chat_message"
	EventSetUsername = "set_username"
)

// Message kinds carried by the "type" field of a ChatMessage.
const (
	kindSystem = "system"
	kindChat   = "chat"
)

// Envelope frames every event crossing the WebSocket in either direction.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ChatMessage is a transcript entry delivered through the "message" event.
// System messages never carry a username; only system messages may set Clear.
type ChatMessage struct {
	Type      string `json:"type"`
	Username  string `json:"username,omitempty"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
	ID        string `json:"id"`
	Clear     bool   `json:"clear,omitempty"`
}

// UserInfo is one entry of a user_list payload.
type UserInfo struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// UserList is the payload of the user_list event.
type UserList struct {
	Users []UserInfo `json:"users"`
}

// UsernameChanged confirms a successful rename to the requesting client.
type UsernameChanged struct {
	Username string `json:"username"`
}

// UsernameError reports a rejected rename to the requesting client.
type UsernameError struct {
	Error string `json:"error"`
}

// ChatPayload is the inbound chat_message body.
type ChatPayload struct {
	Text string `json:"text"`
}

// UsernamePayload is the inbound set_username body.
type UsernamePayload struct {
	Username string `json:"username"`
}

// encodeEvent wraps data in an Envelope and marshals the whole frame.
func encodeEvent(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
