// Package model defines data structures for the travel concierge.
package model

import (
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message represents one chat message. Messages are never modified after
// they are appended to a session.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// SendMessageRequest is the request to send a user turn.
type SendMessageRequest struct {
	Content string `json:"content"`
	// Language is the UI selection; empty means detect from content.
	Language string `json:"language,omitempty"`
}

// SendMessageResponse is the response after a completed turn.
type SendMessageResponse struct {
	SessionID string            `json:"session_id"`
	Reply     *Message          `json:"reply"`
	Language  string            `json:"language"`
	Intent    string            `json:"intent"`
	Entities  map[string]string `json:"entities,omitempty"`
}

// TokenEvent represents a streaming token event.
type TokenEvent struct {
	Token string `json:"token"`
	Index int    `json:"index"`
}

// MessageCompleteEvent is sent once a streamed reply has been stored.
type MessageCompleteEvent struct {
	SessionID string   `json:"session_id"`
	Message   *Message `json:"message"`
	Language  string   `json:"language"`
	Intent    string   `json:"intent"`
}

// ErrorEvent represents an error event.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
