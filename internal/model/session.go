package model

import (
	"time"
)

// SessionSummary is one entry of the session switcher.
type SessionSummary struct {
	ID           string    `json:"id"`
	Preview      string    `json:"preview"`
	MessageCount int       `json:"message_count"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// SessionDetail is a session with its transcript.
type SessionDetail struct {
	ID        string    `json:"id"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	Messages  []Message `json:"messages"`
}

// ListSessionsResponse is the response for listing sessions.
type ListSessionsResponse struct {
	Sessions []SessionSummary `json:"sessions"`
	ActiveID string           `json:"active_id"`
}

// SetActiveRequest switches the active session.
type SetActiveRequest struct {
	ID string `json:"id"`
}
