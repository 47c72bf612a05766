package model

import (
	"time"
)

// TranscriptEvent is published for every message stored in a session.
type TranscriptEvent struct {
	SessionID string    `json:"session_id"`
	Message   Message   `json:"message"`
	Language  string    `json:"language,omitempty"`
	Intent    string    `json:"intent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
