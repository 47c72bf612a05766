// Package session keeps chat threads and the active-thread pointer in memory.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/capitalize-ai/travel-concierge/internal/model"
)

// Session is one chat thread with an append-only history.
type Session struct {
	id        string
	createdAt time.Time

	mu       sync.RWMutex
	messages []model.Message

	// turn serializes whole conversation turns on this session.
	turn sync.Mutex
}

func newSession(id string, createdAt time.Time) *Session {
	return &Session{id: id, createdAt: createdAt}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// CreatedAt returns when the session was created.
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// Append stores a new message and returns it.
func (s *Session) Append(role model.Role, content string) model.Message {
	msg := model.Message{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()

	return msg
}

// Messages returns a copy of the history in order.
func (s *Session) Messages() []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of stored messages.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Preview returns the first n runes of the first message, or "" when empty.
func (s *Session) Preview(n int) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.messages) == 0 {
		return ""
	}
	runes := []rune(s.messages[0].Content)
	if len(runes) > n {
		runes = runes[:n]
	}
	return string(runes)
}

// LockTurn blocks until no other turn runs on this session. The returned
// func releases the lock.
func (s *Session) LockTurn() (unlock func()) {
	s.turn.Lock()
	return s.turn.Unlock
}
