package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/capitalize-ai/travel-concierge/internal/model"
	"github.com/capitalize-ai/travel-concierge/pkg/metrics"
)

// ErrSessionNotFound is returned for ids the store never issued.
var ErrSessionNotFound = errors.New("session not found")

// idLayout gives second-resolution, sortable ids such as 20250114_093012.
const idLayout = "20060102_150405"

// PreviewLength is the number of runes shown in listings.
const PreviewLength = 30

// Store maps ids to sessions and tracks the active one. A Store always has
// at least one session and the active id always names one of them.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	order    []string
	activeID string
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now for id generation.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a store holding one empty, active session.
func NewStore(opts ...Option) *Store {
	s := &Store{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.Create()
	return s
}

// Create registers a fresh empty session, makes it active and returns its id.
func (s *Store) Create() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	base := now.Format(idLayout)
	id := base
	for n := 2; s.sessions[id] != nil; n++ {
		id = fmt.Sprintf("%s_%d", base, n)
	}

	s.sessions[id] = newSession(id, now)
	s.order = append(s.order, id)
	s.activeID = id

	metrics.SessionsCreatedTotal.Inc()

	return id
}

// Get returns the session with id.
func (s *Store) Get(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// Active returns the active session.
func (s *Store) Active() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[s.activeID]
}

// ActiveID returns the active session id.
func (s *Store) ActiveID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// SetActive switches the active session. Unknown ids leave it unchanged.
func (s *Store) SetActive(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.activeID = id
	return nil
}

// List returns the sessions that have messages, most recently created first.
func (s *Store) List() []model.SessionSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.SessionSummary, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		sess := s.sessions[s.order[i]]
		count := sess.Len()
		if count == 0 {
			continue
		}
		out = append(out, model.SessionSummary{
			ID:           sess.ID(),
			Preview:      sess.Preview(PreviewLength),
			MessageCount: count,
			Active:       sess.ID() == s.activeID,
			CreatedAt:    sess.CreatedAt(),
		})
	}
	return out
}

// Detail returns the session with its transcript.
func (s *Store) Detail(id string) (*model.SessionDetail, error) {
	sess, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	return &model.SessionDetail{
		ID:        sess.ID(),
		Active:    sess.ID() == s.ActiveID(),
		CreatedAt: sess.CreatedAt(),
		Messages:  sess.Messages(),
	}, nil
}
