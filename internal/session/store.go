package session

import "sync"

// DefaultMaxTurns caps per-session history at roughly twelve exchanges.
const DefaultMaxTurns = 24

// Roles for conversation turns.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is a single conversation entry.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Store keeps bounded per-session conversation history for the process
// lifetime. It is created once at startup and passed into request handlers;
// it is safe for concurrent use, though concurrent appends to the same
// session are not ordered relative to each other.
type Store struct {
	mu       sync.Mutex
	maxTurns int
	sessions map[string][]Turn
}

// NewStore builds an empty history store. Non-positive maxTurns falls back to
// DefaultMaxTurns.
func NewStore(maxTurns int) *Store {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &Store{
		maxTurns: maxTurns,
		sessions: make(map[string][]Turn),
	}
}

// Append records a turn for the session, evicting the oldest entries beyond
// the cap. Empty session ids are ignored so anonymous requests stay stateless.
func (s *Store) Append(sessionID, role, content string) {
	if sessionID == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	turns := append(s.sessions[sessionID], Turn{Role: role, Content: content})
	if overflow := len(turns) - s.maxTurns; overflow > 0 {
		turns = turns[overflow:]
	}
	s.sessions[sessionID] = turns
}

// History returns a copy of the session's turns, oldest first.
func (s *Store) History(sessionID string) []Turn {
	if sessionID == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	turns := s.sessions[sessionID]
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

// Len reports the stored turn count for the session.
func (s *Store) Len(sessionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions[sessionID])
}

// Reset drops the session's history.
func (s *Store) Reset(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}
