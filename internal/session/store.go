// Package session holds per-session conversational memory for the process
// lifetime. Histories are keyed by (user, conversation) and are never
// pruned; persistence across restarts is out of scope.
package session

import (
	"sync"

	"kb-chatbot/internal/domain"
)

// Key identifies one conversational thread.
type Key struct {
	UserID         string
	ConversationID string
}

// Turn is one completed exchange.
type Turn struct {
	Human     string
	Assistant string
}

// History is the ordered transcript for one Key. Appends for the same key
// are serialized by the history's own mutex, so concurrent turns on one
// session cannot interleave or lose writes.
type History struct {
	mu    sync.Mutex
	turns []Turn
}

// Append records a completed exchange.
func (h *History) Append(human, assistant string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, Turn{Human: human, Assistant: assistant})
}

// Turns returns a snapshot copy of the transcript in insertion order.
func (h *History) Turns() []Turn {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Len reports the number of recorded turns.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.turns)
}

// Messages renders the transcript as alternating user/assistant messages,
// preserving conversational role boundaries for prompt assembly.
func (h *History) Messages() []domain.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	msgs := make([]domain.Message, 0, len(h.turns)*2)
	for _, t := range h.turns {
		msgs = append(msgs,
			domain.Message{Role: domain.RoleUser, Content: t.Human},
			domain.Message{Role: domain.RoleAssistant, Content: t.Assistant},
		)
	}
	return msgs
}

// Store maps session keys to histories. Safe for concurrent use from
// multiple simultaneous chat sessions; different keys are fully
// independent. Growth is unbounded, a known limitation.
type Store struct {
	mu        sync.RWMutex
	histories map[Key]*History
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{histories: make(map[Key]*History)}
}

// GetOrCreate returns the history for key, creating an empty one on first
// reference. Repeat calls with the same key return the same instance.
func (s *Store) GetOrCreate(key Key) *History {
	s.mu.RLock()
	h, ok := s.histories[key]
	s.mu.RUnlock()
	if ok {
		return h
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.histories[key]; ok {
		return h
	}
	h = &History{}
	s.histories[key] = h
	return h
}

// Append records a completed exchange for key, creating the history if
// needed.
func (s *Store) Append(key Key, human, assistant string) {
	s.GetOrCreate(key).Append(human, assistant)
}

// Len reports how many sessions have been created.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.histories)
}
