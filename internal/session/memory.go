package session

import (
	"context"
	"sync"
)

type memoryEntry struct {
	step   Step
	fields Fields
}

// MemoryStore is the default in-process Store. Sessions are lost on restart,
// which the session contract explicitly permits.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*memoryEntry
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*memoryEntry)}
}

func (s *MemoryStore) entry(user string) *memoryEntry {
	e, ok := s.sessions[user]
	if !ok {
		e = &memoryEntry{fields: make(Fields)}
		s.sessions[user] = e
	}
	return e
}

// SetStep records the user's current flow step.
func (s *MemoryStore) SetStep(ctx context.Context, user string, step Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entry(user).step = step
	return nil
}

// Step returns the user's current step, or StepNone.
func (s *MemoryStore) Step(ctx context.Context, user string) (Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.sessions[user]; ok {
		return e.step, nil
	}
	return StepNone, nil
}

// Merge folds the given fields into the user's accumulated bag.
func (s *MemoryStore) Merge(ctx context.Context, user string, fields Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(user)
	for k, v := range fields {
		e.fields[k] = v
	}
	return nil
}

// GetFields returns a copy of the user's accumulated fields.
func (s *MemoryStore) GetFields(ctx context.Context, user string) (Fields, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(Fields)
	if e, ok := s.sessions[user]; ok {
		for k, v := range e.fields {
			out[k] = v
		}
	}
	return out, nil
}

// Clear removes the user's step and all accumulated fields.
func (s *MemoryStore) Clear(ctx context.Context, user string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, user)
	return nil
}
