package auth

import "sync"

// MemoryStore is an in-memory Store. It backs tests and embedded uses
// where credentials should not outlive the process.
type MemoryStore struct {
	mu    sync.RWMutex
	pair  TokenPair
	user  *User
	saved bool
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Save(pair TokenPair, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = pair
	s.saved = true
	if user != nil {
		u := *user
		s.user = &u
	}
	return nil
}

func (s *MemoryStore) Load() TokenPair {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.saved {
		return TokenPair{}
	}
	return s.pair
}

func (s *MemoryStore) LoadUser() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = TokenPair{}
	s.user = nil
	s.saved = false
}
