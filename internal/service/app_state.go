package service

import (
	"sync"

	"github.com/noah-isme/prhi-portal-api/internal/models"
)

// AppState holds the portal's current identity.
type AppState struct {
	mu        sync.RWMutex
	user      *models.User
	nextID    int
	observers map[int]func(*models.User)
}

// NewAppState returns an empty state with nobody signed in.
func NewAppState() *AppState {
	return &AppState{observers: make(map[int]func(*models.User))}
}

// CurrentUser returns a copy of the identity.
func (s *AppState) CurrentUser() (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return models.User{}, false
	}
	return s.user.Clone(), true
}

// SetUser replaces the identity and notifies observers.
func (s *AppState) SetUser(user models.User) {
	clone := user.Clone()
	s.mu.Lock()
	s.user = &clone
	observers := s.snapshotObservers()
	s.mu.Unlock()
	for _, fn := range observers {
		u := clone.Clone()
		fn(&u)
	}
}

// Clear drops the identity.
func (s *AppState) Clear() {
	s.mu.Lock()
	had := s.user != nil
	s.user = nil
	observers := s.snapshotObservers()
	s.mu.Unlock()
	if !had {
		return
	}
	for _, fn := range observers {
		fn(nil)
	}
}

// Observe registers fn for identity changes; nil means signed out.
func (s *AppState) Observe(fn func(*models.User)) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.observers[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

func (s *AppState) snapshotObservers() []func(*models.User) {
	out := make([]func(*models.User), 0, len(s.observers))
	for _, fn := range s.observers {
		out = append(out, fn)
	}
	return out
}
