// Package testutil holds shared fakes for package tests.
package testutil

import (
	"context"
	"sync"

	"github.com/frudas24/quadpin/internal/calib"
)

// MemoryStore is an in-memory calib.Store.
type MemoryStore struct {
	mu      sync.Mutex
	data    map[string]calib.Points
	saves   []calib.Points
	LoadErr error
	SaveErr error
	closed  bool
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]calib.Points{}}
}

// Put seeds a document without counting it as a save.
func (s *MemoryStore) Put(key string, p calib.Points) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = p
}

// Load implements calib.Store.
func (s *MemoryStore) Load(_ context.Context, key string) (calib.Points, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.LoadErr != nil {
		return calib.Points{}, false, s.LoadErr
	}
	p, ok := s.data[key]
	return p, ok, nil
}

// Save implements calib.Store.
func (s *MemoryStore) Save(_ context.Context, key string, p calib.Points) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.data[key] = p
	s.saves = append(s.saves, p)
	return nil
}

// Delete implements calib.Store.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// Close implements calib.Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Saves returns every saved document in order.
func (s *MemoryStore) Saves() []calib.Points {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]calib.Points(nil), s.saves...)
}

// Closed reports whether Close was called.
func (s *MemoryStore) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
