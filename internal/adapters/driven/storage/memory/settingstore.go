package memory

import (
	"sort"
	"sync"

	"github.com/hearthvtt/hearth-cli/internal/core/ports/driven"
)

// Ensure SettingStore implements the interface.
var _ driven.ClientSettingStore = (*SettingStore)(nil)

// SettingStore is an in-memory implementation of driven.ClientSettingStore
// for testing.
type SettingStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewSettingStore creates a new in-memory setting store.
func NewSettingStore() *SettingStore {
	return &SettingStore{values: make(map[string]string)}
}

// Get retrieves the JSON-encoded value for key.
func (s *SettingStore) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

// Set stores the JSON-encoded value for key.
func (s *SettingStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// Delete removes the key.
func (s *SettingStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// Keys lists every stored key, sorted.
func (s *SettingStore) Keys() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Close releases the store (no-op for memory store).
func (s *SettingStore) Close() error {
	return nil
}
