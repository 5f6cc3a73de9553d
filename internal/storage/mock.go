package storage

import (
	"context"
	"encoding/json"
	"sync"

	"veridia/pkg/session"
)

// MockStore is an in-memory Store for tests. Sessions round-trip through
// JSON so tests exercise the same serialization path as real stores.
type MockStore struct {
	mu    sync.Mutex
	slots map[string][]byte

	// SaveErr, when set, is returned from SaveSession.
	SaveErr error
}

var _ Store = (*MockStore)(nil)

func NewMockStore() *MockStore {
	return &MockStore{
		slots: make(map[string][]byte),
	}
}

func (m *MockStore) SaveSession(ctx context.Context, slot string, s *session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SaveErr != nil {
		return m.SaveErr
	}

	s.Version = session.SchemaVersion
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	m.slots[slot] = data
	return nil
}

func (m *MockStore) LoadSession(ctx context.Context, slot string) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.slots[slot]
	if !ok {
		return nil, ErrNotFound
	}
	return decodeSession(data)
}

func (m *MockStore) DeleteSession(ctx context.Context, slot string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.slots, slot)
	return nil
}

func (m *MockStore) Ping(ctx context.Context) error { return nil }
func (m *MockStore) Close() error                   { return nil }

// Corrupt overwrites a slot with unparseable data, for failure tests.
func (m *MockStore) Corrupt(slot string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[slot] = []byte("{not json")
}
