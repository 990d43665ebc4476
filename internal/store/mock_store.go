package store

import (
	"errors"
	"sort"
	"sync"

	"github.com/sqlmerr/twotty/internal/models"
)

// MockStore simulates Cassandra operations for testing.
type MockStore struct {
	mu         sync.Mutex
	Activity   map[string][]models.Activity // by user id
	ShouldFail bool                         // simulate failures
}

// NewMock initializes a new mock store
func NewMock() *MockStore {
	return &MockStore{Activity: make(map[string][]models.Activity)}
}

func (m *MockStore) Close() {}

// RecordActivity upserts a by id, like the Cassandra primary key does.
func (m *MockStore) RecordActivity(a models.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errors.New("mock: record activity failed")
	}
	list := m.Activity[a.UserID]
	for i, existing := range list {
		if existing.ID == a.ID {
			list[i] = a
			return nil
		}
	}
	m.Activity[a.UserID] = append(list, a)
	return nil
}

// ListActivity returns the newest limit records of userID.
func (m *MockStore) ListActivity(userID string, limit int) ([]models.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return nil, errors.New("mock: list activity failed")
	}
	src := m.Activity[userID]
	res := make([]models.Activity, 0, len(src))
	for i := len(src) - 1; i >= 0; i-- {
		res = append(res, src[i])
	}
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].OccurredAt.After(res[j].OccurredAt)
	})
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

// Count returns the number of records stored for userID.
func (m *MockStore) Count(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Activity[userID])
}

// ---------------------------------------------
// MockStoreFail always returns errors for negative tests
type MockStoreFail struct{}

func (m *MockStoreFail) Close() {}

func (m *MockStoreFail) RecordActivity(a models.Activity) error {
	return errors.New("mock store record activity failed")
}

func (m *MockStoreFail) ListActivity(userID string, limit int) ([]models.Activity, error) {
	return nil, errors.New("mock store list activity failed")
}
