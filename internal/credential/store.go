// Package credential holds the single access-token slot of a browser session.
//
// A Store is created per incoming request and passed explicitly to the API
// client and the page orchestrators; nothing reaches the cookie jar through
// package state.
package credential

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// Store is one persisted credential slot.
type Store interface {
	Get() (string, bool)
	Set(token string)
	Delete()
}

// Fingerprint derives a stable, non-reversible key for a token. It identifies
// the browser session in caches without storing the token itself.
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// MemoryStore is a Store kept in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	token   string
	present bool
	deletes int
}

// NewMemoryStore returns a store holding token, or an empty store when token
// is empty.
func NewMemoryStore(token string) *MemoryStore {
	return &MemoryStore{token: token, present: token != ""}
}

func (m *MemoryStore) Get() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, m.present
}

func (m *MemoryStore) Set(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	m.present = token != ""
}

func (m *MemoryStore) Delete() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	m.present = false
	m.deletes++
}

// Deletes reports how many times Delete was called.
func (m *MemoryStore) Deletes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deletes
}
