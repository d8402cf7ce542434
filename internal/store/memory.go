// ABOUTME: In-memory HistoryStore used when no database path is configured
// ABOUTME: Keeps per-user exchanges in a mutex-guarded map; contents are lost on restart

package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory HistoryStore implementation.
type MemoryStore struct {
	mu        sync.RWMutex
	exchanges map[string][]*Exchange // keyed by username
}

// NewMemoryStore creates a new MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		exchanges: make(map[string][]*Exchange),
	}
}

// AppendExchange stores a copy of e.
func (m *MemoryStore) AppendExchange(_ context.Context, e *Exchange) error {
	if e.Username == "" {
		return ErrInvalidExchange
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Make a copy to avoid external modification
	c := *e
	m.exchanges[e.Username] = append(m.exchanges[e.Username], &c)
	return nil
}

// ListExchanges returns copies of the user's exchanges, oldest first.
func (m *MemoryStore) ListExchanges(_ context.Context, username string, limit int) ([]*Exchange, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := m.exchanges[username]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}

	out := make([]*Exchange, len(all))
	for i, e := range all {
		c := *e
		out[i] = &c
	}
	return out, nil
}

// ClearExchanges drops the user's history.
func (m *MemoryStore) ClearExchanges(_ context.Context, username string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := int64(len(m.exchanges[username]))
	delete(m.exchanges, username)
	return n, nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}
