package store

import (
	"context"
	"sync"

	"github.com/vmglabs/luncheon-roulette/internal/catalog"
	"github.com/vmglabs/luncheon-roulette/internal/model"
)

const memoryTxAttempts = 64

type memoryEntry struct {
	session *model.PollSession
	version uint64
}

// MemoryStore is an in-process SessionStore and PoolStore with the same
// optimistic-transaction semantics as the durable backends: each attempt
// reads a versioned snapshot, and a commit only lands if the version is
// still current.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]memoryEntry
	pool     []catalog.Venue

	// CommitHook, when set, runs between a transaction body finishing and
	// its commit check. Tests use it to slip in conflicting writes and
	// force retries.
	CommitHook func(key string, attempt int)
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]memoryEntry)}
}

// Get returns a copy of the stored session.
func (m *MemoryStore) Get(_ context.Context, key string) (*model.PollSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[key]
	if !ok {
		return nil, ErrNotFound
	}
	return e.session.Clone(), nil
}

// Set stores a copy of the session, bumping the key's version.
func (m *MemoryStore) Set(_ context.Context, key string, s *model.PollSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[key] = memoryEntry{session: s.Clone(), version: m.sessions[key].version + 1}
	return nil
}

type memoryTx struct {
	snapshot *model.PollSession
	staged   *model.PollSession
	dirty    bool
}

func (t *memoryTx) Get() (*model.PollSession, error) {
	if t.snapshot == nil {
		return nil, ErrNotFound
	}
	return t.snapshot, nil
}

func (t *memoryTx) Set(s *model.PollSession) {
	t.staged = s
	t.dirty = true
}

// RunTransaction implements the optimistic read-modify-write contract.
func (m *MemoryStore) RunTransaction(_ context.Context, key string, fn func(tx Tx) error) (*model.PollSession, error) {
	for attempt := 0; attempt < memoryTxAttempts; attempt++ {
		m.mu.Lock()
		e, ok := m.sessions[key]
		var snapshot *model.PollSession
		var version uint64
		if ok {
			snapshot = e.session.Clone()
			version = e.version
		}
		m.mu.Unlock()

		tx := &memoryTx{snapshot: snapshot}
		if err := fn(tx); err != nil {
			return nil, err
		}

		if m.CommitHook != nil {
			m.CommitHook(key, attempt)
		}

		m.mu.Lock()
		if m.sessions[key].version != version {
			m.mu.Unlock()
			continue
		}
		if tx.dirty {
			m.sessions[key] = memoryEntry{session: tx.staged.Clone(), version: version + 1}
		}
		m.mu.Unlock()
		return tx.staged, nil
	}
	return nil, ErrConflict
}

// LoadPool returns a copy of the venue pool.
func (m *MemoryStore) LoadPool(_ context.Context) ([]catalog.Venue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]catalog.Venue, len(m.pool))
	copy(out, m.pool)
	return out, nil
}

// SavePool replaces the venue pool.
func (m *MemoryStore) SavePool(_ context.Context, venues []catalog.Venue) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pool = make([]catalog.Venue, len(venues))
	copy(m.pool, venues)
	return nil
}
