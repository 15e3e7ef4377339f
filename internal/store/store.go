package store

import (
	"context"
	"errors"

	"github.com/vmglabs/luncheon-roulette/internal/catalog"
	"github.com/vmglabs/luncheon-roulette/internal/model"
)

// ErrNotFound reports a session key with no stored session. At vote time
// this is a legitimate race with retention, not a failure.
var ErrNotFound = errors.New("session not found")

// ErrConflict reports a transaction that kept losing write conflicts after
// the backend's retry budget was spent.
var ErrConflict = errors.New("transaction conflict not resolved")

// Tx is one optimistic transaction scoped to a single session key. Get
// returns the attempt's fresh read; Set stages the transaction's single
// write. The body passed to RunTransaction may run several times, so it
// must be a pure function of Get's result plus read-only lookups.
type Tx interface {
	Get() (*model.PollSession, error)
	Set(s *model.PollSession)
}

// SessionStore is durable keyed storage for poll sessions.
//
// RunTransaction runs fn as an atomic read-modify-write on key. Write
// conflicts with concurrent transactions are detected by the backend and
// retried with a fresh read. It returns the session staged by the
// committed attempt, or nil when fn never called Set. An error returned by
// fn aborts the transaction, discards any staged write and is returned
// unwrapped.
type SessionStore interface {
	Get(ctx context.Context, key string) (*model.PollSession, error)
	Set(ctx context.Context, key string, s *model.PollSession) error
	RunTransaction(ctx context.Context, key string, fn func(tx Tx) error) (*model.PollSession, error)
}

// PoolStore persists the user-curated venue pool that the "add" flow grows
// and spins merge into the candidate pool. Last writer wins; the pool has
// no transactional needs.
type PoolStore interface {
	LoadPool(ctx context.Context) ([]catalog.Venue, error)
	SavePool(ctx context.Context, venues []catalog.Venue) error
}
