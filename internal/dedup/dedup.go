// Package dedup suppresses duplicate deliveries of inbound events.
package dedup

import (
	"sync"
	"time"
)

// Inflight tracks event ids currently being handled by this process. It
// absorbs the near-duplicate redeliveries of an at-least-once transport
// within one process; it is not a durable dedup mechanism across processes
// or restarts.
//
// Entries are dropped after ttl even if End is never called, so a handler
// that dies mid-flight cannot leak its id forever and the set stays
// bounded by the event rate within one window.
type Inflight struct {
	mu  sync.Mutex
	ids map[string]time.Time
	ttl time.Duration
	now func() time.Time
}

// New builds an empty in-flight set with the given eviction window.
func New(ttl time.Duration) *Inflight {
	return &Inflight{
		ids: make(map[string]time.Time),
		ttl: ttl,
		now: time.Now,
	}
}

// TryBegin claims id for handling. It returns false when the id is already
// in flight; exactly one of two concurrent claims for the same id wins.
func (f *Inflight) TryBegin(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	f.sweep(now)

	if _, ok := f.ids[id]; ok {
		return false
	}
	f.ids[id] = now
	return true
}

// End releases id once handling completes, on success and failure alike.
func (f *Inflight) End(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.ids, id)
}

// Len reports the number of ids currently claimed.
func (f *Inflight) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ids)
}

// sweep drops expired entries. Caller holds the lock.
func (f *Inflight) sweep(now time.Time) {
	for id, began := range f.ids {
		if now.Sub(began) > f.ttl {
			delete(f.ids, id)
		}
	}
}
