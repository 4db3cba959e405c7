package checkout

import (
	"context"
	"sync"
	"time"
)

// guard remembers checkout results per customer and idempotency key. A
// concurrent repeat waits for the first attempt to finish.
type guard struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]*guardEntry
}

type guardEntry struct {
	done    chan struct{}
	result  *Result
	expires time.Time
}

func newGuard(ttl time.Duration, now func() time.Time) *guard {
	return &guard{ttl: ttl, now: now, entries: make(map[string]*guardEntry)}
}

// acquire returns either a prior result for key or a release func the caller
// must invoke with its own result (nil on failure, which frees the key).
// Waiting for a concurrent attempt stops when ctx is done.
func (g *guard) acquire(ctx context.Context, owner, key string) (func(*Result), *Result, error) {
	key = owner + "\x00" + key
	for {
		g.mu.Lock()
		g.sweep()
		e, ok := g.entries[key]
		if !ok {
			e = &guardEntry{done: make(chan struct{})}
			g.entries[key] = e
			g.mu.Unlock()
			return g.releaser(key, e), nil, nil
		}
		g.mu.Unlock()

		select {
		case <-e.done:
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
		if e.result != nil {
			return nil, e.result, nil
		}
		// The first attempt failed and freed the key; try to take it.
	}
}

func (g *guard) releaser(key string, e *guardEntry) func(*Result) {
	return func(res *Result) {
		g.mu.Lock()
		defer g.mu.Unlock()
		if res == nil {
			delete(g.entries, key)
		} else {
			e.result = res
			e.expires = g.now().Add(g.ttl)
		}
		close(e.done)
	}
}

func (g *guard) sweep() {
	now := g.now()
	for k, e := range g.entries {
		if e.result != nil && now.After(e.expires) {
			delete(g.entries, k)
		}
	}
}
