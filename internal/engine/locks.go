package engine

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// lockTable hands out per-row mutual exclusion keyed by strings such as
// "doc:12" or "item:7". Entries are reference counted and removed when the
// last holder or waiter releases them.
//
// Keys must be acquired in ascending order. acquire sorts each batch; callers
// that acquire in several batches must keep later batches above earlier
// ones. docKey sorts before itemKey, so "documents first, then items" holds.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*rowLock
}

type rowLock struct {
	ch   chan struct{}
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*rowLock)}
}

func docKey(id int64) string  { return fmt.Sprintf("doc:%d", id) }
func itemKey(id int64) string { return fmt.Sprintf("item:%d", id) }

// acquire locks every key, waiting until each is free or ctx is done. The
// returned release func unlocks them in reverse order and is safe to call
// once. On error nothing is held.
func (t *lockTable) acquire(ctx context.Context, keys ...string) (func(), error) {
	keys = slices.Clone(keys)
	slices.Sort(keys)
	keys = slices.Compact(keys)

	held := make([]string, 0, len(keys))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			t.unlock(held[i])
		}
		held = held[:0]
	}

	for _, key := range keys {
		l := t.ref(key)
		select {
		case l.ch <- struct{}{}:
			held = append(held, key)
		case <-ctx.Done():
			t.unref(key)
			release()
			return nil, fmt.Errorf("acquire %s: %w", key, ctx.Err())
		}
	}
	return release, nil
}

func (t *lockTable) ref(key string) *rowLock {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.locks[key]
	if !ok {
		l = &rowLock{ch: make(chan struct{}, 1)}
		t.locks[key] = l
	}
	l.refs++
	return l
}

func (t *lockTable) unref(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	l := t.locks[key]
	l.refs--
	if l.refs == 0 {
		delete(t.locks, key)
	}
}

func (t *lockTable) unlock(key string) {
	t.mu.Lock()
	l := t.locks[key]
	t.mu.Unlock()
	<-l.ch
	t.unref(key)
}

// size reports how many keys are currently tracked. Used by tests.
func (t *lockTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}
