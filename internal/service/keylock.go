package service

import (
	"bytes"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// keyedMutex hands out one mutex per product id. Entries are reference
// counted and dropped when the last holder unlocks, so the map only holds
// products with operations in flight.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[uuid.UUID]*refMutex)}
}

func (k *keyedMutex) lock(id uuid.UUID) {
	k.mu.Lock()
	m, ok := k.locks[id]
	if !ok {
		m = &refMutex{}
		k.locks[id] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
}

func (k *keyedMutex) unlock(id uuid.UUID) {
	k.mu.Lock()
	m := k.locks[id]
	m.refs--
	if m.refs == 0 {
		delete(k.locks, id)
	}
	k.mu.Unlock()

	m.Unlock()
}

// lockAll locks every id in ascending order (duplicates collapsed) and
// returns the matching unlock func. A fixed order keeps two multi-product
// callers from deadlocking each other.
func (k *keyedMutex) lockAll(ids []uuid.UUID) func() {
	ordered := sortedUnique(ids)
	for _, id := range ordered {
		k.lock(id)
	}
	return func() {
		for i := len(ordered) - 1; i >= 0; i-- {
			k.unlock(ordered[i])
		}
	}
}

func sortedUnique(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i][:], out[j][:]) < 0 })
	return out
}
