// Package shard provides a concurrency-safe map keyed by user or chat id.
//
// Keys are spread over a fixed number of shards, each with its own RWMutex, and
// every value sits behind its own mutex. Read-modify-write of one key never
// blocks work on keys that live in other entries, and the shard lock is only held
// for the map lookup itself.
package shard

import (
	"sync"
)

// DefaultShards is the shard count used when New is given n <= 0.
const DefaultShards = 32

// Map is a sharded map from int64 keys to values of type V.
// The zero value is not usable; create one with New.
type Map[V any] struct {
	shards []*bucket[V]
	mask   uint64
	init   func() V
}

type bucket[V any] struct {
	mu      sync.RWMutex
	entries map[int64]*entry[V]
}

type entry[V any] struct {
	mu      sync.Mutex
	value   V
	removed bool
}

// New creates a Map with n shards (rounded up to a power of two).
// init builds the value for a key seen for the first time; nil means the zero value.
func New[V any](n int, init func() V) *Map[V] {
	if n <= 0 {
		n = DefaultShards
	}
	size := 1
	for size < n {
		size <<= 1
	}

	m := &Map[V]{
		shards: make([]*bucket[V], size),
		mask:   uint64(size - 1),
		init:   init,
	}
	for i := range m.shards {
		m.shards[i] = &bucket[V]{entries: make(map[int64]*entry[V])}
	}
	return m
}

// shardFor spreads sequential ids with a Fibonacci hash.
func (m *Map[V]) shardFor(key int64) *bucket[V] {
	h := uint64(key) * 0x9E3779B97F4A7C15
	return m.shards[(h>>32)&m.mask]
}

func (m *Map[V]) getOrCreate(key int64) *entry[V] {
	b := m.shardFor(key)

	b.mu.RLock()
	e, ok := b.entries[key]
	b.mu.RUnlock()
	if ok {
		return e
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	// Double-check after acquiring write lock
	if e, ok = b.entries[key]; ok {
		return e
	}
	e = &entry[V]{}
	if m.init != nil {
		e.value = m.init()
	}
	b.entries[key] = e
	return e
}

// Update runs fn with exclusive access to key's value, creating it if needed.
// fn must not call back into the same Map for the same key.
func (m *Map[V]) Update(key int64, fn func(v *V)) {
	for {
		e := m.getOrCreate(key)
		e.mu.Lock()
		if e.removed {
			// Swept between lookup and lock; retry against the fresh entry.
			e.mu.Unlock()
			continue
		}
		fn(&e.value)
		e.mu.Unlock()
		return
	}
}

// Load returns a copy of key's value. The copy is shallow.
func (m *Map[V]) Load(key int64) (V, bool) {
	b := m.shardFor(key)

	b.mu.RLock()
	e, ok := b.entries[key]
	b.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return zero, false
	}
	return e.value, true
}

// Delete removes key.
func (m *Map[V]) Delete(key int64) {
	b := m.shardFor(key)

	b.mu.Lock()
	e, ok := b.entries[key]
	if ok {
		delete(b.entries, key)
	}
	b.mu.Unlock()

	if ok {
		e.mu.Lock()
		e.removed = true
		e.mu.Unlock()
	}
}

// SweepShard removes the entries sharing key's shard for which idle returns true.
// Entries currently locked by another caller are skipped. It returns the number
// of removed entries.
func (m *Map[V]) SweepShard(key int64, idle func(v *V) bool) int {
	return sweep(m.shardFor(key), idle)
}

// Sweep runs SweepShard over every shard.
func (m *Map[V]) Sweep(idle func(v *V) bool) int {
	removed := 0
	for _, b := range m.shards {
		removed += sweep(b, idle)
	}
	return removed
}

func sweep[V any](b *bucket[V], idle func(v *V) bool) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for key, e := range b.entries {
		if !e.mu.TryLock() {
			continue
		}
		if idle(&e.value) {
			e.removed = true
			delete(b.entries, key)
			removed++
		}
		e.mu.Unlock()
	}
	return removed
}

// Len returns the number of stored keys.
func (m *Map[V]) Len() int {
	n := 0
	for _, b := range m.shards {
		b.mu.RLock()
		n += len(b.entries)
		b.mu.RUnlock()
	}
	return n
}
