// Package store implements the hierarchical key-value store the chat
// client runs against: point reads and writes, atomic multi-path updates,
// per-path ordered subscriptions, per-connection disconnect hooks and
// lexicographically monotonic push ids for append-only logs.
//
// Values are JSON-shaped trees (map[string]any, []any, string, bool and
// numbers). Writing nil deletes a subtree; empty maps collapse to nil.
package store

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// ServerTimestamp is a sentinel value: wherever it appears inside a
// written value it is replaced with the store clock's unix-millisecond
// time at the moment the write is applied.
var ServerTimestamp any = serverTimestamp{}

type serverTimestamp struct{}

// Write is one path assignment of a batch. A nil Value deletes the
// subtree at Path.
type Write struct {
	Path  string
	Value any
}

// Persister is the durability hook of the store. Apply must be atomic:
// either the whole batch is persisted or none of it.
type Persister interface {
	Load() ([]Write, error)
	Apply(writes []Write) error
}

type Store struct {
	mu   sync.RWMutex
	root map[string]any
	seq  uint64

	clock     func() time.Time
	persister Persister

	subSeq uint64
	subs   map[uint64]*Subscription

	feedSeq uint64
	feeds   map[uint64]*Feed

	push pushGenerator
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		root:  map[string]any{},
		clock: time.Now,
		subs:  map[uint64]*Subscription{},
		feeds: map[uint64]*Feed{},
	}
}

// Open creates a store whose writes go through p, replaying p's persisted
// leaves into the in-memory tree first.
func Open(p Persister) (*Store, error) {
	s := New()
	s.persister = p
	leaves, err := p.Load()
	if err != nil {
		return nil, fmt.Errorf("Loading the persisted tree failed {%v}", err)
	}
	for _, w := range leaves {
		parts, err := splitPath(w.Path)
		if err != nil {
			return nil, err
		}
		s.setSubtree(parts, w.Value)
	}
	return s, nil
}

// SetClock replaces the store clock. Meant for tests; not safe to call
// once the store is in use.
func (s *Store) SetClock(clock func() time.Time) {
	s.clock = clock
}

// Get returns a deep-copied snapshot of the subtree at path, nil when the
// path holds no data.
func (s *Store) Get(path string) (any, error) {
	parts, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return deepCopy(s.subtree(parts)), nil
}

// Set replaces the subtree at path with value.
func (s *Store) Set(path string, value any) error {
	return s.apply([]Write{{Path: path, Value: value}})
}

// Delete removes the subtree at path.
func (s *Store) Delete(path string) error {
	return s.apply([]Write{{Path: path, Value: nil}})
}

// Update applies every path assignment of updates as one atomic batch: no
// subscriber or store reader ever observes a strict subset of it. This is
// the primitive the session bootstrap relies on.
func (s *Store) Update(updates map[string]any) error {
	paths := make([]string, 0, len(updates))
	for p := range updates {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	writes := make([]Write, 0, len(paths))
	for _, p := range paths {
		writes = append(writes, Write{Path: p, Value: updates[p]})
	}
	return s.apply(writes)
}

// PushID allocates a chronologically ordered child id for an append-only
// log. Ids sort lexicographically in allocation order.
func (s *Store) PushID() string {
	return s.push.next(s.clock().UnixMilli())
}

// Now exposes the store clock's unix-millisecond time, the same time base
// ServerTimestamp resolves against.
func (s *Store) Now() int64 {
	return s.clock().UnixMilli()
}

// apply is the single mutation path of the store. It resolves the batch,
// persists it, mutates the tree and dispatches to subscribers and feeds,
// all under one lock, which is what makes Update atomic for observers.
func (s *Store) apply(writes []Write) error {
	if len(writes) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock().UnixMilli()
	norm := make([]Write, 0, len(writes))
	for _, w := range writes {
		parts, err := splitPath(w.Path)
		if err != nil {
			return err
		}
		norm = append(norm, Write{Path: joinPath(parts), Value: resolveValue(w.Value, now)})
	}

	if s.persister != nil {
		if err := s.persister.Apply(norm); err != nil {
			return fmt.Errorf("Persisting the write batch failed {%v}", err)
		}
	}

	for _, w := range norm {
		parts, _ := splitPath(w.Path)
		s.setSubtree(parts, deepCopy(w.Value))
	}
	s.seq++

	for _, sub := range s.subs {
		if sub.affectedBy(norm) {
			sub.enqueue(Snapshot{Path: sub.path, Value: deepCopy(s.subtree(sub.parts))})
		}
	}
	if len(s.feeds) > 0 {
		for _, f := range s.feeds {
			f.enqueue(Event{Seq: s.seq, Writes: copyWrites(norm)})
		}
	}
	return nil
}

func copyWrites(writes []Write) []Write {
	out := make([]Write, len(writes))
	for i, w := range writes {
		out[i] = Write{Path: w.Path, Value: deepCopy(w.Value)}
	}
	return out
}

// subtree walks the tree without copying. Caller holds the lock.
func (s *Store) subtree(parts []string) any {
	var cur any = s.root
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[p]
	}
	return cur
}

// setSubtree replaces the subtree at parts with value, creating interior
// maps on the way down and pruning emptied ancestors on deletion. Caller
// holds the lock.
func (s *Store) setSubtree(parts []string, value any) {
	if len(parts) == 0 {
		m, ok := value.(map[string]any)
		if !ok {
			m = map[string]any{}
		}
		s.root = m
		return
	}
	maps := make([]map[string]any, 0, len(parts))
	cur := s.root
	for _, p := range parts[:len(parts)-1] {
		maps = append(maps, cur)
		next, ok := cur[p].(map[string]any)
		if !ok {
			if value == nil {
				return // nothing to delete
			}
			next = map[string]any{}
			cur[p] = next
		}
		cur = next
	}
	maps = append(maps, cur)

	last := parts[len(parts)-1]
	if value == nil {
		delete(cur, last)
		// prune now-empty interior nodes bottom up
		for i := len(maps) - 1; i > 0; i-- {
			if len(maps[i]) > 0 {
				break
			}
			delete(maps[i-1], parts[i-1])
		}
		return
	}
	cur[last] = value
}
