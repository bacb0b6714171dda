package store

import "sync"

// Snapshot is one delivery of a subscription: the full subtree value at
// the subscribed path after a write affecting it.
type Snapshot struct {
	Path  string
	Value any
}

// Subscription is a live listener on one path. Deliveries preserve the
// order the store applied its writes in; the writer is never blocked by a
// slow consumer. Cancel must be called when the owning context is torn
// down, otherwise the pump goroutine leaks.
type Subscription struct {
	id    uint64
	st    *Store
	path  string
	parts []string

	mu    sync.Mutex
	queue []Snapshot
	wake  chan struct{}
	done  chan struct{}
	out   chan Snapshot

	cancelled bool
}

// Subscribe registers a listener at path. The subscription fires once with
// the current value, then after every write at, below or above the path.
func (s *Store) Subscribe(path string) (*Subscription, error) {
	parts, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	sub := &Subscription{
		st:    s,
		path:  joinPath(parts),
		parts: parts,
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
		out:   make(chan Snapshot),
	}

	s.mu.Lock()
	s.subSeq++
	sub.id = s.subSeq
	s.subs[sub.id] = sub
	sub.enqueue(Snapshot{Path: sub.path, Value: deepCopy(s.subtree(parts))})
	s.mu.Unlock()

	go sub.pump()
	return sub, nil
}

// C is the delivery channel. It is closed after Cancel.
func (sub *Subscription) C() <-chan Snapshot {
	return sub.out
}

func (sub *Subscription) Path() string {
	return sub.path
}

// Cancel detaches the subscription from the store and stops deliveries.
// Safe to call more than once.
func (sub *Subscription) Cancel() {
	sub.st.mu.Lock()
	delete(sub.st.subs, sub.id)
	sub.st.mu.Unlock()

	sub.mu.Lock()
	if !sub.cancelled {
		sub.cancelled = true
		close(sub.done)
	}
	sub.mu.Unlock()
}

func (sub *Subscription) affectedBy(writes []Write) bool {
	for _, w := range writes {
		parts, _ := splitPath(w.Path)
		if affects(sub.parts, parts) {
			return true
		}
	}
	return false
}

// enqueue appends a delivery. Called with the store lock held, so queue
// order is exactly store apply order.
func (sub *Subscription) enqueue(snap Snapshot) {
	sub.mu.Lock()
	sub.queue = append(sub.queue, snap)
	sub.mu.Unlock()
	select {
	case sub.wake <- struct{}{}:
	default:
	}
}

// pump drains the queue into the delivery channel without ever holding
// the store lock, so consumers can be arbitrarily slow.
func (sub *Subscription) pump() {
	defer close(sub.out)
	for {
		sub.mu.Lock()
		pending := sub.queue
		sub.queue = nil
		sub.mu.Unlock()

		for _, snap := range pending {
			select {
			case sub.out <- snap:
			case <-sub.done:
				return
			}
		}
		select {
		case <-sub.wake:
		case <-sub.done:
			return
		}
	}
}
