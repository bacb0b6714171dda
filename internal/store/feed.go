package store

import "sync"

// Event is one applied write batch, as seen by a change feed. Writes of a
// multi-path update always travel in the same event.
type Event struct {
	Seq    uint64
	Writes []Write
}

// Feed is an ordered stream of every batch the store applies from the
// moment Watch was called. It backs the wire publisher.
type Feed struct {
	id uint64
	st *Store

	mu    sync.Mutex
	queue []Event
	wake  chan struct{}
	done  chan struct{}
	out   chan Event

	cancelled bool
}

// Watch opens a change feed over the whole store.
func (s *Store) Watch() *Feed {
	f := &Feed{
		st:   s,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
		out:  make(chan Event),
	}
	s.mu.Lock()
	s.feedSeq++
	f.id = s.feedSeq
	s.feeds[f.id] = f
	s.mu.Unlock()

	go f.pump()
	return f
}

// C is the delivery channel. It is closed after Cancel.
func (f *Feed) C() <-chan Event {
	return f.out
}

func (f *Feed) Cancel() {
	f.st.mu.Lock()
	delete(f.st.feeds, f.id)
	f.st.mu.Unlock()

	f.mu.Lock()
	if !f.cancelled {
		f.cancelled = true
		close(f.done)
	}
	f.mu.Unlock()
}

func (f *Feed) enqueue(ev Event) {
	f.mu.Lock()
	f.queue = append(f.queue, ev)
	f.mu.Unlock()
	select {
	case f.wake <- struct{}{}:
	default:
	}
}

func (f *Feed) pump() {
	defer close(f.out)
	for {
		f.mu.Lock()
		pending := f.queue
		f.queue = nil
		f.mu.Unlock()

		for _, ev := range pending {
			select {
			case f.out <- ev:
			case <-f.done:
				return
			}
		}
		select {
		case <-f.wake:
		case <-f.done:
			return
		}
	}
}
