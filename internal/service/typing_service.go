package service

import (
	"sync"
	"time"

	"arichat/internal/nlog"
	"arichat/internal/store"
)

// DefaultTypingDebounce is the quiet period after the last edit before
// the typing flag clears. Writing on every keystroke buys near-zero
// latency feedback; the 2s window keeps the write volume sane.
const DefaultTypingDebounce = 2000 * time.Millisecond

// TypingService maintains the transient typing flag under
// typing/{sessionId}/{uid} with reset-on-activity debounce.
type TypingService struct {
	st       *store.Store
	logger   nlog.Logger
	debounce time.Duration
}

func NewTypingService(st *store.Store, logger nlog.Logger) *TypingService {
	return &TypingService{st: st, logger: logger, debounce: DefaultTypingDebounce}
}

// SetDebounce overrides the quiet window. Meant for tests and tuning;
// call before handing out sessions.
func (t *TypingService) SetDebounce(d time.Duration) {
	t.debounce = d
}

// TypingSession is one user's composer attached to one chat session.
type TypingSession struct {
	svc       *TypingService
	sessionID string
	uid       string
	hook      *store.DisconnectHook

	mu      sync.Mutex
	timer   *time.Timer
	edits   uint64
	stopped bool
}

// Attach binds uid's composer to a session. Mirroring the presence
// pattern, a fallback write clearing the flag is registered on conn, so
// typing can not stick at true forever when the client vanishes mid-word.
func (t *TypingService) Attach(conn *store.Conn, sessionID, uid string) (*TypingSession, error) {
	hook, err := conn.OnDisconnectSet(typingPath(sessionID, uid), false)
	if err != nil {
		return nil, err
	}
	return &TypingSession{svc: t, sessionID: sessionID, uid: uid, hook: hook}, nil
}

// OnEdit marks the user as typing and restarts (not accumulates) the
// debounce timer; the flag clears only after a full quiet window.
//
// The mutex is held across the store write here and in expire and Stop,
// so once Stop has cleared the flag no straggling edit can set it back
// with nothing left to clear it.
func (ts *TypingSession) OnEdit() error {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.stopped {
		return nil
	}

	if err := ts.svc.st.Set(typingPath(ts.sessionID, ts.uid), true); err != nil {
		ts.svc.logger.Logf("Typing write for %s/%s failed {%v}", ts.sessionID, ts.uid, err)
		return err
	}
	if ts.timer != nil {
		ts.timer.Stop()
	}
	ts.edits++
	gen := ts.edits
	ts.timer = time.AfterFunc(ts.svc.debounce, func() { ts.expire(gen) })
	return nil
}

// expire clears the flag unless a newer edit re-armed the window while
// this timer was already in flight.
func (ts *TypingSession) expire(gen uint64) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.stopped || ts.edits != gen {
		return
	}
	if err := ts.svc.st.Set(typingPath(ts.sessionID, ts.uid), false); err != nil {
		ts.svc.logger.Logf("Typing expiry write for %s/%s failed {%v}", ts.sessionID, ts.uid, err)
	}
}

// Stop detaches the composer: clears the flag, kills the timer and
// releases the disconnect hook. Stop has the final word on the flag.
func (ts *TypingSession) Stop() error {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.stopped {
		return nil
	}
	ts.stopped = true
	if ts.timer != nil {
		ts.timer.Stop()
	}
	ts.hook.Cancel()
	return ts.svc.st.Set(typingPath(ts.sessionID, ts.uid), false)
}

// Peek reads peerID's typing flag once.
func (t *TypingService) Peek(sessionID, peerID string) (bool, error) {
	v, err := t.st.Get(typingPath(sessionID, peerID))
	if err != nil {
		return false, err
	}
	return asBool(v), nil
}

// TypingWatch streams the peer's typing flag, conflated to the latest
// value.
type TypingWatch struct {
	sub *store.Subscription
	out chan bool
}

// Observe subscribes to peerID's typing flag in a session.
func (t *TypingService) Observe(sessionID, peerID string) (*TypingWatch, error) {
	sub, err := t.st.Subscribe(typingPath(sessionID, peerID))
	if err != nil {
		return nil, err
	}
	w := &TypingWatch{sub: sub, out: make(chan bool, 1)}
	go func() {
		for snap := range sub.C() {
			conflate(w.out, asBool(snap.Value))
		}
		close(w.out)
	}()
	return w, nil
}

func (w *TypingWatch) C() <-chan bool {
	return w.out
}

func (w *TypingWatch) Cancel() {
	w.sub.Cancel()
}
