package service

import (
	"fmt"
	"sync"

	"arichat/internal/entity"
	"arichat/internal/nlog"
	"arichat/internal/store"
)

// ClientRegistry owns the live runtime of every signed-in user: the store
// connection, the presence session and any typing sessions. Sign-out (or
// process shutdown) releases everything deterministically instead of
// leaning on a global "current connection".
type ClientRegistry struct {
	st       *store.Store
	presence *PresenceService
	typing   *TypingService
	logger   nlog.Logger

	mu      sync.Mutex
	clients map[string]*ClientSession
}

type ClientSession struct {
	uid      string
	conn     *store.Conn
	presence *PresenceSession
	typing   map[string]*TypingSession // keyed by chat session id
}

func NewClientRegistry(st *store.Store, presence *PresenceService, typing *TypingService, logger nlog.Logger) *ClientRegistry {
	return &ClientRegistry{
		st:       st,
		presence: presence,
		typing:   typing,
		logger:   logger,
		clients:  map[string]*ClientSession{},
	}
}

// AuthStateChanged is the registry's auth-state listener; register it
// with the auth service at wiring time.
func (r *ClientRegistry) AuthStateChanged(user *entity.User, signedIn bool) {
	if signedIn {
		if err := r.signIn(user.UID); err != nil {
			r.logger.Logf("Runtime setup for %s failed {%v}", user.UID, err)
		}
		return
	}
	r.signOut(user.UID)
}

func (r *ClientRegistry) signIn(uid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.clients[uid]; ok {
		// already live: simultaneous connections share one presence
		// record, last writer wins
		return nil
	}

	conn := r.st.Connect()
	ps, err := r.presence.Activate(conn, uid)
	if err != nil {
		conn.Detach()
		return err
	}
	r.clients[uid] = &ClientSession{
		uid:      uid,
		conn:     conn,
		presence: ps,
		typing:   map[string]*TypingSession{},
	}
	return nil
}

func (r *ClientRegistry) signOut(uid string) {
	r.mu.Lock()
	cs, ok := r.clients[uid]
	delete(r.clients, uid)
	r.mu.Unlock()
	if !ok {
		return
	}
	cs.release(r.logger)
}

func (cs *ClientSession) release(logger nlog.Logger) {
	for id, ts := range cs.typing {
		if err := ts.Stop(); err != nil {
			logger.Logf("Typing teardown for %s/%s failed {%v}", id, cs.uid, err)
		}
	}
	if err := cs.presence.Deactivate(); err != nil {
		logger.Logf("Presence teardown for %s failed {%v}", cs.uid, err)
	}
	cs.conn.Detach()
}

// Typing returns (creating on first use) the user's typing session for a
// chat session.
func (r *ClientRegistry) Typing(uid, sessionID string) (*TypingSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cs, ok := r.clients[uid]
	if !ok {
		return nil, fmt.Errorf("User %s has no live runtime", uid)
	}
	if ts, ok := cs.typing[sessionID]; ok {
		return ts, nil
	}
	ts, err := r.typing.Attach(cs.conn, sessionID, uid)
	if err != nil {
		return nil, err
	}
	cs.typing[sessionID] = ts
	return ts, nil
}

// CloseAll releases every live client, for process shutdown.
func (r *ClientRegistry) CloseAll() {
	r.mu.Lock()
	clients := r.clients
	r.clients = map[string]*ClientSession{}
	r.mu.Unlock()
	for _, cs := range clients {
		cs.release(r.logger)
	}
}
