package service

import (
	"fmt"

	"arichat/internal/entity"
	"arichat/internal/nlog"
	"arichat/internal/store"
)

// PresenceService maintains the one online/offline record each user has
// under status/{uid}. Going online also pre-registers the offline fallback
// write with the store, so presence flips without any client code running
// when the connection drops.
type PresenceService struct {
	st     *store.Store
	logger nlog.Logger
}

func NewPresenceService(st *store.Store, logger nlog.Logger) *PresenceService {
	return &PresenceService{st: st, logger: logger}
}

// PresenceSession owns one activation: the online record plus its
// disconnect hook. Deactivate releases both deterministically, which is
// what a clean logout calls.
type PresenceSession struct {
	svc  *PresenceService
	uid  string
	hook *store.DisconnectHook
}

// Activate writes the online record and registers the offline fallback on
// conn. If the fallback registration itself fails the online record stays
// behind, a known limitation of the primitive: the caller is told, but the
// record is not rolled back.
func (p *PresenceService) Activate(conn *store.Conn, uid string) (*PresenceSession, error) {
	err := p.st.Set(statusPath(uid), map[string]any{
		"state":        entity.PresenceOnline,
		"last_changed": store.ServerTimestamp,
	})
	if err != nil {
		return nil, fmt.Errorf("Could not mark user %s online {%v}", uid, err)
	}

	hook, err := conn.OnDisconnectSet(statusPath(uid), map[string]any{
		"state":        entity.PresenceOffline,
		"last_changed": store.ServerTimestamp,
	})
	if err != nil {
		p.logger.Logf("Offline fallback for %s was not registered, user may appear perpetually online {%v}", uid, err)
		return nil, err
	}

	p.logger.Logf("User %s is online on connection %s", uid, conn.ID())
	return &PresenceSession{svc: p, uid: uid, hook: hook}, nil
}

// Deactivate writes the offline record explicitly and cancels the
// fallback registration.
func (ps *PresenceSession) Deactivate() error {
	ps.hook.Cancel()
	err := ps.svc.st.Set(statusPath(ps.uid), map[string]any{
		"state":        entity.PresenceOffline,
		"last_changed": store.ServerTimestamp,
	})
	if err != nil {
		return fmt.Errorf("Could not mark user %s offline {%v}", ps.uid, err)
	}
	ps.svc.logger.Logf("User %s went offline", ps.uid)
	return nil
}

// Get reads uid's presence once. An absent record reads as offline.
func (p *PresenceService) Get(uid string) (entity.PresenceRecord, error) {
	v, err := p.st.Get(statusPath(uid))
	if err != nil {
		return entity.PresenceRecord{}, err
	}
	if v == nil {
		return entity.PresenceRecord{State: entity.PresenceOffline}, nil
	}
	return decodePresence(v), nil
}

// PresenceWatch streams another user's live presence record. Deliveries
// conflate: a consumer always reads the latest state, never a stale one
// after a newer one.
type PresenceWatch struct {
	sub *store.Subscription
	out chan entity.PresenceRecord
}

// Observe subscribes to uid's presence. An absent record reads as
// offline.
func (p *PresenceService) Observe(uid string) (*PresenceWatch, error) {
	sub, err := p.st.Subscribe(statusPath(uid))
	if err != nil {
		return nil, err
	}
	w := &PresenceWatch{sub: sub, out: make(chan entity.PresenceRecord, 1)}
	go func() {
		for snap := range sub.C() {
			rec := entity.PresenceRecord{State: entity.PresenceOffline}
			if snap.Value != nil {
				rec = decodePresence(snap.Value)
			}
			conflate(w.out, rec)
		}
		close(w.out)
	}()
	return w, nil
}

func (w *PresenceWatch) C() <-chan entity.PresenceRecord {
	return w.out
}

func (w *PresenceWatch) Cancel() {
	w.sub.Cancel()
}
