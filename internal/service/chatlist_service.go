package service

import (
	"sort"
	"sync"

	"arichat/internal/entity"
	"arichat/internal/nlog"
	"arichat/internal/store"
)

// NoMessagesYet is the preview shown for a session whose log is still
// empty. Such sessions carry timestamp 0 and therefore sort last.
const NoMessagesYet = "No messages yet"

// ChatListService aggregates a user's chat index with each session's
// latest message into one ordered list. Besides the index subscription it
// holds one live subscription per session's message log, so the preview
// refreshes on every new message, not only when the index itself changes.
type ChatListService struct {
	st     *store.Store
	logger nlog.Logger
}

func NewChatListService(st *store.Store, logger nlog.Logger) *ChatListService {
	return &ChatListService{st: st, logger: logger}
}

// sessionCache is the per-session state of one watch: the index entry
// plus the latest message seen on that session's log subscription.
type sessionCache struct {
	info     entity.ChatIndexEntry
	sub      *store.Subscription
	lastText string
	lastTS   int64
	hasMsg   bool
}

type logUpdate struct {
	sessionID string
	text      string
	ts        int64
	has       bool
}

// ChatListWatch streams the ordered chat list, conflated to the latest
// snapshot. All internal state is owned by the loop goroutine.
type ChatListWatch struct {
	svc      *ChatListService
	uid      string
	indexSub *store.Subscription

	updates chan logUpdate
	done    chan struct{}
	out     chan []entity.ChatListEntry

	order    []string
	sessions map[string]*sessionCache

	cancelOnce sync.Once
}

// Subscribe opens a live chat list for uid. Cancel tears down the index
// subscription and every per-session log subscription.
func (c *ChatListService) Subscribe(uid string) (*ChatListWatch, error) {
	indexSub, err := c.st.Subscribe(userChatsPath(uid))
	if err != nil {
		return nil, err
	}
	w := &ChatListWatch{
		svc:      c,
		uid:      uid,
		indexSub: indexSub,
		updates:  make(chan logUpdate, 16),
		done:     make(chan struct{}),
		out:      make(chan []entity.ChatListEntry, 1),
		sessions: map[string]*sessionCache{},
	}
	go w.loop()
	return w, nil
}

func (w *ChatListWatch) C() <-chan []entity.ChatListEntry {
	return w.out
}

func (w *ChatListWatch) Cancel() {
	w.cancelOnce.Do(func() {
		close(w.done)
		w.indexSub.Cancel()
	})
}

func (w *ChatListWatch) loop() {
	defer close(w.out)
	defer func() {
		for _, sc := range w.sessions {
			sc.sub.Cancel()
		}
	}()
	for {
		select {
		case snap, ok := <-w.indexSub.C():
			if !ok {
				return
			}
			w.applyIndex(snap.Value)
		case up := <-w.updates:
			sc, ok := w.sessions[up.sessionID]
			if !ok {
				continue
			}
			sc.lastText, sc.lastTS, sc.hasMsg = up.text, up.ts, up.has
		case <-w.done:
			return
		}
		w.emit()
	}
}

// applyIndex diffs the index snapshot against the held sessions: new
// sessions get a live log subscription, departed ones are torn down.
func (w *ChatListWatch) applyIndex(v any) {
	m := asMap(v)

	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		entry := decodeIndexEntry(m[id])
		if sc, ok := w.sessions[id]; ok {
			sc.info = entry
			continue
		}
		sub, err := w.svc.st.Subscribe(messagesPath(id))
		if err != nil {
			w.svc.logger.Logf("Log subscription for session %s failed {%v}", id, err)
			continue
		}
		w.sessions[id] = &sessionCache{info: entry, sub: sub}
		w.order = append(w.order, id)
		go w.pumpLog(id, sub)
	}

	for i := 0; i < len(w.order); {
		id := w.order[i]
		if _, still := m[id]; !still {
			w.sessions[id].sub.Cancel()
			delete(w.sessions, id)
			w.order = append(w.order[:i], w.order[i+1:]...)
			continue
		}
		i++
	}
}

func (w *ChatListWatch) pumpLog(sessionID string, sub *store.Subscription) {
	for snap := range sub.C() {
		text, ts, has := latestMessage(snap.Value)
		select {
		case w.updates <- logUpdate{sessionID: sessionID, text: text, ts: ts, has: has}:
		case <-w.done:
			return
		}
	}
}

// emit rebuilds the list in index-arrival order, then stable-sorts by
// descending last-message timestamp so ties keep that order.
func (w *ChatListWatch) emit() {
	entries := make([]entity.ChatListEntry, 0, len(w.order))
	for _, id := range w.order {
		sc := w.sessions[id]
		e := entity.ChatListEntry{
			SessionID:   id,
			PeerEmail:   sc.info.ChatWith,
			PeerName:    sc.info.Name,
			PeerUID:     sc.info.UID,
			LastMessage: NoMessagesYet,
		}
		if sc.hasMsg {
			e.LastMessage = sc.lastText
			e.Timestamp = sc.lastTS
		}
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp > entries[j].Timestamp
	})
	conflate(w.out, entries)
}

// latestMessage picks the highest message id of a log snapshot, which by
// push-id construction is the most recently appended one.
func latestMessage(v any) (text string, ts int64, has bool) {
	m := asMap(v)
	last := ""
	for id := range m {
		if id > last {
			last = id
		}
	}
	if last == "" {
		return "", 0, false
	}
	msg := decodeMessage(last, m[last])
	return msg.Text, msg.Timestamp, true
}
