package service

import (
	"fmt"
	"sort"
	"strings"

	"arichat/internal/entity"
	"arichat/internal/nlog"
	"arichat/internal/store"
)

// StreamService is the append-only per-session message log. Messages are
// identified by store push ids, so log order and lexicographic id order
// coincide; consumers must render in that order, never by timestamp,
// since clock skew across clients must not reorder the log.
type StreamService struct {
	st     *store.Store
	logger nlog.Logger
}

func NewStreamService(st *store.Store, logger nlog.Logger) *StreamService {
	return &StreamService{st: st, logger: logger}
}

// Send appends a message. Empty or whitespace-only text is a silent
// no-op: nothing is written and no subscriber fires.
func (s *StreamService) Send(sessionID, senderID, senderEmail, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	id := s.st.PushID()
	err := s.st.Set(messagePath(sessionID, id), map[string]any{
		"text":        text,
		"sender":      senderID,
		"senderEmail": senderEmail,
		"timestamp":   s.st.Now(),
	})
	if err != nil {
		s.logger.Logf("Send on session %s failed {%v}", sessionID, err)
		return fmt.Errorf("Could not send the message {%v}", err)
	}
	return nil
}

// Log reads the session's messages once, in log order.
func (s *StreamService) Log(sessionID string) ([]entity.Message, error) {
	v, err := s.st.Get(messagesPath(sessionID))
	if err != nil {
		return nil, err
	}
	return decodeLog(v), nil
}

// StreamWatch streams the full ordered log after every append, conflated
// to the latest snapshot.
type StreamWatch struct {
	sub *store.Subscription
	out chan []entity.Message
}

func (s *StreamService) Subscribe(sessionID string) (*StreamWatch, error) {
	sub, err := s.st.Subscribe(messagesPath(sessionID))
	if err != nil {
		return nil, err
	}
	w := &StreamWatch{sub: sub, out: make(chan []entity.Message, 1)}
	go func() {
		for snap := range sub.C() {
			conflate(w.out, decodeLog(snap.Value))
		}
		close(w.out)
	}()
	return w, nil
}

func (w *StreamWatch) C() <-chan []entity.Message {
	return w.out
}

func (w *StreamWatch) Cancel() {
	w.sub.Cancel()
}

func decodeLog(v any) []entity.Message {
	m := asMap(v)
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]entity.Message, 0, len(ids))
	for _, id := range ids {
		out = append(out, decodeMessage(id, m[id]))
	}
	return out
}
