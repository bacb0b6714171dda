package service

import (
	"errors"
	"fmt"
	"strings"

	"arichat/internal/entity"
	"arichat/internal/nlog"
	"arichat/internal/store"
)

// ErrSelfSession is returned when both sides of a session would be the
// same user.
var ErrSelfSession = errors.New("A user can not open a chat session with itself")

// CanonicalPair derives the session id for an unordered pair of user ids:
// the lexicographically smaller id first, joined with "_". Both users
// compute the same id no matter who initiates contact.
func CanonicalPair(a, b string) (string, error) {
	if a == "" || b == "" {
		return "", fmt.Errorf("Both user ids are required to form a session id {%q, %q}", a, b)
	}
	if a == b {
		return "", ErrSelfSession
	}
	if a < b {
		return a + "_" + b, nil
	}
	return b + "_" + a, nil
}

// PeerOf extracts the other participant's uid from a session id.
func PeerOf(sessionID, selfUID string) (string, error) {
	parts := strings.SplitN(sessionID, "_", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", fmt.Errorf("Malformed session id {%s}", sessionID)
	}
	switch selfUID {
	case parts[0]:
		return parts[1], nil
	case parts[1]:
		return parts[0], nil
	}
	return "", fmt.Errorf("User %s is not a participant of session %s", selfUID, sessionID)
}

// SessionService owns chat session identity and the atomic bootstrap of a
// new session.
type SessionService struct {
	st     *store.Store
	logger nlog.Logger
}

func NewSessionService(st *store.Store, logger nlog.Logger) *SessionService {
	return &SessionService{st: st, logger: logger}
}

// Bootstrap materializes the session for self and peer in one atomic
// multi-path write: both chat index entries and both participant markers
// together, so neither side can ever observe a half-created session. The
// write is idempotent (same paths, same values) and safe to re-issue
// every time the two users connect.
func (s *SessionService) Bootstrap(self, peer *entity.User) (string, error) {
	id, err := CanonicalPair(self.UID, peer.UID)
	if err != nil {
		return "", err
	}

	updates := map[string]any{
		chatIndexPath(self.UID, id): map[string]any{
			"chatWith": peer.Email,
			"name":     displayName(peer),
			"uid":      peer.UID,
		},
		chatIndexPath(peer.UID, id): map[string]any{
			"chatWith": self.Email,
			"name":     displayName(self),
			"uid":      self.UID,
		},
		participantPath(id, self.UID): true,
		participantPath(id, peer.UID): true,
	}
	if err := s.st.Update(updates); err != nil {
		s.logger.Logf("Bootstrap of session %s failed {%v}", id, err)
		return "", fmt.Errorf("Could not start the chat {%v}", err)
	}
	s.logger.Logf("Session %s ready between %s and %s", id, self.UID, peer.UID)
	return id, nil
}

// Peer resolves the other participant's profile for a session. A nil user
// with a nil error means the record has not appeared yet; callers keep
// their view in a loading state until it does.
func (s *SessionService) Peer(sessionID, selfUID string) (*entity.User, error) {
	peerUID, err := PeerOf(sessionID, selfUID)
	if err != nil {
		return nil, err
	}
	v, err := s.st.Get(userPath(peerUID))
	if err != nil {
		return nil, err
	}
	return decodeUser(peerUID, v), nil
}

func displayName(u *entity.User) string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}
