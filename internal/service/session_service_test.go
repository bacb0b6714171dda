package service

import (
	"testing"
	"time"

	"arichat/internal/entity"
	"arichat/internal/nlog"
	"arichat/internal/store"
)

func recvSnap(t *testing.T, sub *store.Subscription) store.Snapshot {
	t.Helper()
	select {
	case snap, ok := <-sub.C():
		if !ok {
			t.Fatal("Subscription channel closed unexpectedly")
		}
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for a snapshot")
	}
	return store.Snapshot{}
}

func TestCanonicalPair(t *testing.T) {
	ab, err := CanonicalPair("a1", "b2")
	if err != nil {
		t.Fatalf("CanonicalPair failed: %v", err)
	}
	ba, _ := CanonicalPair("b2", "a1")
	if ab != "a1_b2" || ba != "a1_b2" {
		t.Errorf("Pair id is not symmetric: %s vs %s", ab, ba)
	}

	if _, err := CanonicalPair("a1", "a1"); err != ErrSelfSession {
		t.Errorf("Expected ErrSelfSession, got %v", err)
	}
	if _, err := CanonicalPair("", "b2"); err == nil {
		t.Error("Expected an error for an empty uid")
	}
}

func TestPeerOf(t *testing.T) {
	if p, _ := PeerOf("a1_b2", "a1"); p != "b2" {
		t.Errorf("Expected b2, got %s", p)
	}
	if p, _ := PeerOf("a1_b2", "b2"); p != "a1" {
		t.Errorf("Expected a1, got %s", p)
	}
	if _, err := PeerOf("a1_b2", "c3"); err == nil {
		t.Error("Expected an error for a non-participant")
	}
	if _, err := PeerOf("nounderscore", "a1"); err == nil {
		t.Error("Expected an error for a malformed id")
	}
}

func TestBootstrapWritesAllFourPathsAtomically(t *testing.T) {
	st := store.New()
	svc := NewSessionService(st, nlog.Discard)

	sub, _ := st.Subscribe("")
	defer sub.Cancel()
	recvSnap(t, sub)

	alice := &entity.User{UID: "a1", Email: "alice@x.com", Name: "alice"}
	bob := &entity.User{UID: "b2", Email: "bob@x.com", Name: "bob"}

	id, err := svc.Bootstrap(alice, bob)
	if err != nil {
		t.Fatalf("Bootstrap failed: %v", err)
	}
	if id != "a1_b2" {
		t.Errorf("Unexpected session id: %s", id)
	}

	// the whole bootstrap arrives as one delivery
	snap := recvSnap(t, sub)
	root := snap.Value.(map[string]any)

	chats := root["userChats"].(map[string]any)
	if chats["a1"] == nil || chats["b2"] == nil {
		t.Fatalf("Both index entries must appear together: %v", chats)
	}
	private := root["privateChats"].(map[string]any)["a1_b2"].(map[string]any)
	participants := private["participants"].(map[string]any)
	if participants["a1"] != true || participants["b2"] != true {
		t.Errorf("Both participant markers must appear together: %v", participants)
	}
}

func TestBootstrapIsIdempotent(t *testing.T) {
	st := store.New()
	svc := NewSessionService(st, nlog.Discard)
	alice := &entity.User{UID: "a1", Email: "alice@x.com", Name: "alice"}
	bob := &entity.User{UID: "b2", Email: "bob@x.com", Name: "bob"}

	id1, _ := svc.Bootstrap(alice, bob)
	id2, err := svc.Bootstrap(bob, alice)
	if err != nil {
		t.Fatalf("Re-bootstrap failed: %v", err)
	}
	if id1 != id2 {
		t.Errorf("Bootstrap order changed the session id: %s vs %s", id1, id2)
	}

	v, _ := st.Get(chatIndexPath("a1", id1) + "/chatWith")
	if v != "bob@x.com" {
		t.Errorf("Index entry was disturbed by the second bootstrap: %v", v)
	}
}

func TestBootstrapIndexEntryNames(t *testing.T) {
	st := store.New()
	svc := NewSessionService(st, nlog.Discard)
	alice := &entity.User{UID: "a1", Email: "alice@x.com", Name: "alice"}
	noName := &entity.User{UID: "b2", Email: "bob@x.com"}

	id, _ := svc.Bootstrap(alice, noName)

	// a missing display name falls back to the email
	v, _ := st.Get(chatIndexPath("a1", id) + "/name")
	if v != "bob@x.com" {
		t.Errorf("Expected the email fallback, got %v", v)
	}
	v, _ = st.Get(chatIndexPath("b2", id) + "/name")
	if v != "alice" {
		t.Errorf("Expected the display name, got %v", v)
	}
}

func TestPeerLoadingState(t *testing.T) {
	st := store.New()
	svc := NewSessionService(st, nlog.Discard)

	// the profile has not been written yet: nil user, nil error
	u, err := svc.Peer("a1_b2", "a1")
	if err != nil {
		t.Fatalf("Peer failed: %v", err)
	}
	if u != nil {
		t.Errorf("Expected the loading state, got %+v", u)
	}

	st.Set("users/b2", map[string]any{"email": "bob@x.com", "name": "bob"})
	u, err = svc.Peer("a1_b2", "a1")
	if err != nil || u == nil || u.UID != "b2" {
		t.Errorf("Expected bob once the profile exists, got %+v (%v)", u, err)
	}
}
