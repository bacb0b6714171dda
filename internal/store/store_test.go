package store

import (
	"testing"
	"time"
)

func recvSnap(t *testing.T, sub *Subscription) Snapshot {
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
	return Snapshot{}
}

func expectNoSnap(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case snap := <-sub.C():
		t.Fatalf("Unexpected delivery: %v", snap)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSetAndGet(t *testing.T) {
	s := New()

	if err := s.Set("users/u1", map[string]any{"email": "a@b.com", "name": "a"}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	v, err := s.Get("users/u1/email")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if v != "a@b.com" {
		t.Errorf("Expected a@b.com, got %v", v)
	}

	v, _ = s.Get("users/u1/missing")
	if v != nil {
		t.Errorf("Expected nil for an absent path, got %v", v)
	}
}

func TestMalformedPath(t *testing.T) {
	s := New()
	if err := s.Set("users//u1", "x"); err == nil {
		t.Error("Expected an error for a path with an empty segment")
	}
	if _, err := s.Get("a//b"); err == nil {
		t.Error("Expected an error for a malformed read path")
	}
}

func TestGetReturnsACopy(t *testing.T) {
	s := New()
	s.Set("users/u1", map[string]any{"name": "a"})

	v, _ := s.Get("users/u1")
	v.(map[string]any)["name"] = "tampered"

	v2, _ := s.Get("users/u1/name")
	if v2 != "a" {
		t.Errorf("A returned snapshot aliased the store tree: %v", v2)
	}
}

func TestDeletePrunesEmptyAncestors(t *testing.T) {
	s := New()
	s.Set("typing/s1/u1", true)

	if err := s.Delete("typing/s1/u1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	v, _ := s.Get("typing")
	if v != nil {
		t.Errorf("Expected the emptied subtree to vanish, got %v", v)
	}
}

func TestSubscriptionFiresWithCurrentValue(t *testing.T) {
	s := New()
	s.Set("status/u1", map[string]any{"state": "online"})

	sub, err := s.Subscribe("status/u1")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Cancel()

	snap := recvSnap(t, sub)
	m, ok := snap.Value.(map[string]any)
	if !ok || m["state"] != "online" {
		t.Errorf("Initial snapshot is wrong: %v", snap.Value)
	}
}

func TestSubscriptionOrderMatchesWriteOrder(t *testing.T) {
	s := New()
	sub, _ := s.Subscribe("counter")
	defer sub.Cancel()

	if snap := recvSnap(t, sub); snap.Value != nil {
		t.Fatalf("Expected a nil initial snapshot, got %v", snap.Value)
	}

	for i := 1; i <= 5; i++ {
		s.Set("counter", int64(i))
	}
	for i := 1; i <= 5; i++ {
		snap := recvSnap(t, sub)
		if snap.Value != int64(i) {
			t.Fatalf("Out of order delivery: expected %d, got %v", i, snap.Value)
		}
	}
}

func TestSubscriptionSeesAncestorAndDescendantWrites(t *testing.T) {
	s := New()
	sub, _ := s.Subscribe("userChats/u1")
	defer sub.Cancel()
	recvSnap(t, sub)

	// write below the subscribed path
	s.Set("userChats/u1/s1", map[string]any{"name": "peer"})
	snap := recvSnap(t, sub)
	if asLen(snap.Value) != 1 {
		t.Errorf("Descendant write was not delivered: %v", snap.Value)
	}

	// write above it
	s.Set("userChats", nil)
	snap = recvSnap(t, sub)
	if snap.Value != nil {
		t.Errorf("Ancestor delete was not delivered: %v", snap.Value)
	}

	// unrelated write
	s.Set("userChats/u2/s9", true)
	expectNoSnap(t, sub)
}

func asLen(v any) int {
	m, _ := v.(map[string]any)
	return len(m)
}

func TestUpdateIsAtomicForObservers(t *testing.T) {
	s := New()
	sub, _ := s.Subscribe("userChats")
	defer sub.Cancel()
	recvSnap(t, sub)

	err := s.Update(map[string]any{
		"userChats/a/a_b": map[string]any{"chatWith": "b@x.com"},
		"userChats/b/a_b": map[string]any{"chatWith": "a@x.com"},
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	// exactly one delivery, containing both halves
	snap := recvSnap(t, sub)
	m := snap.Value.(map[string]any)
	if len(m) != 2 {
		t.Fatalf("Observed a partial update: %v", m)
	}
	expectNoSnap(t, sub)
}

func TestCancelStopsDeliveries(t *testing.T) {
	s := New()
	sub, _ := s.Subscribe("x")
	recvSnap(t, sub)
	sub.Cancel()
	sub.Cancel() // must be safe twice

	s.Set("x", 1)
	select {
	case _, ok := <-sub.C():
		if ok {
			t.Error("Got a delivery after Cancel")
		}
	case <-time.After(time.Second):
		t.Error("Channel was not closed after Cancel")
	}
}

func TestServerTimestampResolves(t *testing.T) {
	s := New()
	fixed := time.UnixMilli(1700000000123)
	s.SetClock(func() time.Time { return fixed })

	s.Set("status/u1", map[string]any{
		"state":        "online",
		"last_changed": ServerTimestamp,
	})

	v, _ := s.Get("status/u1/last_changed")
	if v != int64(1700000000123) {
		t.Errorf("Sentinel did not resolve to the store clock: %v", v)
	}
}

func TestEmptyMapCollapsesToNil(t *testing.T) {
	s := New()
	s.Set("a/b", 1)
	s.Set("a/b", map[string]any{})

	v, _ := s.Get("a")
	if v != nil {
		t.Errorf("Expected the empty map write to behave as a delete, got %v", v)
	}
}

func TestWatchCarriesWholeBatches(t *testing.T) {
	s := New()
	f := s.Watch()
	defer f.Cancel()

	s.Update(map[string]any{
		"users/u1": map[string]any{"email": "a@b.com"},
		"status/u1": map[string]any{
			"state": "online",
		},
	})

	select {
	case ev := <-f.C():
		if len(ev.Writes) != 2 {
			t.Errorf("Expected both writes in one event, got %d", len(ev.Writes))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for the feed event")
	}
}

func TestFlatten(t *testing.T) {
	writes := Flatten("users/u1", map[string]any{
		"email": "a@b.com",
		"prefs": map[string]any{"dark": true},
	})
	if len(writes) != 2 {
		t.Fatalf("Expected 2 leaves, got %d", len(writes))
	}
	if writes[0].Path != "users/u1/email" || writes[1].Path != "users/u1/prefs/dark" {
		t.Errorf("Unexpected leaf paths: %v", writes)
	}
}
