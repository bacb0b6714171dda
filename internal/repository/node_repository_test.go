package repository

import (
	"path/filepath"
	"testing"

	"arichat/internal/entity"
	"arichat/internal/store"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("Could not open the test database: %v", err)
	}
	if err := db.AutoMigrate(&entity.StoreNode{}, &entity.Credential{}); err != nil {
		t.Fatalf("Migration failed: %v", err)
	}
	return db
}

func TestNodeRepositoryRoundTrip(t *testing.T) {
	db := openTestDB(t)
	repo := NewSQLiteNodeRepository(db)

	st, err := store.Open(repo)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	err = st.Update(map[string]any{
		"users/u1":  map[string]any{"email": "a@b.com", "name": "a"},
		"status/u1": map[string]any{"state": "online", "last_changed": int64(123)},
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	// a second store over the same rows must see the same tree
	st2, err := store.Open(NewSQLiteNodeRepository(db))
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	v, _ := st2.Get("users/u1/email")
	if v != "a@b.com" {
		t.Errorf("Profile did not survive the round trip: %v", v)
	}
	v, _ = st2.Get("status/u1/last_changed")
	// numbers come back as float64 after the JSON round trip
	if f, ok := v.(float64); !ok || int64(f) != 123 {
		t.Errorf("Timestamp did not survive the round trip: %v", v)
	}
}

func TestNodeRepositoryReplacesSubtrees(t *testing.T) {
	db := openTestDB(t)
	st, err := store.Open(NewSQLiteNodeRepository(db))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	st.Set("users/u1", map[string]any{"email": "old@b.com", "name": "old"})
	st.Set("users/u1", map[string]any{"email": "new@b.com"})

	st2, _ := store.Open(NewSQLiteNodeRepository(db))
	v, _ := st2.Get("users/u1")
	m, _ := v.(map[string]any)
	if len(m) != 1 || m["email"] != "new@b.com" {
		t.Errorf("Old leaves were not cleared on replace: %v", v)
	}
}

func TestNodeRepositoryDelete(t *testing.T) {
	db := openTestDB(t)
	st, _ := store.Open(NewSQLiteNodeRepository(db))

	st.Set("typing/s1/u1", true)
	st.Delete("typing/s1/u1")

	st2, _ := store.Open(NewSQLiteNodeRepository(db))
	v, _ := st2.Get("typing")
	if v != nil {
		t.Errorf("Deleted subtree came back on reload: %v", v)
	}
}

func TestLeafToSubtreeTransition(t *testing.T) {
	db := openTestDB(t)
	st, _ := store.Open(NewSQLiteNodeRepository(db))

	st.Set("a", "leaf")
	st.Set("a/b", "child")

	st2, _ := store.Open(NewSQLiteNodeRepository(db))
	v, _ := st2.Get("a/b")
	if v != "child" {
		t.Errorf("Ancestor leaf row shadowed the new subtree: %v", v)
	}
}

func TestCredentialRepository(t *testing.T) {
	db := openTestDB(t)
	repo := NewSQLiteCredentialRepository(db)

	cred := &entity.Credential{UID: "u1", Email: "a@b.com", Hash: "h"}
	if err := repo.Create(cred); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := repo.GetByEmail("a@b.com")
	if err != nil {
		t.Fatalf("GetByEmail failed: %v", err)
	}
	if got.UID != "u1" {
		t.Errorf("Wrong credential: %+v", got)
	}

	if _, err := repo.GetByEmail("missing@b.com"); err == nil {
		t.Error("Expected an error for an unknown email")
	}

	if err := repo.Create(&entity.Credential{UID: "u2", Email: "a@b.com", Hash: "h2"}); err == nil {
		t.Error("Expected the unique index to reject a duplicate email")
	}
}
