package web

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"arichat/internal/entity"
	"arichat/internal/nlog"
	"arichat/internal/repository"
	"arichat/internal/service"
	"arichat/internal/store"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("Could not open the test database: %v", err)
	}
	if err := db.AutoMigrate(&entity.StoreNode{}, &entity.Credential{}); err != nil {
		t.Fatalf("Migration failed: %v", err)
	}

	st, err := store.Open(repository.NewSQLiteNodeRepository(db))
	if err != nil {
		t.Fatalf("Could not open the store: %v", err)
	}

	auth := service.NewAuthService(repository.NewSQLiteCredentialRepository(db), st, nlog.Discard)
	presence := service.NewPresenceService(st, nlog.Discard)
	typing := service.NewTypingService(st, nlog.Discard)
	registry := service.NewClientRegistry(st, presence, typing, nlog.Discard)
	auth.OnAuthStateChanged(registry.AuthStateChanged)

	ws := NewWebServer()
	ws.SetLogger(nlog.Discard)
	ws.SetServices(&Services{
		Auth:      auth,
		Sessions:  service.NewSessionService(st, nlog.Discard),
		ChatList:  service.NewChatListService(st, nlog.Discard),
		Stream:    service.NewStreamService(st, nlog.Discard),
		Directory: service.NewDirectoryService(st, nlog.Discard),
		Presence:  presence,
		Typing:    typing,
		Registry:  registry,
	})

	r, err := ws.Router(&WebConfig{SecretKey: "test-secret"}, "../../web/templates")
	if err != nil {
		t.Fatalf("Could not build the router: %v", err)
	}
	return r
}

type browser struct {
	t       *testing.T
	handler http.Handler
	cookies []*http.Cookie
}

func (b *browser) do(method, path string, form url.Values) *httptest.ResponseRecorder {
	b.t.Helper()
	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for _, c := range b.cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	b.handler.ServeHTTP(rr, req)
	for _, c := range rr.Result().Cookies() {
		b.storeCookie(c)
	}
	return rr
}

// storeCookie mimics a browser: replace by name, drop expired ones.
func (b *browser) storeCookie(c *http.Cookie) {
	kept := b.cookies[:0]
	for _, old := range b.cookies {
		if old.Name != c.Name {
			kept = append(kept, old)
		}
	}
	b.cookies = kept
	if c.MaxAge >= 0 {
		b.cookies = append(b.cookies, c)
	}
}

func TestRegisterLoginAndLogoutFlow(t *testing.T) {
	r := newTestRouter(t)
	b := &browser{t: t, handler: r}

	rr := b.do("POST", "/register", url.Values{"email": {"alice@x.com"}, "password": {"secret"}})
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/chats" {
		t.Fatalf("Registration did not land in /chats: %d %s", rr.Code, rr.Header().Get("Location"))
	}

	rr = b.do("GET", "/chats", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Chat list is not reachable after registration: %d", rr.Code)
	}

	rr = b.do("GET", "/logout", nil)
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/login" {
		t.Fatalf("Logout did not land in /login: %d", rr.Code)
	}

	rr = b.do("GET", "/chats", nil)
	if rr.Code != http.StatusSeeOther {
		t.Errorf("Chat list is still reachable after logout: %d", rr.Code)
	}
}

func TestBadLoginShowsTheAlert(t *testing.T) {
	r := newTestRouter(t)
	b := &browser{t: t, handler: r}

	b.do("POST", "/register", url.Values{"email": {"alice@x.com"}, "password": {"secret"}})
	b.do("GET", "/logout", nil)

	rr := b.do("POST", "/login", url.Values{"email": {"alice@x.com"}, "password": {"wrong"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected the login page again, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Wrong email or password") {
		t.Error("The failure alert is missing from the page")
	}
}

func TestSearchStartChatAndMessage(t *testing.T) {
	r := newTestRouter(t)

	bob := &browser{t: t, handler: r}
	bob.do("POST", "/register", url.Values{"email": {"bob@x.com"}, "password": {"secret"}})

	alice := &browser{t: t, handler: r}
	alice.do("POST", "/register", url.Values{"email": {"alice@x.com"}, "password": {"secret"}})

	// alice finds bob
	rr := alice.do("POST", "/search", url.Values{"email": {"BOB@x.com"}})
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "bob@x.com") {
		t.Fatalf("Search did not find bob: %d", rr.Code)
	}

	// extract bob's uid from the hidden form field
	body := rr.Body.String()
	marker := `name="uid" value="`
	i := strings.Index(body, marker)
	if i < 0 {
		t.Fatal("The search result carries no uid")
	}
	rest := body[i+len(marker):]
	bobUID := rest[:strings.Index(rest, `"`)]

	rr = alice.do("POST", "/chats", url.Values{"uid": {bobUID}})
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("Starting the chat failed: %d", rr.Code)
	}
	roomPath := rr.Header().Get("Location")
	if !strings.HasPrefix(roomPath, "/chats/") {
		t.Fatalf("Unexpected room location: %s", roomPath)
	}

	rr = alice.do("POST", roomPath+"/messages", url.Values{"text": {"hi bob"}})
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("Sending the message failed: %d", rr.Code)
	}

	rr = alice.do("GET", roomPath, nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "hi bob") {
		t.Errorf("The room does not show the sent message: %d", rr.Code)
	}

	// bob sees the chat too, with the preview
	rr = bob.do("GET", "/chats", nil)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "hi bob") {
		t.Errorf("Bob's chat list misses the conversation: %d", rr.Code)
	}

	// typing ping
	rr = alice.do("POST", roomPath+"/typing", nil)
	if rr.Code != http.StatusNoContent {
		t.Errorf("Typing ping failed: %d", rr.Code)
	}
}

func TestSearchSelfIsNotFound(t *testing.T) {
	r := newTestRouter(t)
	b := &browser{t: t, handler: r}
	b.do("POST", "/register", url.Values{"email": {"alice@x.com"}, "password": {"secret"}})

	rr := b.do("POST", "/search", url.Values{"email": {"alice@x.com"}})
	if !strings.Contains(rr.Body.String(), "No user found") {
		t.Error("Searching for yourself should find nothing")
	}
}
