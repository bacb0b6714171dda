package handler

import (
	"errors"
	"net/http"

	"arichat/internal/entity"
	"arichat/internal/middleware"
	"arichat/internal/nlog"
	"arichat/internal/service"
	"arichat/internal/view"

	"github.com/gorilla/mux"
)

// ChatHandler is the UI plumbing over the realtime core: it invokes the
// component contracts and renders whatever state they expose. All
// consistency lives below it.
type ChatHandler struct {
	sessions  *service.SessionService
	chatList  *service.ChatListService
	stream    *service.StreamService
	directory *service.DirectoryService
	presence  *service.PresenceService
	typing    *service.TypingService
	registry  *service.ClientRegistry
	renderer  *view.PageRenderer
	logger    nlog.Logger
}

func NewChatHandler(
	sessions *service.SessionService,
	chatList *service.ChatListService,
	stream *service.StreamService,
	directory *service.DirectoryService,
	presence *service.PresenceService,
	typing *service.TypingService,
	registry *service.ClientRegistry,
	renderer *view.PageRenderer,
	logger nlog.Logger,
) *ChatHandler {
	return &ChatHandler{
		sessions:  sessions,
		chatList:  chatList,
		stream:    stream,
		directory: directory,
		presence:  presence,
		typing:    typing,
		registry:  registry,
		renderer:  renderer,
		logger:    logger,
	}
}

// ChatList renders the ordered chat list. A read failure degrades to an
// empty list, never an error page.
func (h *ChatHandler) ChatList(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.SessionUser(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	entries := h.snapshotList(user.UID)
	data := map[string]any{
		"User":  user,
		"Chats": entries,
	}
	if err := h.renderer.RenderPage(w, "chats.html", "", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// snapshotList takes one settled snapshot from a throwaway chat list
// watch. Failures read as "no data yet".
func (h *ChatHandler) snapshotList(uid string) []entity.ChatListEntry {
	watch, err := h.chatList.Subscribe(uid)
	if err != nil {
		h.logger.Logf("Chat list subscription for %s failed {%v}", uid, err)
		return nil
	}
	defer watch.Cancel()
	return settleList(watch)
}

// ChatRoom renders one session: peer header, presence, typing flag and
// the ordered message log. While the peer record has not appeared yet the
// page stays in its loading state.
func (h *ChatHandler) ChatRoom(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.SessionUser(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	sessionID := mux.Vars(r)["sessionId"]

	peer, err := h.sessions.Peer(sessionID, user.UID)
	if err != nil {
		http.Error(w, "This chat does not exist", http.StatusNotFound)
		return
	}

	data := map[string]any{
		"User":      user,
		"SessionID": sessionID,
		"Loading":   peer == nil,
	}
	if peer != nil {
		rec, err := h.presence.Get(peer.UID)
		if err != nil {
			h.logger.Logf("Presence read for %s failed {%v}", peer.UID, err)
		}
		typing, err := h.typing.Peek(sessionID, peer.UID)
		if err != nil {
			h.logger.Logf("Typing read for %s/%s failed {%v}", sessionID, peer.UID, err)
		}
		messages, err := h.stream.Log(sessionID)
		if err != nil {
			h.logger.Logf("Log read for %s failed {%v}", sessionID, err)
		}
		data["Peer"] = peer
		data["Online"] = rec.Online()
		data["Typing"] = typing
		data["Messages"] = messages
	}

	if err := h.renderer.RenderPage(w, "chat.html", "", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// SendMessage appends to the session log and bounces back to the room.
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.SessionUser(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	sessionID := mux.Vars(r)["sessionId"]

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Error parsing form", http.StatusBadRequest)
		return
	}
	if err := h.stream.Send(sessionID, user.UID, user.Email, r.FormValue("text")); err != nil {
		h.renderer.RenderPage(w, "chat.html", "Something went wrong while sending the message.", map[string]any{
			"User":      user,
			"SessionID": sessionID,
			"Loading":   true,
		})
		return
	}
	http.Redirect(w, r, "/chats/"+sessionID, http.StatusSeeOther)
}

// TypingPing marks the user as typing in the session; the composer calls
// it on every edit.
func (h *ChatHandler) TypingPing(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.SessionUser(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	sessionID := mux.Vars(r)["sessionId"]

	ts, err := h.registry.Typing(user.UID, sessionID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if err := ts.OnEdit(); err != nil {
		// accepted loss: the debounce or the disconnect fallback cleans up
		h.logger.Logf("Typing ping for %s/%s failed {%v}", sessionID, user.UID, err)
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search finds a contact candidate by exact email.
func (h *ChatHandler) Search(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.SessionUser(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	data := map[string]any{"User": user}
	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Error parsing form", http.StatusBadRequest)
			return
		}
		query := r.FormValue("email")
		data["Query"] = query
		result, err := h.directory.FindByEmail(query, user.UID)
		switch {
		case err == nil:
			data["Result"] = result
		case errors.Is(err, service.ErrUserNotFound):
			data["NotFound"] = true
		default:
			h.logger.Logf("Search for %q failed {%v}", query, err)
			data["NotFound"] = true
		}
	}

	if err := h.renderer.RenderPage(w, "search.html", "", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// StartChat bootstraps (idempotently) the session with the chosen peer
// and lands in its room.
func (h *ChatHandler) StartChat(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.SessionUser(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Error parsing form", http.StatusBadRequest)
		return
	}
	peer, err := h.directory.Get(r.FormValue("uid"))
	if err != nil {
		h.renderer.RenderPage(w, "search.html", "That user is gone.", map[string]any{"User": user})
		return
	}

	sessionID, err := h.sessions.Bootstrap(&user, peer)
	if err != nil {
		h.renderer.RenderPage(w, "search.html", "Something went wrong while starting the chat.", map[string]any{"User": user})
		return
	}
	http.Redirect(w, r, "/chats/"+sessionID, http.StatusSeeOther)
}
