package handler

import (
	"net/http"

	"arichat/internal/middleware"
	"arichat/internal/service"
	"arichat/internal/view"

	"github.com/gorilla/sessions"
)

type AuthHandler struct {
	authService service.AuthService
	cookieStore *sessions.CookieStore
	renderer    *view.PageRenderer
}

func NewAuthHandler(authService service.AuthService, cookieStore *sessions.CookieStore, renderer *view.PageRenderer) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		cookieStore: cookieStore,
		renderer:    renderer,
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		if err := h.renderer.RenderPage(w, "register.html", "", nil); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Error occurred while parsing the form", http.StatusBadRequest)
		return
	}

	user, err := h.authService.Register(r.FormValue("email"), r.FormValue("password"))
	if err != nil {
		h.renderer.RenderPage(w, "register.html", err.Error(), nil)
		return
	}

	if err := h.establishSession(w, r, user.UID, user.Email, user.Name); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/chats", http.StatusSeeOther)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		if err := h.renderer.RenderPage(w, "login.html", "", nil); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	user, err := h.authService.Login(r.FormValue("email"), r.FormValue("password"))
	if err != nil {
		h.renderer.RenderPage(w, "login.html", err.Error(), nil)
		return
	}

	if err := h.establishSession(w, r, user.UID, user.Email, user.Name); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/chats", http.StatusSeeOther)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if user, ok := middleware.SessionUser(r); ok {
		h.authService.SignOut(&user)
	}

	session, _ := h.cookieStore.Get(r, middleware.SessionName)
	session.Options.MaxAge = -1
	if err := sessions.Save(r, w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (h *AuthHandler) establishSession(w http.ResponseWriter, r *http.Request, uid, email, name string) error {
	session, _ := h.cookieStore.Get(r, middleware.SessionName)
	session.Values["uid"] = uid
	session.Values["email"] = email
	session.Values["name"] = name
	return sessions.Save(r, w)
}
