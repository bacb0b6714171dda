package middleware

import (
	"context"
	"net/http"

	"arichat/internal/entity"

	"github.com/gorilla/sessions"
)

// SessionName is the cookie holding the signed-in user.
const SessionName = "auth-session"

type contextKey string

// UserKey addresses the signed-in user inside a request context.
const UserKey contextKey = "user"

// AuthMiddleware resolves the signed-in user from the session cookie and
// parks it in the request context; anonymous requests are sent to /login.
func AuthMiddleware(store *sessions.CookieStore, next func(w http.ResponseWriter, r *http.Request)) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := store.Get(r, SessionName)
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		uid, ok1 := session.Values["uid"].(string)
		email, ok2 := session.Values["email"].(string)
		name, ok3 := session.Values["name"].(string)

		if !(ok1 && ok2 && ok3) {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		user := entity.User{
			UID:   uid,
			Email: email,
			Name:  name,
		}

		ctx := context.WithValue(r.Context(), UserKey, user)
		r = r.WithContext(ctx)

		next(w, r)
	}
}

// SessionUser extracts the user AuthMiddleware parked in the context.
func SessionUser(r *http.Request) (entity.User, bool) {
	u, ok := r.Context().Value(UserKey).(entity.User)
	return u, ok
}
