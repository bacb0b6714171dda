package web

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"arichat/internal"
	"arichat/internal/handler"
	"arichat/internal/middleware"
	"arichat/internal/nlog"
	"arichat/internal/service"
	"arichat/internal/view"

	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"
)

type WebConfig struct {
	ServerPort        uint16
	ReadTimeout       int64
	WriteTimeout      int64
	TemplateDirectory string
	SecretKey         string
}

// Services bundles everything the request handlers need.
type Services struct {
	Auth      service.AuthService
	Sessions  *service.SessionService
	ChatList  *service.ChatListService
	Stream    *service.StreamService
	Directory *service.DirectoryService
	Presence  *service.PresenceService
	Typing    *service.TypingService
	Registry  *service.ClientRegistry
}

type WebServer struct { // Manages the HTTP surface of the client
	running atomic.Bool

	logger nlog.Logger
	server *http.Server

	stopFromOutsideChan chan struct{}
	doneFromInsideChan  chan struct{}

	services *Services
}

func NewWebServer() *WebServer {
	return &WebServer{
		running:             atomic.Bool{},
		stopFromOutsideChan: make(chan struct{}),
		doneFromInsideChan:  make(chan struct{}),
	}
}

func (ws *WebServer) IsReady() bool {
	return ws.logger != nil && ws.services != nil
}

func (ws *WebServer) IsRunning() bool {
	return ws.running.Load()
}

func (ws *WebServer) SetLogger(l nlog.Logger) {
	ws.logger = l
}

func (ws *WebServer) SetServices(s *Services) {
	ws.services = s
}

func (ws *WebServer) Logf(format string, a ...any) {
	ws.logger.Logf(format, a...)
}

// Router builds the full route table. Exposed separately so tests can
// drive it through httptest without binding a port.
func (ws *WebServer) Router(cfg *WebConfig, templateDir string) (*mux.Router, error) {
	cookieStore := sessions.NewCookieStore([]byte(cfg.SecretKey))
	cookieStore.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   false,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(7 * 24 * time.Hour.Seconds()),
	}

	templates, err := internal.RetrieveWebTemplates(templateDir)
	if err != nil {
		return nil, err
	}
	renderer := view.NewPageRenderer(templates)

	s := ws.services
	authHandler := handler.NewAuthHandler(s.Auth, cookieStore, renderer)
	chatHandler := handler.NewChatHandler(
		s.Sessions, s.ChatList, s.Stream, s.Directory,
		s.Presence, s.Typing, s.Registry, renderer, ws.logger,
	)

	r := mux.NewRouter()

	// Authentication routes
	r.HandleFunc("/register", authHandler.Register).Methods("POST", "GET")
	r.HandleFunc("/login", authHandler.Login).Methods("POST", "GET")
	r.HandleFunc("/logout", middleware.AuthMiddleware(cookieStore, authHandler.Logout)).Methods("GET")

	// Chat routes
	r.HandleFunc("/chats", middleware.AuthMiddleware(cookieStore, chatHandler.ChatList)).Methods("GET")
	r.HandleFunc("/chats", middleware.AuthMiddleware(cookieStore, chatHandler.StartChat)).Methods("POST")
	r.HandleFunc("/chats/{sessionId}", middleware.AuthMiddleware(cookieStore, chatHandler.ChatRoom)).Methods("GET")
	r.HandleFunc("/chats/{sessionId}/messages", middleware.AuthMiddleware(cookieStore, chatHandler.SendMessage)).Methods("POST")
	r.HandleFunc("/chats/{sessionId}/typing", middleware.AuthMiddleware(cookieStore, chatHandler.TypingPing)).Methods("POST")

	// Contact discovery
	r.HandleFunc("/search", middleware.AuthMiddleware(cookieStore, chatHandler.Search)).Methods("POST", "GET")

	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/chats", http.StatusSeeOther)
	}).Methods("GET")

	return r, nil
}

func (ws *WebServer) Run(ctx context.Context, cfg *WebConfig) error {
	ws.Logf("Web service started...")

	if !ws.IsReady() {
		return fmt.Errorf("The web server is not ready... Missing components")
	}

	templateDir := cfg.TemplateDirectory
	if !filepath.IsAbs(templateDir) {
		exePath, err := os.Executable()
		if err != nil {
			return err
		}
		templateDir = filepath.Join(filepath.Dir(exePath), templateDir)
	}

	r, err := ws.Router(cfg, templateDir)
	if err != nil {
		return err
	}

	ws.server = &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:        r,
		ReadTimeout:    time.Duration(cfg.ReadTimeout * int64(time.Second)),
		WriteTimeout:   time.Duration(cfg.WriteTimeout * int64(time.Second)),
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		select {
		case <-ctx.Done():
			ws.Logf("Received stop signal. Shutting down...")
		case <-ws.stopFromOutsideChan:
			ws.Logf("Server was asked to stop. Shutting down...")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := ws.server.Shutdown(shutdownCtx); err != nil {
			ws.Logf("Error during shutdown... %v\n", err)
		}
		close(ws.doneFromInsideChan)
	}()

	ws.Logf("Http server starting on port {%d}", cfg.ServerPort)
	ws.running.Store(true)

	if err := ws.server.ListenAndServe(); err != http.ErrServerClosed {
		ws.Logf("FATAL: HTTP Server error{%v}\n", err)
		ws.running.Store(false)
		return err
	}

	<-ws.doneFromInsideChan
	ws.running.Store(false)
	return nil
}

func (ws *WebServer) Stop() {
	close(ws.stopFromOutsideChan)
	<-ws.doneFromInsideChan
	ws.running.Store(false)
}
