package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"

	"github.com/dan-divy/spruce/internal/config"
	"github.com/dan-divy/spruce/internal/database"
	"github.com/dan-divy/spruce/internal/server"
)

type SpruceApp struct {
	log            *log.Logger
	db             database.SpruceRepository
	mux            *http.Server
	cs             *server.ChatServer
	feed           server.Aggregator
	sessions       SessionResolver
	signingKey     []byte
	allowedOrigins []string
}

func NewSpruceApp(mux *http.ServeMux, logger *log.Logger, cs *server.ChatServer, feed server.Aggregator, db database.SpruceRepository, cfg *config.Config) *SpruceApp {
	s := &SpruceApp{
		log:            logger,
		db:             db,
		cs:             cs,
		feed:           feed,
		sessions:       NewJwtSessionResolver(cfg.SigningKey, db),
		signingKey:     cfg.SigningKey,
		allowedOrigins: cfg.AllowedOrigins,
	}

	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.HandleFunc("POST /api/auth/register", s.createAccount)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("GET /api/auth/session", s.authMiddleware(s.session))
	mux.Handle("GET /api/auth/logout", s.authMiddleware(s.logout))
	mux.Handle("/api/account", s.authMiddleware(s.account))
	mux.Handle("/api/follow", s.authMiddleware(s.follow))
	mux.Handle("GET /api/followers", s.authMiddleware(s.followers))
	mux.Handle("POST /api/posts", s.authMiddleware(s.createPost))
	mux.Handle("GET /api/posts", s.authMiddleware(s.listPosts))
	mux.Handle("GET /api/posts/get", s.authMiddleware(s.getPost))
	mux.Handle("POST /api/posts/like", s.authMiddleware(s.likePost))
	mux.Handle("POST /api/posts/comment", s.authMiddleware(s.commentPost))
	mux.Handle("GET /api/rooms", s.authMiddleware(s.getRooms))
	mux.Handle("GET /api/messages", s.authMiddleware(s.getMessages))
	mux.Handle("GET /api/notifications", s.authMiddleware(s.getNotifications))
	mux.Handle("POST /api/keys", s.authMiddleware(s.createApiKey))
	mux.Handle("DELETE /api/keys", s.authMiddleware(s.deleteApiKey))
	mux.Handle("GET /api/v1/posts", s.apiKeyMiddleware(s.listPosts))
	mux.Handle("GET /ws", http.HandlerFunc(s.serveWs))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-Key"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *SpruceApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *SpruceApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
