package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/markdave123-py/Procura/internal/api/handlers"
	appMiddleware "github.com/markdave123-py/Procura/internal/api/middlewares"
	"github.com/markdave123-py/Procura/internal/config"
	"github.com/markdave123-py/Procura/internal/services"
)

// requestTimeout bounds API requests; a live scrape can take most of it.
const requestTimeout = 2 * time.Minute

// Services groups what the HTTP layer serves.
type Services struct {
	Users     *services.UserService
	Processes *services.ProcessService
	Documents *services.DocumentService
	Chat      *services.ChatService
}

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
}

// NewRouter builds the chi router with every route wired.
func NewRouter(cfg *config.Config, svc Services) http.Handler {
	authHandler := handlers.NewAuthHandler(svc.Users, cfg.JWTSecret)
	processHandler := handlers.NewProcessHandler(svc.Processes, svc.Documents)
	chatHandler := handlers.NewChatHandler(svc.Chat)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.Route("/api", func(api chi.Router) {
		// public endpoints
		api.Post("/signup", authHandler.Signup)
		api.Post("/login", authHandler.Login)

		// protected endpoints
		api.Group(func(protected chi.Router) {
			protected.Use(appMiddleware.JWTMiddleware(cfg.JWTSecret))
			protected.Get("/processes", processHandler.GetProcess)
			protected.Post("/processes/ingest", processHandler.IngestProcess)
			protected.Get("/processes/status", processHandler.GetStatus)
			protected.Post("/chat/query", chatHandler.QueryProcess)
			protected.Delete("/admin/chunks", processHandler.PurgeChunks)
		})
	})

	return r
}

// NewServer builds the HTTP server on cfg.Port.
func NewServer(cfg *config.Config, svc Services) *Server {
	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           NewRouter(cfg, svc),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return &Server{httpServer: httpSrv}
}

// Start runs the HTTP server until Shutdown.
func (s *Server) Start() error {
	zap.S().Infow("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	zap.S().Infow("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
