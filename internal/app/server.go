package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/cesuygun/chatbot-platform/internal/api/handlers"
	appMiddleware "github.com/cesuygun/chatbot-platform/internal/api/middlewares"
	"github.com/cesuygun/chatbot-platform/internal/config"
	"github.com/cesuygun/chatbot-platform/internal/core"
	"github.com/cesuygun/chatbot-platform/internal/core/ingestion_engine"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	log        zerolog.Logger
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, store core.KnowledgeStore, objects core.ObjectClient, ing ingestion_engine.Ingestor, log zerolog.Logger) *Server {
	authHandler := handlers.NewAuthHandler(store, cfg.JWTSecret)
	chatbotHandler := handlers.NewChatbotHandler(store)
	docHandler := handlers.NewDocumentHandler(store, objects, ing, cfg, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(api chi.Router) {
		// public endpoints
		api.Post("/signup", authHandler.Signup)
		api.Post("/login", authHandler.Login)

		// protected endpoints
		api.Group(func(protected chi.Router) {
			protected.Use(appMiddleware.JWTMiddleware(cfg.JWTSecret))

			protected.Post("/chatbots", chatbotHandler.Create)
			protected.Get("/chatbots", chatbotHandler.List)
			protected.Get("/chatbots/{chatbotID}", chatbotHandler.Get)
			protected.Delete("/chatbots/{chatbotID}", chatbotHandler.Delete)

			protected.Post("/chatbots/{chatbotID}/documents", docHandler.Upload)
			protected.Get("/chatbots/{chatbotID}/documents", docHandler.List)
			protected.Delete("/chatbots/{chatbotID}/documents/{documentID}", docHandler.Delete)
		})
	})

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	return &Server{httpServer: httpSrv, log: log}
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("HTTP server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
