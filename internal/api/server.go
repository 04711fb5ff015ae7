// Package api provides the HTTP server and handlers for the catalog.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/librisapp/libris-server/internal/auth"
	"github.com/librisapp/libris-server/internal/service"
	"github.com/librisapp/libris-server/internal/sse"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	catalog    *service.CatalogService
	accounts   *service.AccountService
	resolver   *auth.ContextResolver
	sseHandler *sse.Handler
	router     *chi.Mux
	logger     *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(
	catalog *service.CatalogService,
	accounts *service.AccountService,
	resolver *auth.ContextResolver,
	sseHandler *sse.Handler,
	logger *slog.Logger,
) *Server {
	s := &Server{
		catalog:    catalog,
		accounts:   accounts,
		resolver:   resolver,
		sseHandler: sseHandler,
		router:     chi.NewRouter(),
		logger:     logger,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupMiddleware configures the middleware stack.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// Health check.
	s.router.Get("/health", s.handleHealthCheck)

	// API v1. Every request gets a principal resolved fresh; handlers decide
	// whether anonymous is acceptable.
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(s.withPrincipal)

		r.Route("/authors", func(r chi.Router) {
			r.Get("/", s.handleListAuthors)
			r.Patch("/{name}", s.handleEditAuthor)
		})

		r.Route("/books", func(r chi.Router) {
			r.Get("/", s.handleListBooks)
			r.Post("/", s.handleAddBook)
		})

		r.Route("/users", func(r chi.Router) {
			r.Post("/", s.handleCreateUser)
			r.Get("/me", s.handleCurrentUser)
		})

		r.Post("/auth/login", s.handleLogin)

		r.Get("/events/books", s.sseHandler.ServeHTTP)
	})
}
