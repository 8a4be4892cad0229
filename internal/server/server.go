// package server contains middleware & handlers for the book list web service
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/bookx/internal/models"
	"github.com/desertthunder/bookx/internal/services"
	"github.com/desertthunder/bookx/internal/session"
	"github.com/desertthunder/bookx/internal/shared"
	"github.com/desertthunder/bookx/internal/vault"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Handler is an [http.Handler] that owns several route patterns.
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // "METHOD /path" patterns this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

// SessionManager is the part of [session.Ensurer] the API exposes.
type SessionManager interface {
	Status(ctx context.Context) session.Status
	Refresh(ctx context.Context) (vault.Session, error)
	Logout() error
}

// BibliographyCache stores NDL records. Implemented by repositories.BibliographyRepository.
type BibliographyCache = models.Repository[models.Bibliography]

// CoverSource resolves an ISBN to a local cover file. Implemented by covers.Cache.
type CoverSource interface {
	Path(ctx context.Context, isbn string) (string, error)
}

// Deps are the components the handlers call. Catalogue, Bibliographies and Covers may be nil.
type Deps struct {
	Session        SessionManager
	Lists          services.Lister
	Catalogue      services.Catalogue
	Bibliographies BibliographyCache
	Covers         CoverSource
}

// Server is the JSON API over [Deps].
type Server struct {
	deps   Deps
	router *BasicRouter
	logger *log.Logger
}

// NewServer builds the router with middleware and every route registered.
func NewServer(deps Deps, logger *log.Logger) *Server {
	s := &Server{
		deps:   deps,
		router: NewBasicRouter(),
		logger: shared.WithLogger(logger, "component", "server"),
	}

	s.router.Use(RequestID, RequestLogger(s.logger), Recoverer(s.logger))
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.HandleFunc(http.MethodGet, "/health", s.health)
	r.HandleFunc(http.MethodGet, "/api/session", s.sessionStatus)
	r.HandleFunc(http.MethodPost, "/api/session/refresh", s.sessionRefresh)
	r.HandleFunc(http.MethodDelete, "/api/session", s.sessionLogout)
	r.HandleFunc(http.MethodGet, "/api/lists/{type}/count", s.listCount)
	r.HandleFunc(http.MethodGet, "/api/lists/{type}", s.listPage)
	r.HandleFunc(http.MethodGet, "/api/books/{isbn}", s.book)
	r.Handler(&coverHandler{src: s.deps.Covers, logger: s.logger})
}

// ServeHTTP implements [http.Handler].
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Addr formats a listen address from config.
func Addr(config shared.ServerConfig) string {
	return net.JoinHostPort(config.Host, fmt.Sprint(config.Port))
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
//
// ready, when set, is called with the bound address once the listener is open.
func (s *Server) ListenAndServe(ctx context.Context, addr string, ready func(addr string)) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errs := make(chan error, 1)
	go func() { errs <- srv.Serve(ln) }()

	s.logger.Info("listening", "addr", ln.Addr().String())
	s.logger.Debug("routes", "patterns", s.router.Routes())
	if ready != nil {
		ready(ln.Addr().String())
	}

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errs; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
