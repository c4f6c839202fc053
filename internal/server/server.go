// Package server exposes the workflow store as an HTTP JSON API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/alexcabrera/kybflow/internal/exchange"
	"github.com/alexcabrera/kybflow/internal/workflow"
)

// MaxBodyBytes caps request bodies.
const MaxBodyBytes = 10 << 20

// Store is the workflow store the API serves.
type Store interface {
	List(ctx context.Context, p workflow.ListParams) (workflow.ListResult, error)
	Create(ctx context.Context, p workflow.CreateParams) (workflow.Workflow, error)
	Get(ctx context.Context, id string) (workflow.Workflow, error)
	Update(ctx context.Context, id string, p workflow.UpdateParams) (workflow.Workflow, error)
	Delete(ctx context.Context, id string) (workflow.Archived, error)
	Duplicate(ctx context.Context, id string) (workflow.Workflow, error)
	Import(ctx context.Context, p workflow.ImportParams) (workflow.Workflow, error)
	Export(ctx context.Context, id string) (exchange.Document, error)
	History(ctx context.Context, id string) ([]workflow.Version, error)
	Version(ctx context.Context, id string, n int) (workflow.Version, error)
}

// Server routes API requests to a Store.
type Server struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
	mux    *http.ServeMux
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request and error logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithClock overrides the clock used by the health endpoint.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New creates a server over store.
func New(store Store, opts ...Option) *Server {
	s := &Server{
		store:  store,
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
		mux:    http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/workflows", s.handleList)
	s.mux.HandleFunc("POST /api/workflows", s.handleCreate)
	s.mux.HandleFunc("POST /api/workflows/import", s.handleImport)
	s.mux.HandleFunc("GET /api/workflows/{id}", s.handleGet)
	s.mux.HandleFunc("PUT /api/workflows/{id}", s.handleUpdate)
	s.mux.HandleFunc("DELETE /api/workflows/{id}", s.handleDelete)
	s.mux.HandleFunc("POST /api/workflows/{id}/duplicate", s.handleDuplicate)
	s.mux.HandleFunc("GET /api/workflows/{id}/export", s.handleExport)
	s.mux.HandleFunc("GET /api/workflows/{id}/versions", s.handleHistory)
	s.mux.HandleFunc("GET /api/workflows/{id}/versions/{version}", s.handleVersion)
	s.mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
}

// Handler returns the API with request logging.
func (s *Server) Handler() http.Handler {
	return withRequestLog(s.logger, s.mux)
}

// Serve accepts connections on l until ctx is done, then shuts down
// gracefully within five seconds.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", l.Addr().String())
		errc <- srv.Serve(l)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	l, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, l)
}

type errorBody struct {
	Error          string `json:"error"`
	CurrentVersion *int   `json:"currentVersion,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// fail maps store errors onto responses. notFoundMsg is the 404 text.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, notFoundMsg string) {
	var conflict *workflow.VersionConflictError
	switch {
	case errors.Is(err, workflow.ErrNotFound):
		writeError(w, http.StatusNotFound, notFoundMsg)
	case errors.As(err, &conflict):
		cur := conflict.Current
		writeJSON(w, http.StatusConflict, errorBody{Error: "Version conflict", CurrentVersion: &cur})
	case errors.Is(err, workflow.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("request failed",
			"request_id", RequestID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: malformed request body: %v", workflow.ErrValidation, err)
	}
	return nil
}
