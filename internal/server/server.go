// Package server exposes the cloud sync API: push/pull endpoints,
// conflict resolution, history and snapshots, and the GitHub webhook.
// Handlers are stateless; concurrency is handled by the store's
// optimistic per-entry versioning, not locks.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/locforge/locforge/internal/config"
	"github.com/locforge/locforge/internal/github"
	"github.com/locforge/locforge/internal/logging"
	"github.com/locforge/locforge/internal/store"
)

// ContentsFetcher fetches repository file contents at a ref. Satisfied
// by github.ContentsClient.
type ContentsFetcher interface {
	FileContents(ctx context.Context, repo, path, ref string) ([]byte, error)
}

// Server is the sync API server.
type Server struct {
	store      *store.Store
	cfg        *config.Config
	reconciler *github.Reconciler
	contents   ContentsFetcher
	mux        *http.ServeMux
}

// New creates a server over the given store and configuration.
func New(st *store.Store, cfg *config.Config, contents ContentsFetcher) *Server {
	s := &Server{
		store:      st,
		cfg:        cfg,
		reconciler: github.NewReconciler(st),
		contents:   contents,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.Handle("POST /api/projects/{project}/push", s.auth(s.handlePush))
	mux.Handle("GET /api/projects/{project}/entries", s.auth(s.handleEntries))
	mux.Handle("GET /api/projects/{project}/conflicts", s.auth(s.handleConflicts))
	mux.Handle("POST /api/projects/{project}/conflicts/{id}/resolve", s.auth(s.handleResolve))
	mux.Handle("GET /api/projects/{project}/history", s.auth(s.handleHistory))
	mux.Handle("GET /api/projects/{project}/history/{id}", s.auth(s.handleHistoryEntry))
	mux.Handle("POST /api/projects/{project}/history/{id}/revert", s.auth(s.handleRevert))
	mux.Handle("GET /api/projects/{project}/snapshots", s.auth(s.handleSnapshots))
	mux.Handle("POST /api/projects/{project}/snapshots", s.auth(s.handleCreateSnapshot))
	mux.Handle("POST /api/projects/{project}/snapshots/{id}/restore", s.auth(s.handleRestoreSnapshot))
	mux.Handle("DELETE /api/projects/{project}/snapshots/{id}", s.auth(s.handleDeleteSnapshot))

	mux.HandleFunc("POST /webhooks/github", s.handleWebhook)

	s.mux = mux
}

// Handler returns the server's HTTP handler with logging applied.
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.mux)
}

// ListenAndServe runs the server until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logging.Info("server listening", logging.Path(s.cfg.Server.ListenAddr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth checks the bearer token when one is configured.
func (s *Server) auth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := s.cfg.Server.APIToken; token != "" {
			if r.Header.Get("Authorization") != "Bearer "+token {
				writeError(w, http.StatusUnauthorized, "invalid or missing API token")
				return
			}
		}
		next(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		logging.Debug("request handled",
			logging.Operation(r.Method+" "+r.URL.Path),
			slog.Int("status", rec.status),
			logging.Duration(time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 10<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
