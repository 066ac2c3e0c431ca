// Package httpapi exposes a read-only view of the Meta registry over HTTP:
// a chi router, a thin Response envelope and a writeJSON helper, with no
// mutating routes at all — this registry is mutated only through the wire
// protocol and the action log, never through HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"tsdbmeta/pkg/dberrors"
	"tsdbmeta/pkg/meta"
)

const defaultShutdownTimeout = 5 * time.Second

// Server is the read-only introspection HTTP server.
type Server struct {
	registry   *meta.Registry
	httpServer *http.Server
	addr       string
}

// NewServer builds a Server bound to registry, listening on addr.
func NewServer(registry *meta.Registry, addr string) *Server {
	return &Server{registry: registry, addr: addr}
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", s.handleHealth)
	r.Get("/stats", s.handleStats)
	r.Get("/tables", s.handleListTables)
	r.Get("/tables/{uid}", s.handleGetTable)
	return r
}

// Start launches the HTTP server in the background.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.router(),
		ReadHeaderTimeout: time.Second,
	}
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("httpapi server error", "error", err)
		}
	}()
	slog.Info("httpapi server started", "addr", s.addr)
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("httpapi: shutdown: %w", err)
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("httpapi: error encoding response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var dbErr *dberrors.Error
	if errors.As(err, &dbErr) {
		switch dbErr.Kind {
		case dberrors.NotFound:
			status = http.StatusNotFound
		case dberrors.InvalidArgument:
			status = http.StatusBadRequest
		case dberrors.AlreadyExists:
			status = http.StatusConflict
		case dberrors.StaleVersion:
			status = http.StatusConflict
		}
	}
	s.writeJSON(w, status, NewErrorResponse(err.Error()))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, NewOKResponse(nil))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := StatsView{
		ShardID:     s.registry.ShardID(),
		NTables:     s.registry.NTables(),
		NSupers:     s.registry.SuperCount(),
		MaxCols:     s.registry.MaxCols(),
		MaxRowBytes: s.registry.MaxRowBytes(),
	}
	s.writeJSON(w, http.StatusOK, NewOKResponse(stats))
}

func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	all := s.registry.AllTables()
	views := make([]TableView, 0, len(all))
	for _, t := range all {
		views = append(views, newTableView(s.registry, t))
	}
	s.writeJSON(w, http.StatusOK, NewOKResponse(views))
}

func (s *Server) handleGetTable(w http.ResponseWriter, r *http.Request) {
	uid, err := strconv.ParseUint(chi.URLParam(r, "uid"), 10, 64)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse("uid must be an unsigned integer"))
		return
	}
	t, ok := s.registry.GetByUid(uid)
	if !ok {
		s.writeError(w, dberrors.NotFoundf("httpapi.handleGetTable"))
		return
	}
	s.writeJSON(w, http.StatusOK, NewOKResponse(newTableView(s.registry, t)))
}
