// Package server exposes the memory operations over HTTP and a websocket.
package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/becomeliminal/nim-memory/api"
	"github.com/becomeliminal/nim-memory/logging"
	"github.com/becomeliminal/nim-memory/memory"
)

const maxBodyBytes = 1 << 20

// StoreSource hands out the process's memory store. *provider.Provider
// satisfies it.
type StoreSource interface {
	Get() (memory.Store, error)
}

// Config configures the server.
type Config struct {
	// Stores is required.
	Stores StoreSource

	AppName    string
	AppVersion string
	Logger     *slog.Logger

	// AllowedOrigins lists browser origins, besides the server's own host,
	// that may open /ws.
	AllowedOrigins []string
}

// Server routes memory requests to the configured store.
type Server struct {
	cfg      Config
	log      *slog.Logger
	mux      *http.ServeMux
	upgrader *websocket.Upgrader
}

// New builds the routes. It fails when cfg.Stores is nil.
func New(cfg Config) (*Server, error) {
	if cfg.Stores == nil {
		return nil, errors.New("server: Stores is required")
	}
	s := &Server{
		cfg: cfg,
		log: logging.OrDiscard(cfg.Logger).With("component", "server"),
		mux: http.NewServeMux(),
	}
	s.upgrader = s.newUpgrader()

	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /memory/add", s.handleAdd)
	s.mux.HandleFunc("POST /memory/search", s.handleSearch)
	s.mux.HandleFunc("POST /memory/list", s.handleList)
	s.mux.HandleFunc("DELETE /memory/{id}", s.handleDelete)
	s.mux.HandleFunc("GET /ws", s.handleWebSocket)
	return s, nil
}

// Handler returns the HTTP handler with request logging.
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.mux)
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("http listening", "addr", ln.Addr().String())
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": s.cfg.AppName,
		"version": s.cfg.AppVersion,
	})
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	var req api.AddRequest
	if !s.decode(w, r, &req) {
		return
	}
	store, ok := s.store(w)
	if !ok {
		return
	}
	resp, err := api.Add(r.Context(), store, req)
	if err != nil {
		s.writeError(w, "store", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req api.SearchRequest
	if !s.decode(w, r, &req) {
		return
	}
	store, ok := s.store(w)
	if !ok {
		return
	}
	resp, err := api.Search(r.Context(), store, req)
	if err != nil {
		s.writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	var req api.ListRequest
	if !s.decodeOptional(w, r, &req) {
		return
	}
	store, ok := s.store(w)
	if !ok {
		return
	}
	resp, err := api.List(r.Context(), store, req)
	if err != nil {
		s.writeError(w, "list", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	store, ok := s.store(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, api.Delete(r.Context(), store, api.DeleteRequest{ID: r.PathValue("id")}))
}

func (s *Server) store(w http.ResponseWriter) (memory.Store, bool) {
	store, err := s.cfg.Stores.Get()
	if err != nil {
		s.writeError(w, "provider", err)
		return nil, false
	}
	return store, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	return s.decodeBody(w, r, v, false)
}

// decodeOptional is decode for routes whose body may be absent, whether
// or not the request declares a length.
func (s *Server) decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	return s.decodeBody(w, r, v, true)
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}
	writeJSON(w, http.StatusUnprocessableEntity, errorBody{Detail: "invalid request body: " + err.Error()})
	return false
}

type errorBody struct {
	Detail string `json:"detail"`
}

// StatusFor maps an operation error to an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, memory.ErrInvalidInput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, memory.ErrConfiguration):
		return http.StatusServiceUnavailable
	case errors.Is(err, memory.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) writeError(w http.ResponseWriter, op string, err error) {
	status := StatusFor(err)
	if status >= 500 {
		s.log.Error("request failed", "op", op, "status", status, "error", err)
	} else {
		s.log.Warn("request rejected", "op", op, "status", status, "error", err)
	}
	writeJSON(w, status, errorBody{Detail: err.Error()})
}

// writeJSON encodes v before writing the header, so an unencodable value
// becomes a 500 instead of a truncated success.
func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		buf.Reset()
		status = http.StatusInternalServerError
		_ = json.NewEncoder(&buf).Encode(errorBody{Detail: "encode response: " + err.Error()})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack passes the connection through for the websocket upgrade.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("server: response does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}
