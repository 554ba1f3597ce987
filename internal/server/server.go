// Package server exposes the bridge, the registry and the history importer
// over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"sessionhub/internal/bridge"
	"sessionhub/internal/gateway"
	"sessionhub/internal/history"
	"sessionhub/internal/logging"
	"sessionhub/internal/model"
	"sessionhub/internal/registry"
	"sessionhub/internal/store"
)

const shutdownTimeout = 10 * time.Second

// Conversations is the read side of the persistence collaborator.
type Conversations interface {
	ListConversations(ctx context.Context, projectPath string) ([]store.ConversationSummary, error)
	GetConversation(ctx context.Context, sessionID string) (*model.Conversation, error)
}

// Server routes HTTP requests to the bridge, gateway and importer.
type Server struct {
	bridge        *bridge.Bridge
	gateway       *gateway.Gateway
	importer      *history.Importer
	conversations Conversations
	log           *logging.Logger
	mux           *http.ServeMux
}

// New wires a Server. conversations may be nil when no store is configured.
func New(b *bridge.Bridge, gw *gateway.Gateway, im *history.Importer, conversations Conversations, log *logging.Logger) *Server {
	s := &Server{
		bridge:        b,
		gateway:       gw,
		importer:      im,
		conversations: conversations,
		log:           log,
		mux:           http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /api/chat", s.handleChat)
	s.mux.HandleFunc("POST /api/chat/{request_id}/abort", s.handleAbort)
	s.mux.HandleFunc("GET /api/chat/active", s.handleActive)
	s.mux.HandleFunc("GET /api/events", s.handleEvents)
	s.mux.HandleFunc("POST /api/history/sync", s.handleSync)
	s.mux.HandleFunc("GET /api/history/conversations", s.handleConversations)
	s.mux.HandleFunc("GET /api/history/conversations/{session_id}", s.handleConversation)
	s.mux.HandleFunc("GET /api/tools", s.handleTools)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then aborts every
// active request and shuts the listener down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.log.Info("listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	s.bridge.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	s.log.Info("server stopped")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req model.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	stream, err := s.bridge.Start(r.Context(), req)
	if err != nil {
		s.log.Warn("chat request rejected", "request_id", req.RequestID, "tool", string(req.Tool), "error", err)
		writeError(w, startStatus(err), err)
		return
	}

	w.Header().Set("X-Request-Id", req.RequestID)
	if err := s.gateway.ServeStream(w, r, stream); err != nil && !errors.Is(err, context.Canceled) {
		s.log.Warn("stream ended with error", "request_id", req.RequestID, "error", err)
	}
}

func startStatus(err error) int {
	switch {
	case errors.Is(err, bridge.ErrToolNotInstalled):
		return http.StatusNotFound
	case errors.Is(err, registry.ErrSessionBusy), errors.Is(err, registry.ErrDuplicateRequest):
		return http.StatusConflict
	case errors.Is(err, model.ErrUnknownTool):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	s.bridge.Abort(r.PathValue("request_id"))
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleActive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.bridge.Registry().List())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if err := s.gateway.ServeHeartbeat(w, r); err != nil {
		s.log.Debug("heartbeat stream ended", "error", err)
	}
}

type syncRequest struct {
	ProjectPath string       `json:"project_path"`
	Tool        model.AiTool `json:"ai_tool"`
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if req.ProjectPath == "" {
		writeError(w, http.StatusBadRequest, errors.New("project_path is required"))
		return
	}
	if !req.Tool.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %q", model.ErrUnknownTool, req.Tool))
		return
	}

	stats, err := s.importer.Sync(r.Context(), req.ProjectPath, req.Tool)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, history.ErrNoParser) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}
	if stats.Errors == nil {
		stats.Errors = []model.FileError{}
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	if s.conversations == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("no conversation store configured"))
		return
	}
	list, err := s.conversations.ListConversations(r.Context(), r.URL.Query().Get("project_path"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	if s.conversations == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("no conversation store configured"))
		return
	}
	conv, err := s.conversations.GetConversation(r.Context(), r.PathValue("session_id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.bridge.ProbeAll())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
