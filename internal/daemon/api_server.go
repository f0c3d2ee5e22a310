package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"lexisub/internal/chunk"
	"lexisub/internal/logging"
	"lexisub/internal/progress"
	"lexisub/internal/services"
	"lexisub/internal/workflow"
)

const maxRequestBody = 1 << 20

// ErrorResponse is the JSON body of every non-2xx reply.
type ErrorResponse struct {
	Error    string            `json:"error"`
	Category services.Category `json:"category,omitempty"`
}

// TaskResponse wraps a progress record.
type TaskResponse struct {
	Task progress.Record `json:"task"`
}

type apiServer struct {
	bind    string
	logger  *slog.Logger
	daemon  *Daemon
	handler http.Handler

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(bind, token string, d *Daemon, logger *slog.Logger) *apiServer {
	s := &apiServer{bind: strings.TrimSpace(bind), logger: logger, daemon: d}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chunks", s.handleSubmit)
	mux.HandleFunc("GET /api/chunks/{id}", s.handleGet)
	mux.HandleFunc("DELETE /api/chunks/{id}", s.handleCancel)
	mux.HandleFunc("GET /api/chunks/{id}/result", s.handleResult)
	mux.HandleFunc("GET /api/status", s.handleStatus)

	root := http.NewServeMux()
	root.Handle("/api/", authMiddleware(token, mux))
	if d.metrics != nil {
		root.Handle("GET /metrics", d.metrics.Handler())
	}
	s.handler = root
	return s
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorWithContext(s.logger, "api server error", "api_server_error", logging.Error(err))
		}
	}()
	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()
	if server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}

func (s *apiServer) address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req chunk.Request
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("decode request: %v", err))
		return
	}
	rec, err := s.daemon.manager.Submit(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, TaskResponse{Task: rec})
	case errors.Is(err, workflow.ErrTaskInFlight):
		writeJSON(w, http.StatusConflict, TaskResponse{Task: rec})
	default:
		writeFailure(w, err)
	}
}

func (s *apiServer) handleGet(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.daemon.manager.Progress(r.PathValue("id"))
	if !ok {
		writeFailure(w, workflow.ErrTaskNotFound)
		return
	}
	writeJSON(w, http.StatusOK, TaskResponse{Task: rec})
}

func (s *apiServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.daemon.manager.Cancel(id); err != nil {
		writeFailure(w, err)
		return
	}
	rec, _ := s.daemon.manager.Progress(id)
	writeJSON(w, http.StatusAccepted, TaskResponse{Task: rec})
}

func (s *apiServer) handleResult(w http.ResponseWriter, r *http.Request) {
	rec, err := s.daemon.manager.Take(r.PathValue("id"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, TaskResponse{Task: rec})
	case errors.Is(err, workflow.ErrTaskInFlight):
		writeJSON(w, http.StatusConflict, TaskResponse{Task: rec})
	default:
		writeFailure(w, err)
	}
}

func (s *apiServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.daemon.Status())
}

func writeFailure(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, workflow.ErrQueueFull), errors.Is(err, workflow.ErrNotRunning):
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Category: services.Classify(err)})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
