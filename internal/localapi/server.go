package localapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"mashiro/cli/internal/historydb"
	"mashiro/cli/internal/sysinfo"
	"mashiro/cli/internal/taskrun"
	"mashiro/cli/internal/taskstore"
)

const Version = "0.1.0"

// TaskService is the task façade the routes drive.
type TaskService interface {
	Execute(ctx context.Context, req taskrun.Request) (taskstore.Task, error)
	Submit(ctx context.Context, req taskrun.Request) (taskstore.Task, error)
	Get(ctx context.Context, taskID string) (taskstore.Task, error)
	List(ctx context.Context, filter *taskstore.Status) ([]taskstore.Task, error)
	Cancel(ctx context.Context, taskID string) (taskstore.Task, error)
	Commands() map[string][]string
	CommandCount() int
}

type UsageHistory interface {
	List(ctx context.Context, limit int) ([]historydb.Entry, error)
	Clear(ctx context.Context) error
}

type HostInfo interface {
	Info(ctx context.Context) (sysinfo.HostInfo, error)
}

type Deps struct {
	Tasks  TaskService
	Usage  UsageHistory
	Host   HostInfo
	Hub    *WSHub
	Logger *slog.Logger
}

type Server struct {
	deps   Deps
	mux    *http.ServeMux
	hub    *WSHub
	logger *slog.Logger
}

func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	hub := deps.Hub
	if hub == nil {
		hub = NewWSHub()
	}
	s := &Server{deps: deps, mux: http.NewServeMux(), hub: hub, logger: logger}
	s.registerSystemRoutes()
	s.registerCommandRoutes()
	s.registerTaskRoutes()
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/ws", s.hub.HandleWS)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// Events is the sink task lifecycle changes are published to.
func (s *Server) Events() *WSHub {
	return s.hub
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func respondError(w http.ResponseWriter, code int, msg string, extra map[string]any) {
	payload := map[string]any{"error": msg}
	for k, v := range extra {
		payload[k] = v
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter) {
	respondError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
