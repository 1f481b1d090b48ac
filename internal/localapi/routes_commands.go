package localapi

import (
	"net/http"
	"strconv"
)

func (s *Server) registerCommandRoutes() {
	s.mux.HandleFunc("/commands", s.handleCommands)
	s.mux.HandleFunc("/commands/usage", s.handleCommandUsage)
}

func (s *Server) handleCommands(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"commands": s.deps.Tasks.Commands(),
		"count":    s.deps.Tasks.CommandCount(),
	})
}

func (s *Server) handleCommandUsage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	if s.deps.Usage == nil {
		respondError(w, http.StatusServiceUnavailable, "command usage is unavailable", nil)
		return
	}
	if r.Method == http.MethodDelete {
		if err := s.deps.Usage.Clear(r.Context()); err != nil {
			s.logger.Error("clear command usage failed", "err", err)
			respondError(w, http.StatusInternalServerError, err.Error(), nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": "Command usage cleared"})
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "invalid limit", map[string]any{"limit": raw})
			return
		}
		limit = n
	}
	entries, err := s.deps.Usage.List(r.Context(), limit)
	if err != nil {
		s.logger.Error("list command usage failed", "err", err)
		respondError(w, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"usage": entries, "count": len(entries)})
}
