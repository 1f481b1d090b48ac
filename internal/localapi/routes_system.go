package localapi

import "net/http"

func (s *Server) registerSystemRoutes() {
	s.mux.HandleFunc("/", s.handleRoot)
	s.mux.HandleFunc("/status", s.handleStatus)
	s.mux.HandleFunc("/system", s.handleSystem)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		respondError(w, http.StatusNotFound, "route not found", map[string]any{"path": r.URL.Path})
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Hello from Shiina Mashiro!",
		"status":  "running",
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	payload := map[string]any{
		"status":          "operational",
		"version":         Version,
		"execution_modes": []string{"sync", "queued"},
	}
	if s.deps.Tasks != nil {
		payload["commands"] = s.deps.Tasks.CommandCount()
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleSystem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if s.deps.Host == nil {
		respondError(w, http.StatusServiceUnavailable, "host info is unavailable", nil)
		return
	}
	info, err := s.deps.Host.Info(r.Context())
	if err != nil {
		s.logger.Warn("read host info failed", "err", err)
		writeJSON(w, http.StatusOK, map[string]any{"host": info, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"host": info})
}
