package localapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"mashiro/cli/internal/dispatch"
	"mashiro/cli/internal/taskrun"
	"mashiro/cli/internal/taskstore"
)

const maxCommandBodySize = 1 << 20

type commandBody struct {
	Command    string          `json:"command"`
	Parameters dispatch.Params `json:"parameters"`
}

func (s *Server) registerTaskRoutes() {
	s.mux.HandleFunc("/execute-command", s.handleExecuteCommand)
	s.mux.HandleFunc("/tasks", s.handleTasks)
	s.mux.HandleFunc("/tasks/", s.handleTaskActions)
}

func (s *Server) handleExecuteCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	req, ok := decodeCommandBody(w, r)
	if !ok {
		return
	}
	task, err := s.deps.Tasks.Execute(r.Context(), req)
	if err != nil {
		s.respondTaskError(w, task.TaskID, err)
		return
	}
	message := "Command executed successfully"
	if task.Status != taskstore.StatusCompleted {
		message = "Command execution failed"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  task.Status,
		"task_id": task.TaskID,
		"message": message,
		"result":  task.Result,
	})
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListTasks(w, r)
	case http.MethodPost:
		s.handleSubmitTask(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	var filter *taskstore.Status
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		st, err := taskstore.ParseStatus(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error(), map[string]any{"status": raw})
			return
		}
		filter = &st
	}
	tasks, err := s.deps.Tasks.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("list tasks failed", "err", err)
		respondError(w, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks, "count": len(tasks)})
}

func (s *Server) handleSubmitTask(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCommandBody(w, r)
	if !ok {
		return
	}
	task, err := s.deps.Tasks.Submit(r.Context(), req)
	if err != nil {
		s.respondTaskError(w, task.TaskID, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":  task.Status,
		"task_id": task.TaskID,
		"message": "Task queued",
	})
}

func (s *Server) handleTaskActions(w http.ResponseWriter, r *http.Request) {
	taskID := strings.TrimPrefix(r.URL.Path, "/tasks/")
	if taskID == "" || strings.Contains(taskID, "/") {
		respondError(w, http.StatusNotFound, "route not found", map[string]any{"path": r.URL.Path})
		return
	}
	switch r.Method {
	case http.MethodGet:
		task, err := s.deps.Tasks.Get(r.Context(), taskID)
		if err != nil {
			s.respondTaskError(w, taskID, err)
			return
		}
		writeJSON(w, http.StatusOK, task)
	case http.MethodDelete:
		task, err := s.deps.Tasks.Cancel(r.Context(), taskID)
		if err != nil {
			s.respondTaskError(w, taskID, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message": "Task cancelled",
			"task_id": task.TaskID,
			"status":  task.Status,
		})
	default:
		methodNotAllowed(w)
	}
}

func decodeCommandBody(w http.ResponseWriter, r *http.Request) (taskrun.Request, bool) {
	var body commandBody
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCommandBodySize))
	if err := dec.Decode(&body); err != nil {
		msg := "invalid json body"
		if errors.Is(err, io.EOF) {
			msg = "request body is required"
		}
		respondError(w, http.StatusBadRequest, msg, nil)
		return taskrun.Request{}, false
	}
	if body.Parameters == nil {
		body.Parameters = dispatch.Params{}
	}
	req := taskrun.Request{Command: body.Command, Parameters: body.Parameters}
	if err := req.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error(), nil)
		return taskrun.Request{}, false
	}
	return req, true
}

// respondTaskError maps task failures onto payloads; the error text is always
// in the body, the status code is a hint.
func (s *Server) respondTaskError(w http.ResponseWriter, taskID string, err error) {
	extra := map[string]any{}
	if taskID != "" {
		extra["task_id"] = taskID
	}
	switch {
	case errors.Is(err, taskstore.ErrTaskNotFound):
		respondError(w, http.StatusNotFound, "Task not found", extra)
	case errors.Is(err, taskstore.ErrCompletedTask):
		respondError(w, http.StatusConflict, "Cannot cancel completed task", extra)
	case errors.Is(err, taskstore.ErrInvalidTransition):
		if task, gerr := s.deps.Tasks.Get(context.Background(), taskID); gerr == nil {
			extra["status"] = task.Status
		}
		respondError(w, http.StatusConflict, err.Error(), extra)
	case errors.Is(err, taskrun.ErrCommandRequired):
		respondError(w, http.StatusBadRequest, err.Error(), extra)
	case errors.Is(err, taskrun.ErrQueueFull):
		respondError(w, http.StatusServiceUnavailable, err.Error(), extra)
	default:
		s.logger.Error("task request failed", "task_id", taskID, "err", err)
		respondError(w, http.StatusInternalServerError, err.Error(), extra)
	}
}
