package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/mkaravel/synergo/internal/ledger"
	"github.com/mkaravel/synergo/internal/schedule"
)

func (s *Server) registerAPI(mux *http.ServeMux) {
	// Workflow runs
	mux.HandleFunc("GET /api/runs", s.listRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.getRun)

	// The live shared document
	mux.HandleFunc("GET /api/document", s.getDocument)

	// Scheduled tasks
	mux.HandleFunc("GET /api/tasks", s.listTasks)
	mux.HandleFunc("POST /api/tasks", s.createTask)
	mux.HandleFunc("PUT /api/tasks/{id}", s.updateTask)
	mux.HandleFunc("DELETE /api/tasks/{id}", s.deleteTask)

	// Token accounting
	mux.HandleFunc("GET /api/usage", s.getUsage)

	// System
	mux.HandleFunc("GET /api/status", s.getStatus)
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	runs, err := s.ledger.ListRuns(limit)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []ledger.Run{}
	}
	jsonResponse(w, runs)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	run, err := s.ledger.GetRun(id)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if run == nil {
		jsonError(w, "run not found", http.StatusNotFound)
		return
	}

	usage, err := s.ledger.ScopeTotals(id)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	jsonResponse(w, map[string]any{
		"run":   run,
		"usage": usage,
	})
}

func (s *Server) getDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.store.Read()
	if err != nil {
		jsonError(w, err.Error(), http.StatusNotFound)
		return
	}
	jsonResponse(w, doc)
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.ledger.ListTasks()
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	out := make([]map[string]any, 0, len(tasks))
	for _, t := range tasks {
		entry := map[string]any{
			"id":       t.ID,
			"name":     t.Name,
			"schedule": t.Schedule,
			"task":     t.Task,
			"status":   t.Status,
		}
		if spec, err := schedule.Parse(t.Schedule); err == nil {
			entry["schedule_display"] = spec.Describe()
		}
		if t.NextRunAt != nil {
			entry["next_run_at"] = t.NextRunAt
		}
		if t.LastRunAt != nil {
			entry["last_run_at"] = t.LastRunAt
		}
		if t.LastError != "" {
			entry["last_error"] = t.LastError
		}
		out = append(out, entry)
	}
	jsonResponse(w, out)
}

func (s *Server) createTask(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name     string `json:"name"`
		Schedule string `json:"schedule"`
		Task     string `json:"task"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Name == "" || body.Schedule == "" || body.Task == "" {
		jsonError(w, "name, schedule, and task are required", http.StatusBadRequest)
		return
	}

	normalized, err := schedule.Normalize(body.Schedule)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	task := &ledger.ScheduledTask{
		ID:        uuid.NewString(),
		Name:      body.Name,
		Schedule:  normalized,
		Task:      body.Task,
		Status:    "active",
		NextRunAt: schedule.NextRun(normalized, time.Now()),
	}
	if task.NextRunAt == nil {
		jsonError(w, "schedule has no future runs", http.StatusBadRequest)
		return
	}

	if err := s.ledger.SaveTask(task); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, task)
}

func (s *Server) updateTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Status != "active" && body.Status != "paused" {
		jsonError(w, "status must be active or paused", http.StatusBadRequest)
		return
	}

	task, err := s.ledger.GetTask(id)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if task == nil {
		jsonError(w, "task not found", http.StatusNotFound)
		return
	}

	if err := s.ledger.UpdateTaskStatus(id, body.Status); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]string{"status": "ok"})
}

func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	task, err := s.ledger.GetTask(id)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if task == nil {
		jsonError(w, "task not found", http.StatusNotFound)
		return
	}

	if err := s.ledger.DeleteTask(id); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]string{"status": "ok"})
}

func (s *Server) getUsage(w http.ResponseWriter, r *http.Request) {
	byModel, err := s.ledger.TotalsByModel()
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if byModel == nil {
		byModel = []ledger.UsageTotals{}
	}

	recent, err := s.ledger.RecentUsage(10)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if recent == nil {
		recent = []ledger.Usage{}
	}

	jsonResponse(w, map[string]any{
		"by_model": byModel,
		"recent":   recent,
	})
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	runs, _ := s.ledger.ListRuns(0)
	tasks, _ := s.ledger.ListTasks()

	activeTasks := 0
	for _, t := range tasks {
		if t.Status == "active" {
			activeTasks++
		}
	}

	status := map[string]any{
		"version":      s.version,
		"uptime":       time.Since(s.startedAt).Round(time.Second).String(),
		"runs":         len(runs),
		"active_tasks": activeTasks,
	}
	if s.bus != nil {
		status["nats_url"] = s.bus.ClientURL()
	}
	jsonResponse(w, status)
}

func jsonResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
