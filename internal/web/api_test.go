package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mkaravel/synergo/internal/config"
	"github.com/mkaravel/synergo/internal/coord"
	"github.com/mkaravel/synergo/internal/ledger"
)

func newTestServer(t *testing.T) (*Server, *ledger.Ledger, *coord.Store) {
	t.Helper()
	dir := t.TempDir()

	l, err := ledger.Open(filepath.Join(dir, "ledger.db"))
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { l.Close() })

	store := coord.NewStore(filepath.Join(dir, "communication.json"))
	srv := NewServer(l, store, nil, config.WebConfig{Port: 0}, "test")
	return srv, l, store
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Body.String(), "{") {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode %s %s response: %v", method, path, err)
		}
	}
	return rec, out
}

func TestListRunsEmpty(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec, _ := doJSON(t, srv.Handler(), "GET", "/api/runs", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("expected empty array, got %q", got)
	}
}

func TestGetRun(t *testing.T) {
	srv, l, _ := newTestServer(t)

	if err := l.SaveRun(&ledger.Run{ID: "r1", Task: "Implement login", Status: ledger.RunCompleted}); err != nil {
		t.Fatalf("save run: %v", err)
	}
	if err := l.RecordUsage(&ledger.Usage{Scope: "r1", Model: "m", InputTokens: 10, OutputTokens: 5}); err != nil {
		t.Fatalf("record usage: %v", err)
	}

	rec, out := doJSON(t, srv.Handler(), "GET", "/api/runs/r1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	run := out["run"].(map[string]any)
	if run["task"] != "Implement login" {
		t.Errorf("unexpected run payload: %v", run)
	}
	usage := out["usage"].(map[string]any)
	if usage["input_tokens"].(float64) != 10 {
		t.Errorf("unexpected usage payload: %v", usage)
	}
}

func TestGetRunNotFound(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec, _ := doJSON(t, srv.Handler(), "GET", "/api/runs/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestGetDocument(t *testing.T) {
	srv, _, store := newTestServer(t)

	if err := store.Init(coord.NewDocument("Implement login with Google", []string{"product_owner"}, 10)); err != nil {
		t.Fatalf("init store: %v", err)
	}

	rec, out := doJSON(t, srv.Handler(), "GET", "/api/document", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if out["task"] != "Implement login with Google" {
		t.Errorf("unexpected document payload: %v", out)
	}
}

func TestTaskLifecycle(t *testing.T) {
	srv, l, _ := newTestServer(t)
	h := srv.Handler()

	rec, out := doJSON(t, h, "POST", "/api/tasks",
		`{"name":"nightly","schedule":"0 2 * * *","task":"Summarize backlog"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("create: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	id := out["id"].(string)
	if out["schedule"] != `{"cron":"0 2 * * *"}` {
		t.Errorf("expected normalized schedule, got %v", out["schedule"])
	}

	task, err := l.GetTask(id)
	if err != nil || task == nil {
		t.Fatalf("task not persisted: %v", err)
	}
	if task.NextRunAt == nil {
		t.Error("expected next_run_at to be computed")
	}

	rec, _ = doJSON(t, h, "PUT", "/api/tasks/"+id, `{"status":"paused"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("pause: expected 200, got %d", rec.Code)
	}
	task, _ = l.GetTask(id)
	if task.Status != "paused" {
		t.Errorf("expected paused, got %q", task.Status)
	}

	rec, _ = doJSON(t, h, "DELETE", "/api/tasks/"+id, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", rec.Code)
	}
	task, _ = l.GetTask(id)
	if task != nil {
		t.Error("expected task to be deleted")
	}
}

func TestCreateTaskValidation(t *testing.T) {
	srv, _, _ := newTestServer(t)
	h := srv.Handler()

	rec, _ := doJSON(t, h, "POST", "/api/tasks", `{"name":"x"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing fields: expected 400, got %d", rec.Code)
	}

	rec, _ = doJSON(t, h, "POST", "/api/tasks",
		`{"name":"x","schedule":"not a schedule","task":"y"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad schedule: expected 400, got %d", rec.Code)
	}

	past := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	body := fmt.Sprintf(`{"name":"x","schedule":"{\"at\":\"%s\"}","task":"y"}`, past)
	rec, _ = doJSON(t, h, "POST", "/api/tasks", body)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("past one-shot: expected 400, got %d", rec.Code)
	}
}

func TestGetStatus(t *testing.T) {
	srv, l, _ := newTestServer(t)

	if err := l.SaveRun(&ledger.Run{ID: "r1", Task: "t", Status: ledger.RunCompleted}); err != nil {
		t.Fatalf("save run: %v", err)
	}

	rec, out := doJSON(t, srv.Handler(), "GET", "/api/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if out["version"] != "test" {
		t.Errorf("unexpected version %v", out["version"])
	}
	if out["runs"].(float64) != 1 {
		t.Errorf("expected 1 run, got %v", out["runs"])
	}
}
