package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func writeData(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"data": v})
}

func TestClient_StartRun(t *testing.T) {
	var got CreateRunRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/runs" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		writeData(w, http.StatusOK, map[string]any{
			"run_id": "r-1", "status": "completed", "services_total": 2, "services_completed": 2,
			"results": map[string]any{"crawl": map[string]any{"status": "completed", "attempts": 1}},
		})
	}))
	defer srv.Close()

	summary, err := NewClient(srv.URL).StartRun(CreateRunRequest{TenantID: "acme", Domain: "example.com", PlanID: "full", Async: true})
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if got.Async {
		t.Error("StartRun must send a synchronous request")
	}
	if summary.RunID != "r-1" || summary.Status != "completed" {
		t.Errorf("summary = %+v", summary)
	}
	if summary.Results["crawl"].Attempts != 1 {
		t.Errorf("results = %+v", summary.Results)
	}
}

func TestClient_ErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"code":"NOT_FOUND","message":"plan not found"}}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).GetPlan("nope")
	if err == nil || err.Error() != "NOT_FOUND: plan not found" {
		t.Errorf("err = %v", err)
	}
}

func TestClient_ErrorWithoutEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).ListPlans()
	if err == nil || !strings.Contains(err.Error(), "HTTP 502") {
		t.Errorf("err = %v", err)
	}
}

func TestClient_ListPlans(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"id":"full","services":3,"max_run_duration_ms":60000}],"total":1}`))
	}))
	defer srv.Close()

	plans, err := NewClient(srv.URL).ListPlans()
	if err != nil {
		t.Fatalf("ListPlans: %v", err)
	}
	if len(plans) != 1 || plans[0].ID != "full" || plans[0].Services != 3 {
		t.Errorf("plans = %+v", plans)
	}
}

func TestClient_GetWorkerConfig_TenantQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/workers/crawl/config" || r.URL.Query().Get("tenant_id") != "acme" {
			t.Errorf("unexpected request %s", r.URL.String())
		}
		writeData(w, http.StatusOK, map[string]any{"service_key": "crawl", "status": "ready", "valid": true, "api_key": "***"})
	}))
	defer srv.Close()

	cfg, err := NewClient(srv.URL).GetWorkerConfig("crawl", "acme")
	if err != nil {
		t.Fatalf("GetWorkerConfig: %v", err)
	}
	if !cfg.Valid || cfg.APIKey != "***" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestClient_WaitJob(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := "running"
		if calls.Add(1) >= 3 {
			status = "done"
		}
		writeData(w, http.StatusOK, map[string]any{"id": "j-1", "status": status})
	}))
	defer srv.Close()

	job, err := NewClient(srv.URL).WaitJob("j-1", time.Millisecond, time.Second)
	if err != nil {
		t.Fatalf("WaitJob: %v", err)
	}
	if job.Status != "done" || calls.Load() != 3 {
		t.Errorf("status = %s after %d calls", job.Status, calls.Load())
	}
}

func TestClient_WaitJob_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, map[string]any{"id": "j-1", "status": "running"})
	}))
	defer srv.Close()

	job, err := NewClient(srv.URL).WaitJob("j-1", time.Millisecond, 5*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if job == nil || job.Status != "running" {
		t.Errorf("job = %+v", job)
	}
}

func TestTestConnectionCmd_Wait(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/tenants/acme/tests/connection":
			writeData(w, http.StatusAccepted, map[string]any{"id": "j-7", "status": "running"})
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/jobs/j-7":
			polls.Add(1)
			writeData(w, http.StatusOK, map[string]any{
				"id": "j-7", "status": "done", "summary": "1/1 passed",
				"progress": map[string]any{
					"total": 1, "processed": 1,
					"services": map[string]any{"crawl": map[string]any{"status": "pass", "attempts": 1}},
				},
			})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	var stdout, stderr bytes.Buffer
	cmd := NewTestCmd(
		func() *Client { return NewClient(srv.URL) },
		func() *Output { return NewOutputTo(&stdout, &stderr, false) },
	)
	cmd.SetArgs([]string{"connection", "acme", "--wait", "--interval", "1ms"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if polls.Load() == 0 {
		t.Error("job was not polled")
	}
	if !strings.Contains(stderr.String(), "1/1 passed") {
		t.Errorf("stderr = %q", stderr.String())
	}
	if !strings.Contains(stdout.String(), "crawl") || !strings.Contains(stdout.String(), "pass") {
		t.Errorf("stdout = %q", stdout.String())
	}
}

func TestPlanShowCmd_JSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, map[string]any{
			"id": "full", "max_run_duration_ms": 1000,
			"services": []map[string]any{{"name": "crawl", "worker_key": "crawl"}},
		})
	}))
	defer srv.Close()

	var stdout bytes.Buffer
	cmd := NewPlanCmd(
		func() *Client { return NewClient(srv.URL) },
		func() *Output { return NewOutputTo(&stdout, &bytes.Buffer{}, true) },
	)
	cmd.SetArgs([]string{"show", "full"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	var plan Plan
	if err := json.Unmarshal(stdout.Bytes(), &plan); err != nil {
		t.Fatalf("stdout is not JSON: %v", err)
	}
	if plan.ID != "full" || len(plan.Services) != 1 {
		t.Errorf("plan = %+v", plan)
	}
}
