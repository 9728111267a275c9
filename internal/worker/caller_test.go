package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kmease-ttc/Hermes-sub004/internal/domain"
)

func testCaller() *Caller {
	return NewCaller(CallerConfig{
		ColdStartBackoff: 10 * time.Millisecond,
		Timeouts: Timeouts{
			Warmup: 200 * time.Millisecond,
			Invoke: 200 * time.Millisecond,
			Smoke:  200 * time.Millisecond,
			Status: 200 * time.Millisecond,
		},
	})
}

// sequenceServer отвечает кодами из codes по порядку, последний повторяется.
func sequenceServer(t *testing.T, codes ...int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := int(calls.Add(1)) - 1
		if n >= len(codes) {
			n = len(codes) - 1
		}
		w.WriteHeader(codes[n])
		fmt.Fprintf(w, `{"attempt":%d}`, n+1)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestCaller_RetriesOnceAfterUnavailable(t *testing.T) {
	tests := []struct {
		name      string
		codes     []int
		wantCode  int
		wantCount int
		wantClass ErrorClass
		wantCalls int32
	}{
		{"503 then 200", []int{503, 200}, 200, 2, ClassNone, 2},
		{"503 then 500", []int{503, 500}, 500, 2, ClassHTTP, 2},
		{"503 twice", []int{503, 503}, 503, 2, ClassUnavailable, 2},
		{"502 then 200", []int{502, 200}, 200, 2, ClassNone, 2},
		{"504 then 200", []int{504, 200}, 200, 2, ClassNone, 2},
		{"500 no retry", []int{500, 200}, 500, 1, ClassHTTP, 1},
		{"404 no retry", []int{404, 200}, 404, 1, ClassHTTP, 1},
		{"200 first", []int{200}, 200, 1, ClassNone, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, calls := sequenceServer(t, tt.codes...)

			resp, attempt, err := testCaller().Call(context.Background(), Request{URL: srv.URL}, time.Second)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.StatusCode != tt.wantCode {
				t.Errorf("expected status %d, got %d", tt.wantCode, resp.StatusCode)
			}
			if attempt.Count != tt.wantCount {
				t.Errorf("expected %d attempts, got %d", tt.wantCount, attempt.Count)
			}
			if attempt.LastErrorClass != tt.wantClass {
				t.Errorf("expected class %s, got %s", tt.wantClass, attempt.LastErrorClass)
			}
			if got := calls.Load(); got != tt.wantCalls {
				t.Errorf("expected %d server calls, got %d", tt.wantCalls, got)
			}
		})
	}
}

func TestCaller_RetriesOnTimeout(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			select {
			case <-time.After(500 * time.Millisecond):
			case <-r.Context().Done():
			}
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	resp, attempt, err := testCaller().Call(context.Background(), Request{URL: srv.URL}, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if attempt.Count != 2 || !attempt.Retried() {
		t.Errorf("expected retry, got %+v", attempt)
	}
}

func TestCaller_NetworkErrorAfterRetry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	addr := srv.URL
	srv.Close()

	resp, attempt, err := testCaller().Call(context.Background(), Request{URL: addr}, time.Second)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, ErrHTTPRequest) {
		t.Errorf("expected ErrHTTPRequest, got %v", err)
	}
	if resp != nil {
		t.Errorf("expected nil response, got %+v", resp)
	}
	if attempt.Count != 2 || attempt.LastErrorClass != ClassNetwork {
		t.Errorf("expected 2 attempts with network class, got %+v", attempt)
	}
}

func TestCaller_CancelledDuringBackoff(t *testing.T) {
	srv, calls := sequenceServer(t, 503, 200)

	caller := NewCaller(CallerConfig{ColdStartBackoff: time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	resp, attempt, err := caller.Call(ctx, Request{URL: srv.URL}, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != 503 || attempt.Count != 1 {
		t.Errorf("expected first outcome, got %d after %d attempts", resp.StatusCode, attempt.Count)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 server call, got %d", calls.Load())
	}
}

func TestCaller_SendsBodyAndBearer(t *testing.T) {
	var gotAuth, gotType, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		gotMethod = r.Method
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	resp, _, err := testCaller().Call(context.Background(), Request{
		Method: http.MethodPost,
		URL:    srv.URL,
		Body:   map[string]string{"domain": "example.com"},
		APIKey: "secret",
	}, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotMethod != http.MethodPost {
		t.Errorf("expected POST, got %s", gotMethod)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("expected bearer token, got %q", gotAuth)
	}
	if gotType != "application/json" {
		t.Errorf("expected json content type, got %q", gotType)
	}
	if resp.JSON["ok"] != true {
		t.Errorf("expected parsed JSON body, got %v", resp.JSON)
	}
}

func TestCaller_WarmupHitsHealthWithoutAuth(t *testing.T) {
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := domain.WorkerConfig{BaseURL: srv.URL, APIKey: "k", HealthPath: "/healthz"}
	resp, _, err := testCaller().Warmup(context.Background(), cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.OK() {
		t.Errorf("expected 2xx, got %d", resp.StatusCode)
	}
	if gotPath != "/healthz" {
		t.Errorf("expected /healthz, got %s", gotPath)
	}
	if gotAuth != "" {
		t.Errorf("warmup must be unauthenticated, got %q", gotAuth)
	}
}

func TestCaller_ProbeWithoutBaseURL(t *testing.T) {
	_, _, err := testCaller().Probe(context.Background(), domain.WorkerConfig{}, true, time.Second)
	if !errors.Is(err, ErrNoBaseURL) {
		t.Errorf("expected ErrNoBaseURL, got %v", err)
	}
}

func TestCaller_UnencodableBodyIsNotNetworkError(t *testing.T) {
	srv, calls := sequenceServer(t, 200)

	_, attempt, err := testCaller().Call(context.Background(), Request{
		Method: http.MethodPost,
		URL:    srv.URL,
		Body:   map[string]any{"bad": make(chan int)},
	}, time.Second)

	if !errors.Is(err, ErrHTTPRequest) {
		t.Fatalf("expected ErrHTTPRequest, got %v", err)
	}
	if attempt.LastErrorClass == ClassNetwork {
		t.Error("encoding failure must not be classified as network")
	}
	if attempt.Count != 0 {
		t.Errorf("expected no attempts, got %d", attempt.Count)
	}
	if calls.Load() != 0 {
		t.Errorf("worker must not be called, got %d calls", calls.Load())
	}
}
