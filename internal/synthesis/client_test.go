package synthesis

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestSynthesize_DiagnosisIDAliases(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"camel", `{"diagnosisId":"d-1"}`, "d-1"},
		{"snake", `{"diagnosis_id":"d-2"}`, "d-2"},
		{"id", `{"id":"d-3"}`, "d-3"},
		{"first alias wins", `{"id":"x","diagnosisId":"d-4"}`, "d-4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			id, err := New(Config{URL: srv.URL}).Synthesize(context.Background(), "t-1", uuid.New())
			if err != nil {
				t.Fatalf("Synthesize: %v", err)
			}
			if id != tt.want {
				t.Errorf("id = %q, want %q", id, tt.want)
			}
		})
	}
}

func TestSynthesize_Request(t *testing.T) {
	runID := uuid.New()
	var gotPath, gotAuth string
	var gotBody map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"diagnosisId":"d"}`))
	}))
	defer srv.Close()

	c := New(Config{URL: srv.URL + "/", APIKey: "secret"})
	if _, err := c.Synthesize(context.Background(), "t-1", runID); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	if gotPath != "/api/synthesize" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("auth = %q", gotAuth)
	}
	if gotBody["tenant_id"] != "t-1" || gotBody["run_id"] != runID.String() {
		t.Errorf("body = %v", gotBody)
	}
}

func TestSynthesize_Errors(t *testing.T) {
	tests := []struct {
		name string
		code int
		body string
	}{
		{"http error", http.StatusBadGateway, `upstream down`},
		{"not json", http.StatusOK, `ok`},
		{"no id", http.StatusOK, `{"status":"ok"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.code)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := New(Config{URL: srv.URL}).Synthesize(context.Background(), "t-1", uuid.New())
			if err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestSynthesize_NoIDSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"diagnosisId":""}`))
	}))
	defer srv.Close()

	_, err := New(Config{URL: srv.URL}).Synthesize(context.Background(), "t-1", uuid.New())
	if !errors.Is(err, ErrNoDiagnosisID) {
		t.Errorf("err = %v, want ErrNoDiagnosisID", err)
	}
}

func TestSynthesize_HTTPErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(strings.Repeat("x", 500)))
	}))
	defer srv.Close()

	_, err := New(Config{URL: srv.URL}).Synthesize(context.Background(), "t-1", uuid.New())
	if err == nil || !strings.Contains(err.Error(), "HTTP 500") {
		t.Fatalf("err = %v", err)
	}
	if len(err.Error()) > 300 {
		t.Errorf("error message not truncated: %d chars", len(err.Error()))
	}
}
