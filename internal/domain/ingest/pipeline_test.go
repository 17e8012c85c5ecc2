package ingest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	platformtesting "github.com/thependalorian/cea-gateway/internal/platform/testing"
)

type fixedGenerator struct{}

func (fixedGenerator) RequestID() string { return "req_fixed" }
func (fixedGenerator) SessionID() string { return "sess_fixed" }

func testUpload() *Upload {
	raw := []byte("%PDF-1.4 body")
	return &Upload{
		Filename:    "resume.pdf",
		ContentType: "application/pdf",
		Raw:         raw,
		Base64:      "JVBERi0xLjQgYm9keQ==",
		UserID:      "user-1",
		Credential:  "Bearer token-abc",
	}
}

func newTestPipeline(t *testing.T, directURL, agentURL string) *Pipeline {
	t.Helper()
	logger := platformtesting.SetupTestLogger(t)
	direct := NewDirectClient(directURL, nil, logger)
	agent := NewAgentClient(agentURL, nil, logger)
	return NewPipeline(direct, agent, fixedGenerator{}, 5*time.Second, logger)
}

func TestProcess_DirectSuccessPassesBodyThrough(t *testing.T) {
	const upstreamBody = `{"analysis":{"skills":["solar"]},"score":0.92}`

	directSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer token-abc" {
			t.Errorf("credential not forwarded, got %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("expected multipart body: %v", err)
		}
		if got := r.FormValue("user_id"); got != "user-1" {
			t.Errorf("user_id not forwarded, got %q", got)
		}
		if _, header, err := r.FormFile("file"); err != nil {
			t.Errorf("file part missing: %v", err)
		} else if header.Filename != "resume.pdf" {
			t.Errorf("unexpected filename %q", header.Filename)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(upstreamBody))
	}))
	defer directSrv.Close()

	agentCalled := false
	agentSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agentCalled = true
	}))
	defer agentSrv.Close()

	result, err := newTestPipeline(t, directSrv.URL, agentSrv.URL).Process(context.Background(), testUpload())
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if result.Path != PathDirect {
		t.Errorf("expected direct path, got %s", result.Path)
	}
	if string(result.Body) != upstreamBody {
		t.Errorf("body not passed through verbatim: %s", result.Body)
	}
	if result.PrimaryErr != nil {
		t.Errorf("unexpected primary error: %v", result.PrimaryErr)
	}
	if agentCalled {
		t.Error("fallback must not fire on direct success")
	}
}

func TestProcess_PrimaryFailureTriggersFallback(t *testing.T) {
	directSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "document service down", http.StatusInternalServerError)
	}))
	defer directSrv.Close()

	agentSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Query     string `json:"query"`
			UserID    string `json:"user_id"`
			RequestID string `json:"request_id"`
			SessionID string `json:"session_id"`
			Files     []struct {
				Name    string `json:"name"`
				Type    string `json:"type"`
				Content string `json:"content"`
			} `json:"files"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("agent payload not decodable: %v", err)
		}
		if payload.Query == "" {
			t.Error("expected fixed instruction in query")
		}
		if payload.RequestID != "req_fixed" || payload.SessionID != "sess_fixed" {
			t.Errorf("injected ids not used: %s / %s", payload.RequestID, payload.SessionID)
		}
		if len(payload.Files) != 1 || payload.Files[0].Content != "JVBERi0xLjQgYm9keQ==" {
			t.Errorf("file attachment malformed: %+v", payload.Files)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"mapped_skills":[]}`))
	}))
	defer agentSrv.Close()

	result, err := newTestPipeline(t, directSrv.URL, agentSrv.URL).Process(context.Background(), testUpload())
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if result.Path != PathFallback {
		t.Errorf("expected fallback path, got %s", result.Path)
	}
	if !result.Success() {
		t.Errorf("expected 2xx fallback, got %d", result.StatusCode)
	}
	if string(result.Body) != `{"mapped_skills":[]}` {
		t.Errorf("unexpected fallback body: %s", result.Body)
	}
	if result.PrimaryErr == nil {
		t.Error("primary failure reason must be preserved")
	}
}

func TestProcess_BothPathsFailSurfacesFallbackStatus(t *testing.T) {
	directSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "primary broken", http.StatusBadGateway)
	}))
	defer directSrv.Close()

	agentSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "agent overloaded", http.StatusServiceUnavailable)
	}))
	defer agentSrv.Close()

	result, err := newTestPipeline(t, directSrv.URL, agentSrv.URL).Process(context.Background(), testUpload())
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if result.Path != PathFallback {
		t.Errorf("expected fallback path, got %s", result.Path)
	}
	if result.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("fallback status must win, got %d", result.StatusCode)
	}
	if result.PrimaryErr == nil {
		t.Error("primary failure reason must be preserved for diagnostics")
	}
}

func TestProcess_FallbackUnreachableReturnsUpstreamError(t *testing.T) {
	directSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "primary broken", http.StatusInternalServerError)
	}))
	defer directSrv.Close()

	// Closed server: the fallback call fails at the transport layer.
	agentSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	agentURL := agentSrv.URL
	agentSrv.Close()

	_, err := newTestPipeline(t, directSrv.URL, agentURL).Process(context.Background(), testUpload())
	if err == nil {
		t.Fatal("expected error when both paths are unusable")
	}
	upstreamErr, ok := err.(*UpstreamError)
	if !ok {
		t.Fatalf("expected *UpstreamError, got %T", err)
	}
	if upstreamErr.Primary == nil {
		t.Error("combined diagnostic must include the primary failure")
	}
}
