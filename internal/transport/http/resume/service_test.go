package resume

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/thependalorian/cea-gateway/internal/domain/document"
	"github.com/thependalorian/cea-gateway/internal/domain/ingest"
	"github.com/thependalorian/cea-gateway/internal/platform/storage"
	platformtesting "github.com/thependalorian/cea-gateway/internal/platform/testing"
)

type fixedGenerator struct{}

func (fixedGenerator) RequestID() string { return "req_test" }
func (fixedGenerator) SessionID() string { return "sess_test" }

func newTestService(t *testing.T, directURL, agentURL string) (*gin.Engine, storage.UploadRepository) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := platformtesting.SetupTestConfig(t)
	cfg.Upstream.RAGAPIURL = directURL
	cfg.Upstream.AgentAPIURL = agentURL
	cfg.Upload.MaxFileSize = 1024

	logger := platformtesting.SetupTestLogger(t)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&storage.UploadRecord{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	repo := storage.NewUploadRepository(db)

	validator := document.NewSecurityValidator(cfg.Upload.MaxFileSize, []string{"pdf", "doc", "docx"}, logger)
	documents := document.NewPipeline(validator, cfg.Upload.MaxFileSize, logger)

	direct := ingest.NewDirectClient(cfg.Upstream.RAGAPIURL, nil, logger)
	agent := ingest.NewAgentClient(cfg.Upstream.AgentAPIURL, nil, logger)
	pipeline := ingest.NewPipeline(direct, agent, fixedGenerator{}, 5*time.Second, logger)

	service, err := NewService(cfg, logger, pipeline, documents, repo)
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}

	engine := gin.New()
	api := engine.Group("/api")
	if err := service.Register(context.Background(), engine, api); err != nil {
		t.Fatalf("failed to register routes: %v", err)
	}
	return engine, repo
}

type uploadOptions struct {
	skipFile    bool
	contentType string
	body        []byte
	authHeader  string
	apiKey      string
	userID      string
}

func uploadRequest(t *testing.T, opts uploadOptions) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if !opts.skipFile {
		contentType := opts.contentType
		if contentType == "" {
			contentType = "application/pdf"
		}
		body := opts.body
		if body == nil {
			body = []byte("%PDF-1.4 test resume")
		}
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="file"; filename="resume.pdf"`)
		header.Set("Content-Type", contentType)
		part, err := writer.CreatePart(header)
		if err != nil {
			t.Fatalf("failed to create part: %v", err)
		}
		part.Write(body)
	}
	if opts.apiKey != "" {
		writer.WriteField("api_key", opts.apiKey)
	}
	if opts.userID != "" {
		writer.WriteField("user_id", opts.userID)
	}
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/resume/upload", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if opts.authHeader != "" {
		req.Header.Set("Authorization", opts.authHeader)
	}
	return req
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not an error body: %v (%s)", err, w.Body.String())
	}
	return body
}

func unreachableUpstream(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("upstream must not be called before validation passes")
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestUpload_MissingFile(t *testing.T) {
	engine, _ := newTestService(t, unreachableUpstream(t), unreachableUpstream(t))

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, uploadRequest(t, uploadOptions{skipFile: true, authHeader: "Bearer tok"}))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if body := decodeError(t, w); body.Message != msgNoFile || body.Status != "error" {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestUpload_MissingCredential(t *testing.T) {
	engine, _ := newTestService(t, unreachableUpstream(t), unreachableUpstream(t))

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, uploadRequest(t, uploadOptions{}))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if body := decodeError(t, w); body.Message != msgUnauthorized {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestUpload_APIKeyActsAsCredential(t *testing.T) {
	const upstreamBody = `{"ok":true}`
	directSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer key-77" {
			t.Errorf("api_key not promoted to bearer credential, got %q", got)
		}
		w.Write([]byte(upstreamBody))
	}))
	defer directSrv.Close()

	engine, _ := newTestService(t, directSrv.URL, directSrv.URL)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, uploadRequest(t, uploadOptions{apiKey: "key-77"}))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
}

func TestUpload_InvalidFileType(t *testing.T) {
	engine, _ := newTestService(t, unreachableUpstream(t), unreachableUpstream(t))

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, uploadRequest(t, uploadOptions{
		contentType: "image/png",
		authHeader:  "Bearer tok",
	}))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if body := decodeError(t, w); body.Message != msgInvalidType {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestUpload_FileTooLarge(t *testing.T) {
	engine, _ := newTestService(t, unreachableUpstream(t), unreachableUpstream(t))

	// Test config caps uploads at 1024 bytes.
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, uploadRequest(t, uploadOptions{
		body:       append([]byte("%PDF-"), bytes.Repeat([]byte("x"), 2048)...),
		authHeader: "Bearer tok",
	}))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if body := decodeError(t, w); body.Message != msgFileTooLarge {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestUpload_ValidationOrderFileBeforeCredential(t *testing.T) {
	engine, _ := newTestService(t, unreachableUpstream(t), unreachableUpstream(t))

	// No file and no credential: the file check fires first.
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, uploadRequest(t, uploadOptions{skipFile: true}))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if body := decodeError(t, w); body.Message != msgNoFile {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestUpload_LocalVerificationRejectsForeignToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cfg := platformtesting.SetupTestConfig(t)
	cfg.Server.Auth.Enabled = true
	cfg.Server.Token = "verify-secret"
	cfg.Upstream.RAGAPIURL = unreachableUpstream(t)
	cfg.Upstream.AgentAPIURL = cfg.Upstream.RAGAPIURL

	logger := platformtesting.SetupTestLogger(t)
	validator := document.NewSecurityValidator(cfg.Upload.MaxFileSize, []string{"pdf"}, logger)
	documents := document.NewPipeline(validator, cfg.Upload.MaxFileSize, logger)
	direct := ingest.NewDirectClient(cfg.Upstream.RAGAPIURL, nil, logger)
	agent := ingest.NewAgentClient(cfg.Upstream.AgentAPIURL, nil, logger)
	pipeline := ingest.NewPipeline(direct, agent, fixedGenerator{}, 5*time.Second, logger)

	service, err := NewService(cfg, logger, pipeline, documents, nil)
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	engine := gin.New()
	if err := service.Register(context.Background(), engine, nil); err != nil {
		t.Fatalf("failed to register routes: %v", err)
	}

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, uploadRequest(t, uploadOptions{authHeader: "Bearer not-a-signed-jwt"}))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unverifiable token, got %d", w.Code)
	}
	if body := decodeError(t, w); body.Message != msgUnauthorized {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestUpload_DirectSuccessIsVerbatim(t *testing.T) {
	const upstreamBody = `{"analysis":{"score":87},"source":"rag"}`
	directSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(upstreamBody))
	}))
	defer directSrv.Close()

	engine, repo := newTestService(t, directSrv.URL, directSrv.URL)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, uploadRequest(t, uploadOptions{authHeader: "Bearer tok", userID: "user-9"}))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Body.String() != upstreamBody {
		t.Errorf("body not passed through verbatim: %s", w.Body.String())
	}

	record, err := repo.FindByRequestID(context.Background(), "req_test")
	if err != nil || record == nil {
		t.Fatalf("audit record missing: %v", err)
	}
	if record.Path != storage.UploadPathDirect || record.Status != storage.UploadStatusCompleted {
		t.Errorf("unexpected audit record: %+v", record)
	}
	if record.UserID != "user-9" {
		t.Errorf("unexpected user in audit record: %q", record.UserID)
	}
}

func TestUpload_FallbackSuccessIsWrapped(t *testing.T) {
	directSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "document service down", http.StatusInternalServerError)
	}))
	defer directSrv.Close()

	agentSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"mapped_skills":[]}`))
	}))
	defer agentSrv.Close()

	engine, repo := newTestService(t, directSrv.URL, agentSrv.URL)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, uploadRequest(t, uploadOptions{authHeader: "Bearer tok"}))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}

	var envelope struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Data    struct {
			MappedSkills []string `json:"mapped_skills"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("response is not a success envelope: %v", err)
	}
	if envelope.Status != "success" || envelope.Message != msgAnalyzed {
		t.Errorf("unexpected envelope: %+v", envelope)
	}
	if envelope.Data.MappedSkills == nil || len(envelope.Data.MappedSkills) != 0 {
		t.Errorf("unexpected data: %+v", envelope.Data)
	}

	record, err := repo.FindByRequestID(context.Background(), "req_test")
	if err != nil || record == nil {
		t.Fatalf("audit record missing: %v", err)
	}
	if record.Path != storage.UploadPathFallback {
		t.Errorf("unexpected path in audit record: %q", record.Path)
	}
}

func TestUpload_BothPathsFailSurfacesFallback(t *testing.T) {
	directSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"primary exploded"}`, http.StatusBadGateway)
	}))
	defer directSrv.Close()

	agentSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"message":"agent overloaded"}`))
	}))
	defer agentSrv.Close()

	engine, _ := newTestService(t, directSrv.URL, agentSrv.URL)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, uploadRequest(t, uploadOptions{authHeader: "Bearer tok"}))

	// The fallback's status wins, not the primary's.
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	body := decodeError(t, w)
	if body.Message != "Resume analysis failed: agent overloaded" {
		t.Errorf("fallback message must be surfaced, got %q", body.Message)
	}
	if body.Detail == "" {
		t.Error("combined diagnostic must include the primary failure")
	}
}

func TestUpload_FallbackUnreachableReturns500(t *testing.T) {
	directSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "document service down", http.StatusInternalServerError)
	}))
	defer directSrv.Close()

	// An agent URL with nothing listening: the fallback produces no HTTP
	// response at all.
	agentSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	agentURL := agentSrv.URL
	agentSrv.Close()

	engine, _ := newTestService(t, directSrv.URL, agentURL)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, uploadRequest(t, uploadOptions{authHeader: "Bearer tok"}))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 when the fallback is unreachable, got %d", w.Code)
	}
	body := decodeError(t, w)
	if body.Message != msgInternal {
		t.Errorf("expected generic message, got %q", body.Message)
	}
	if body.Detail == "" {
		t.Error("diagnostic detail must carry the transport failure")
	}
}

func TestUploadGet_ReturnsRecord(t *testing.T) {
	engine, repo := newTestService(t, unreachableUpstream(t), unreachableUpstream(t))

	record := &storage.UploadRecord{
		RequestID: "req_lookup",
		UserID:    "user-1",
		Filename:  "resume.pdf",
		Status:    storage.UploadStatusCompleted,
	}
	if err := repo.Save(context.Background(), record); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	// The audit endpoints require a credential.
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/resume/uploads/req_lookup", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credential, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/resume/uploads/req_lookup", nil)
	req.Header.Set("Authorization", "Bearer tok")
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/resume/uploads/absent", nil)
	req.Header.Set("Authorization", "Bearer tok")
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for missing record, got %d", w.Code)
	}
}

func TestUploadList_RequiresUserID(t *testing.T) {
	engine, _ := newTestService(t, unreachableUpstream(t), unreachableUpstream(t))

	req := httptest.NewRequest(http.MethodGet, "/api/resume/uploads", nil)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without user_id, got %d", w.Code)
	}
}
