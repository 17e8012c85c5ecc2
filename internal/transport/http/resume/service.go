package resume

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"github.com/thependalorian/cea-gateway/internal/domain/auth"
	"github.com/thependalorian/cea-gateway/internal/domain/document"
	"github.com/thependalorian/cea-gateway/internal/domain/eventbus"
	"github.com/thependalorian/cea-gateway/internal/domain/ingest"
	"github.com/thependalorian/cea-gateway/internal/platform/config"
	"github.com/thependalorian/cea-gateway/internal/platform/errors"
	"github.com/thependalorian/cea-gateway/internal/platform/logging"
	"github.com/thependalorian/cea-gateway/internal/platform/storage"
	httptransport "github.com/thependalorian/cea-gateway/internal/transport/http"
)

// Service is the HTTP transport for resume ingestion. It owns request
// validation; everything past validation is delegated to the ingest
// pipeline and recorded in the audit trail.
type Service struct {
	config    *config.Config
	logger    *logging.Logger
	pipeline  *ingest.Pipeline
	documents *document.Pipeline
	uploads   storage.UploadRepository
	tokens    *auth.AuthToken
}

// NewService wires the upload handler with its collaborators.
func NewService(
	cfg *config.Config,
	logger *logging.Logger,
	pipeline *ingest.Pipeline,
	documents *document.Pipeline,
	uploads storage.UploadRepository,
) (*Service, error) {
	if cfg == nil {
		return nil, errors.New(errors.KindConfig, "resume.new", "config is required")
	}
	if logger == nil {
		return nil, errors.New(errors.KindConfig, "resume.new", "logger is required")
	}
	if pipeline == nil {
		return nil, errors.New(errors.KindConfig, "resume.new", "ingest pipeline is required")
	}
	if documents == nil {
		return nil, errors.New(errors.KindConfig, "resume.new", "document pipeline is required")
	}

	service := &Service{
		config:    cfg,
		logger:    logger,
		pipeline:  pipeline,
		documents: documents,
		uploads:   uploads,
	}
	// Optional local verification: off by default, credentials are normally
	// forwarded for the upstreams to judge.
	if cfg.Server.Auth.Enabled && cfg.Server.Token != "" {
		service.tokens = auth.NewAuthToken(cfg.Server.Token)
	}
	return service, nil
}

// Register mounts the upload route on the engine root and the audit query
// routes under the API group.
func (s *Service) Register(ctx context.Context, engine *gin.Engine, api *gin.RouterGroup) error {
	engine.POST("/resume/upload", s.handleUpload)

	if api != nil {
		// Same handler under the API prefix for clients that expect it.
		api.POST("/resume/upload", s.handleUpload)
		api.GET("/resume/uploads/:request_id", s.handleUploadGet)
		api.GET("/resume/uploads", s.handleUploadList)
	}

	s.logger.InfoTag("HTTP", "resume service routes registered")
	return nil
}

// handleUpload accepts a multipart resume, validates it, and runs the
// dual-path ingest pipeline.
// @Summary Upload a resume for analysis
// @Description Forwards the file to the document pipeline, falling back to the agent pipeline when it fails
// @Tags Resume
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Resume document (PDF, DOC or DOCX, max 5MB)"
// @Param user_id formData string false "Owner of the resume"
// @Param api_key formData string false "Credential when no Authorization header is sent"
// @Success 200 {object} object
// @Failure 400 {object} object
// @Failure 401 {object} object
// @Router /resume/upload [post]
func (s *Service) handleUpload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Status: "error", Message: msgNoFile})
		return
	}

	credential := auth.Resolve(c.GetHeader("Authorization"), c.PostForm("api_key"))
	if !credential.Valid() {
		c.JSON(http.StatusUnauthorized, errorBody{Status: "error", Message: msgUnauthorized})
		return
	}

	verifiedUserID := ""
	if s.tokens != nil {
		ok, userID, err := s.tokens.VerifyToken(credential.BearerToken())
		if err != nil || !ok {
			s.logger.WarnTag("auth", "rejected upload: local token verification failed")
			c.JSON(http.StatusUnauthorized, errorBody{Status: "error", Message: msgUnauthorized})
			return
		}
		verifiedUserID = userID
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if document.FormatFromContentType(contentType) == "" {
		c.JSON(http.StatusBadRequest, errorBody{Status: "error", Message: msgInvalidType})
		return
	}

	if fileHeader.Size > s.config.Upload.MaxFileSize {
		c.JSON(http.StatusBadRequest, errorBody{Status: "error", Message: msgFileTooLarge})
		return
	}

	userID := c.PostForm("user_id")
	if userID == "" {
		userID = verifiedUserID
	}
	if userID == "" {
		userID = s.config.Upload.DefaultUserID
	}

	file, err := fileHeader.Open()
	if err != nil {
		s.logger.ErrorTag("upload", "failed to open multipart file: %v", err)
		c.JSON(http.StatusInternalServerError, errorBody{Status: "error", Message: msgInternal})
		return
	}
	defer file.Close()

	processed, err := s.documents.Process(file, fileHeader.Filename, contentType)
	if err != nil {
		// The declared type and size already passed; a pipeline rejection
		// here means the content itself failed inspection.
		if errors.IsKind(err, errors.KindDomain) {
			c.JSON(http.StatusBadRequest, errorBody{Status: "error", Message: msgInvalidType})
			return
		}
		s.logger.ErrorTag("upload", "document pipeline failed: %v", err)
		c.JSON(http.StatusInternalServerError, errorBody{Status: "error", Message: msgInternal})
		return
	}

	upload := &ingest.Upload{
		Filename:    fileHeader.Filename,
		ContentType: contentType,
		Raw:         processed.Raw,
		Base64:      processed.Base64,
		UserID:      userID,
		Credential:  credential.Header,
	}

	eventbus.PublishAsync(eventbus.EventUploadReceived, eventbus.UploadEventData{
		UserID:      userID,
		Filename:    upload.Filename,
		ContentType: contentType,
		SizeBytes:   processed.Size,
		Timestamp:   time.Now(),
	})

	result, err := s.pipeline.Process(c.Request.Context(), upload)
	if err != nil {
		s.respondPipelineError(c, upload, err)
		return
	}

	switch {
	case result.Path == ingest.PathDirect:
		s.respondDirect(c, upload, result)
	case result.Success():
		s.respondFallbackSuccess(c, upload, result)
	default:
		s.respondFallbackFailure(c, upload, result)
	}
}

// respondDirect passes the direct pipeline body through untouched.
func (s *Service) respondDirect(c *gin.Context, upload *ingest.Upload, result *ingest.Result) {
	s.audit(c.Request.Context(), upload, result, storage.UploadStatusCompleted, nil)
	eventbus.PublishAsync(eventbus.EventUploadDirect, s.eventData(upload, result, ""))

	contentType := result.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	c.Data(result.StatusCode, contentType, result.Body)
}

func (s *Service) respondFallbackSuccess(c *gin.Context, upload *ingest.Upload, result *ingest.Result) {
	var data interface{}
	if err := sonic.Unmarshal(result.Body, &data); err != nil {
		s.logger.ErrorTag("upload", "fallback response is not valid JSON: %v", err)
		s.audit(c.Request.Context(), upload, result, storage.UploadStatusFailed, err)
		c.JSON(http.StatusInternalServerError, errorBody{Status: "error", Message: msgInternal})
		return
	}

	s.audit(c.Request.Context(), upload, result, storage.UploadStatusCompleted, nil)
	eventbus.PublishAsync(eventbus.EventUploadFallback, s.eventData(upload, result, ""))

	c.JSON(http.StatusOK, successEnvelope{
		Status:  "success",
		Message: msgAnalyzed,
		Data:    data,
	})
}

// respondFallbackFailure surfaces the fallback's status and message; the
// primary failure is kept as a diagnostic detail, never as the headline.
func (s *Service) respondFallbackFailure(c *gin.Context, upload *ingest.Upload, result *ingest.Result) {
	message := upstreamMessage(result.Body)
	detail := ""
	if result.PrimaryErr != nil {
		detail = "direct path: " + result.PrimaryErr.Error()
	}

	s.audit(c.Request.Context(), upload, result, storage.UploadStatusFailed, result.PrimaryErr)
	eventbus.PublishAsync(eventbus.EventUploadFailed, s.eventData(upload, result, message))

	c.JSON(result.StatusCode, errorBody{
		Status:  "error",
		Message: "Resume analysis failed: " + message,
		Detail:  detail,
	})
}

// respondPipelineError handles the case where the fallback never produced
// an HTTP response at all.
func (s *Service) respondPipelineError(c *gin.Context, upload *ingest.Upload, err error) {
	s.logger.ErrorTag("upload", "ingest pipeline failed: %v", err)

	record := &storage.UploadRecord{
		UserID:      upload.UserID,
		Filename:    upload.Filename,
		ContentType: upload.ContentType,
		SizeBytes:   int64(len(upload.Raw)),
		Status:      storage.UploadStatusFailed,
	}
	s.saveRecord(c.Request.Context(), record, err)

	eventbus.PublishAsync(eventbus.EventUploadFailed, eventbus.UploadEventData{
		UserID:    upload.UserID,
		Filename:  upload.Filename,
		Error:     err.Error(),
		Timestamp: time.Now(),
	})

	c.JSON(http.StatusInternalServerError, errorBody{
		Status:  "error",
		Message: msgInternal,
		Detail:  err.Error(),
	})
}

func (s *Service) audit(ctx context.Context, upload *ingest.Upload, result *ingest.Result, status string, cause error) {
	record := &storage.UploadRecord{
		RequestID:   result.RequestID,
		UserID:      upload.UserID,
		Filename:    upload.Filename,
		ContentType: upload.ContentType,
		SizeBytes:   int64(len(upload.Raw)),
		Path:        string(result.Path),
		Status:      status,
		StatusCode:  result.StatusCode,
	}
	s.saveRecord(ctx, record, cause)
}

func (s *Service) saveRecord(ctx context.Context, record *storage.UploadRecord, cause error) {
	if s.uploads == nil {
		return
	}
	if cause != nil {
		if detail, err := sonic.Marshal(map[string]string{"error": cause.Error()}); err == nil {
			record.Detail = datatypes.JSON(detail)
		}
	}
	// Auditing must not fail the upload.
	if err := s.uploads.Save(ctx, record); err != nil {
		s.logger.WarnTag("storage", "failed to save upload record: %v", err)
	}
}

func (s *Service) eventData(upload *ingest.Upload, result *ingest.Result, errMsg string) eventbus.UploadEventData {
	return eventbus.UploadEventData{
		RequestID:   result.RequestID,
		SessionID:   result.SessionID,
		UserID:      upload.UserID,
		Filename:    upload.Filename,
		ContentType: upload.ContentType,
		SizeBytes:   int64(len(upload.Raw)),
		Path:        string(result.Path),
		StatusCode:  result.StatusCode,
		Error:       errMsg,
		Timestamp:   time.Now(),
	}
}

// upstreamMessage extracts a human-readable message from an upstream error
// body, falling back to the raw text.
func upstreamMessage(body []byte) string {
	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Detail  string `json:"detail"`
	}
	if err := sonic.Unmarshal(body, &parsed); err == nil {
		for _, candidate := range []string{parsed.Message, parsed.Error, parsed.Detail} {
			if candidate != "" {
				return candidate
			}
		}
	}
	text := strings.TrimSpace(string(body))
	if text == "" {
		return "upstream returned no detail"
	}
	if len(text) > 512 {
		text = text[:512]
	}
	return text
}

// requireCredential applies the same credential rule as the upload route to
// the audit query endpoints.
func (s *Service) requireCredential(c *gin.Context) bool {
	credential := auth.Resolve(c.GetHeader("Authorization"), c.Query("api_key"))
	if !credential.Valid() {
		httptransport.RespondError(c, http.StatusUnauthorized, msgUnauthorized, nil)
		return false
	}
	if s.tokens != nil {
		if ok, _, err := s.tokens.VerifyToken(credential.BearerToken()); err != nil || !ok {
			httptransport.RespondError(c, http.StatusUnauthorized, msgUnauthorized, nil)
			return false
		}
	}
	return true
}

// handleUploadGet returns one audit record by request id.
// @Summary Fetch a single upload record
// @Tags Resume
// @Produce json
// @Param request_id path string true "Request identifier"
// @Success 200 {object} httptransport.APIResponse
// @Failure 404 {object} httptransport.APIResponse
// @Router /api/resume/uploads/{request_id} [get]
func (s *Service) handleUploadGet(c *gin.Context) {
	if !s.requireCredential(c) {
		return
	}
	if s.uploads == nil {
		httptransport.RespondError(c, http.StatusServiceUnavailable, "audit storage disabled", nil)
		return
	}

	record, err := s.uploads.FindByRequestID(c.Request.Context(), c.Param("request_id"))
	if err != nil {
		s.logger.ErrorTag("storage", "upload lookup failed: %v", err)
		httptransport.RespondError(c, http.StatusInternalServerError, "failed to load upload record", nil)
		return
	}
	if record == nil {
		httptransport.RespondError(c, http.StatusNotFound, "upload record not found", nil)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, record, "")
}

// handleUploadList pages through a user's upload history.
// @Summary List upload records for a user
// @Tags Resume
// @Produce json
// @Param user_id query string true "Owner of the uploads"
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Page offset"
// @Success 200 {object} httptransport.APIResponse
// @Router /api/resume/uploads [get]
func (s *Service) handleUploadList(c *gin.Context) {
	if !s.requireCredential(c) {
		return
	}
	if s.uploads == nil {
		httptransport.RespondError(c, http.StatusServiceUnavailable, "audit storage disabled", nil)
		return
	}

	userID := c.Query("user_id")
	if userID == "" {
		httptransport.RespondError(c, http.StatusBadRequest, "user_id is required", nil)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	records, total, err := s.uploads.ListByUserID(c.Request.Context(), userID, limit, offset)
	if err != nil {
		s.logger.ErrorTag("storage", "upload list failed: %v", err)
		httptransport.RespondError(c, http.StatusInternalServerError, "failed to list upload records", nil)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, gin.H{
		"total":   total,
		"uploads": records,
	}, "")
}
