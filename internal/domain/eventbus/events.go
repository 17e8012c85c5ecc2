package eventbus

import "time"

// Upload lifecycle topics.
const (
	EventUploadReceived = "upload:received"
	EventUploadDirect   = "upload:direct"
	EventUploadFallback = "upload:fallback"
	EventUploadFailed   = "upload:failed"

	// System events.
	EventSystemError = "system:error"
	EventSystemInfo  = "system:info"
)

// UploadEventData is published at each stage of a resume upload.
type UploadEventData struct {
	RequestID   string    `json:"request_id"`
	SessionID   string    `json:"session_id,omitempty"`
	UserID      string    `json:"user_id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type,omitempty"`
	SizeBytes   int64     `json:"size_bytes,omitempty"`
	Path        string    `json:"path,omitempty"`
	StatusCode  int       `json:"status_code,omitempty"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// SystemEventData carries out-of-band service notices.
type SystemEventData struct {
	Level   string      `json:"level"` // error, warn, info
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
