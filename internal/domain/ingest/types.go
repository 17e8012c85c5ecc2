package ingest

import "fmt"

// Path names which upstream produced the final response.
type Path string

const (
	PathDirect   Path = "direct"
	PathFallback Path = "fallback"
)

// Upload is the validated resume handed to the pipeline.
type Upload struct {
	Filename    string
	ContentType string
	Raw         []byte
	Base64      string
	UserID      string
	Credential  string // full Authorization header value
}

// Result is the tagged outcome of a pipeline run. Exactly one upstream
// response body is carried; for fallback results PrimaryErr records why the
// direct path was abandoned.
type Result struct {
	Path        Path
	StatusCode  int
	Body        []byte
	ContentType string
	RequestID   string
	SessionID   string
	PrimaryErr  error
}

// Success reports whether the carried upstream response is a 2xx.
func (r *Result) Success() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// UpstreamError is returned when no upstream produced a usable response.
type UpstreamError struct {
	StatusCode int
	Message    string
	Primary    error
}

func (e *UpstreamError) Error() string {
	if e.Primary != nil {
		return fmt.Sprintf("upstream failed with status %d: %s (direct path: %v)",
			e.StatusCode, e.Message, e.Primary)
	}
	return fmt.Sprintf("upstream failed with status %d: %s", e.StatusCode, e.Message)
}

func (e *UpstreamError) Unwrap() error {
	return e.Primary
}
