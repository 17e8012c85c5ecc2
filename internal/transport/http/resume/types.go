package resume

// errorBody is the wire shape for every upload rejection and failure.
type errorBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// successEnvelope wraps fallback-path responses so callers can tell them
// apart from a direct-path pass-through.
type successEnvelope struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// Canonical upload messages.
const (
	msgNoFile       = "No file provided"
	msgUnauthorized = "Unauthorized"
	msgInvalidType  = "Invalid file type"
	msgFileTooLarge = "File size exceeds the 5MB limit"
	msgAnalyzed     = "Resume analyzed successfully"
	msgInternal     = "Failed to process resume"
)
