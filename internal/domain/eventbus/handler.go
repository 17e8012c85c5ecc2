package eventbus

import (
	"github.com/thependalorian/cea-gateway/internal/platform/logging"
)

// AuditLogHandler mirrors upload lifecycle events into the service log so
// the audit table and log file can be cross-referenced by request id.
type AuditLogHandler struct {
	logger *logging.Logger
}

// NewAuditLogHandler creates a handler writing to the given logger.
func NewAuditLogHandler(logger *logging.Logger) *AuditLogHandler {
	return &AuditLogHandler{logger: logger}
}

// Register subscribes the handler to all upload topics on the shared bus.
func (h *AuditLogHandler) Register() error {
	topics := []string{
		EventUploadReceived,
		EventUploadDirect,
		EventUploadFallback,
		EventUploadFailed,
	}
	for _, topic := range topics {
		topic := topic
		if err := SubscribeAsync(topic, func(data UploadEventData) {
			h.handle(topic, data)
		}); err != nil {
			return err
		}
	}
	return nil
}

func (h *AuditLogHandler) handle(topic string, data UploadEventData) {
	switch topic {
	case EventUploadReceived:
		h.logger.InfoTag("events", "upload received: request_id=%s user_id=%s file=%s size=%d",
			data.RequestID, data.UserID, data.Filename, data.SizeBytes)
	case EventUploadDirect:
		h.logger.InfoTag("events", "upload processed directly: request_id=%s status=%d",
			data.RequestID, data.StatusCode)
	case EventUploadFallback:
		h.logger.InfoTag("events", "upload processed via fallback: request_id=%s status=%d",
			data.RequestID, data.StatusCode)
	case EventUploadFailed:
		h.logger.WarnTag("events", "upload failed: request_id=%s status=%d error=%s",
			data.RequestID, data.StatusCode, data.Error)
	}
}
