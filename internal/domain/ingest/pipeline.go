package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/thependalorian/cea-gateway/internal/platform/logging"
	"github.com/thependalorian/cea-gateway/internal/platform/observability"
)

// Pipeline runs the two-step ingest strategy: try the direct document
// backend first, fall back to the agent backend when it fails. The state
// machine has no loops and no retries; each invocation reaches exactly one
// terminal outcome.
type Pipeline struct {
	direct  *DirectClient
	agent   *AgentClient
	ids     Generator
	timeout time.Duration
	logger  *logging.Logger
}

// NewPipeline wires both upstream clients behind one entry point.
func NewPipeline(direct *DirectClient, agent *AgentClient, ids Generator, timeout time.Duration, logger *logging.Logger) *Pipeline {
	if ids == nil {
		ids = UUIDGenerator{}
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Pipeline{
		direct:  direct,
		agent:   agent,
		ids:     ids,
		timeout: timeout,
		logger:  logger,
	}
}

// Process attempts the direct path, then the fallback. A non-nil Result is
// returned whenever some upstream produced an HTTP response; the error
// return fires only when the fallback itself is unreachable.
func (p *Pipeline) Process(ctx context.Context, upload *Upload) (*Result, error) {
	requestID := p.ids.RequestID()
	sessionID := p.ids.SessionID()

	directCtx, cancel := context.WithTimeout(ctx, p.timeout)
	spanCtx, spanEnd := observability.StartSpan(directCtx, "ingest.direct", "post")
	status, body, contentType, err := p.direct.Post(spanCtx, upload)
	spanEnd(err)
	cancel()

	if err == nil && status >= 200 && status < 300 {
		return &Result{
			Path:        PathDirect,
			StatusCode:  status,
			Body:        body,
			ContentType: contentType,
			RequestID:   requestID,
			SessionID:   sessionID,
		}, nil
	}

	// Soft failure: the direct path's error only selects the fallback, it
	// is never surfaced on its own.
	primaryErr := err
	if primaryErr == nil {
		primaryErr = fmt.Errorf("direct pipeline returned status %d", status)
	}
	p.logger.WarnTag("ingest", "direct path failed, trying fallback: request_id=%s reason=%v", requestID, primaryErr)

	agentCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	spanCtx, spanEnd = observability.StartSpan(agentCtx, "ingest.agent", "analyze")
	status, body, err = p.agent.Analyze(spanCtx, upload, requestID, sessionID)
	spanEnd(err)
	if err != nil {
		return nil, &UpstreamError{
			StatusCode: 0,
			Message:    err.Error(),
			Primary:    primaryErr,
		}
	}

	return &Result{
		Path:       PathFallback,
		StatusCode: status,
		Body:       body,
		RequestID:  requestID,
		SessionID:  sessionID,
		PrimaryErr: primaryErr,
	}, nil
}
