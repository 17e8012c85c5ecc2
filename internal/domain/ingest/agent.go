package ingest

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/bytedance/sonic"

	"github.com/thependalorian/cea-gateway/internal/platform/errors"
	"github.com/thependalorian/cea-gateway/internal/platform/logging"
)

// resumeInstruction is the fixed query sent on the fallback path. The agent
// backend drives its analysis entirely from this instruction plus the
// attached file.
const resumeInstruction = "Please analyze this resume for climate economy career opportunities. " +
	"Extract key skills and experience, map any military experience to civilian equivalents, " +
	"and recommend suitable clean energy roles."

// agentRequest is the JSON envelope for the agent invocation backend.
type agentRequest struct {
	Query     string      `json:"query"`
	UserID    string      `json:"user_id"`
	RequestID string      `json:"request_id"`
	SessionID string      `json:"session_id"`
	Files     []agentFile `json:"files"`
}

type agentFile struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Content string `json:"content"` // base64 of the original bytes
}

// AgentClient re-encodes the document and invokes the agent backend.
type AgentClient struct {
	url    string
	client *http.Client
	logger *logging.Logger
}

// NewAgentClient builds a client for the agent invocation backend.
func NewAgentClient(url string, client *http.Client, logger *logging.Logger) *AgentClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &AgentClient{
		url:    url,
		client: client,
		logger: logger,
	}
}

// Analyze posts the normalized request and returns the backend response.
func (c *AgentClient) Analyze(ctx context.Context, upload *Upload, requestID, sessionID string) (int, []byte, error) {
	payload := agentRequest{
		Query:     resumeInstruction,
		UserID:    upload.UserID,
		RequestID: requestID,
		SessionID: sessionID,
		Files: []agentFile{
			{
				Name:    upload.Filename,
				Type:    upload.ContentType,
				Content: upload.Base64,
			},
		},
	}

	encoded, err := sonic.Marshal(payload)
	if err != nil {
		return 0, nil, errors.Wrap(errors.KindUpstream, "agent.encode", "failed to encode agent request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(encoded))
	if err != nil {
		return 0, nil, errors.Wrap(errors.KindUpstream, "agent.post", "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if upload.Credential != "" {
		req.Header.Set("Authorization", upload.Credential)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, errors.Wrap(errors.KindUpstream, "agent.post", "agent pipeline unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, errors.Wrap(errors.KindUpstream, "agent.post", "failed to read agent response", err)
	}

	c.logger.DebugTag("upstream", "agent pipeline responded: status=%d bytes=%d", resp.StatusCode, len(body))
	return resp.StatusCode, body, nil
}
