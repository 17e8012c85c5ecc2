package ingest

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/thependalorian/cea-gateway/internal/platform/errors"
	"github.com/thependalorian/cea-gateway/internal/platform/logging"
)

// DirectClient forwards the original document to the RAG backend as
// multipart form data, preserving the caller's credential.
type DirectClient struct {
	url    string
	client *http.Client
	logger *logging.Logger
}

// NewDirectClient builds a client for the document-native backend.
func NewDirectClient(url string, client *http.Client, logger *logging.Logger) *DirectClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &DirectClient{
		url:    url,
		client: client,
		logger: logger,
	}
}

// Post submits the upload and returns the backend response as-is.
// The body is read fully so the caller can pass it through verbatim.
func (c *DirectClient) Post(ctx context.Context, upload *Upload) (int, []byte, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		`form-data; name="file"; filename="`+escapeQuotes(upload.Filename)+`"`)
	header.Set("Content-Type", upload.ContentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return 0, nil, "", errors.Wrap(errors.KindUpstream, "direct.encode", "failed to build multipart body", err)
	}
	if _, err := part.Write(upload.Raw); err != nil {
		return 0, nil, "", errors.Wrap(errors.KindUpstream, "direct.encode", "failed to write file part", err)
	}
	if err := writer.WriteField("user_id", upload.UserID); err != nil {
		return 0, nil, "", errors.Wrap(errors.KindUpstream, "direct.encode", "failed to write user_id field", err)
	}
	if err := writer.Close(); err != nil {
		return 0, nil, "", errors.Wrap(errors.KindUpstream, "direct.encode", "failed to finalize multipart body", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &buf)
	if err != nil {
		return 0, nil, "", errors.Wrap(errors.KindUpstream, "direct.post", "failed to build request", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if upload.Credential != "" {
		req.Header.Set("Authorization", upload.Credential)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, "", errors.Wrap(errors.KindUpstream, "direct.post", "direct pipeline unreachable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, "", errors.Wrap(errors.KindUpstream, "direct.post", "failed to read direct response", err)
	}

	contentType := resp.Header.Get("Content-Type")
	c.logger.DebugTag("upstream", "direct pipeline responded: status=%d bytes=%d", resp.StatusCode, len(body))
	return resp.StatusCode, body, contentType, nil
}

func escapeQuotes(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}
