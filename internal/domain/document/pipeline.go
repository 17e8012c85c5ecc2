package document

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/thependalorian/cea-gateway/internal/platform/errors"
	"github.com/thependalorian/cea-gateway/internal/platform/logging"
)

// Pipeline reads, validates and encodes an uploaded document in one pass.
// The reader is capped at maxFileSize+1 so an oversized stream is detected
// without buffering the excess.
type Pipeline struct {
	validator *SecurityValidator
	maxSize   int64
	logger    *logging.Logger
}

// NewPipeline builds a processing pipeline around the given validator.
func NewPipeline(validator *SecurityValidator, maxSize int64, logger *logging.Logger) *Pipeline {
	return &Pipeline{
		validator: validator,
		maxSize:   maxSize,
		logger:    logger,
	}
}

// Processed is the outcome of a pipeline run: the raw bytes for direct
// forwarding plus the base64 form for the JSON fallback payload.
type Processed struct {
	Raw    []byte
	Base64 string
	Size   int64
	Format string
}

// Process consumes the upload stream and returns both representations.
// Validation failures come back as KindDomain errors.
func (p *Pipeline) Process(r io.Reader, name, contentType string) (*Processed, error) {
	format := FormatFromContentType(contentType)

	limited := io.LimitReader(r, p.maxSize+1)

	var raw bytes.Buffer
	var encoded bytes.Buffer
	encoder := base64.NewEncoder(base64.StdEncoding, &encoded)

	if _, err := io.Copy(io.MultiWriter(&raw, encoder), limited); err != nil {
		return nil, errors.Wrap(errors.KindDomain, "document.read", "failed to read upload stream", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, errors.Wrap(errors.KindDomain, "document.encode", "failed to encode upload", err)
	}

	result := p.validator.ValidateBytes(raw.Bytes(), format)
	if !result.IsValid {
		p.logger.InfoTag("upload", "rejected document %s: %v", name, result.Error)
		return nil, errors.Wrap(errors.KindDomain, "document.validate",
			fmt.Sprintf("document validation failed: %v", result.Error), result.Error)
	}

	return &Processed{
		Raw:    raw.Bytes(),
		Base64: encoded.String(),
		Size:   result.FileSize,
		Format: format,
	}, nil
}
