package document

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/thependalorian/cea-gateway/internal/platform/logging"
)

// SecurityValidator performs layered checks against incoming resume payloads.
type SecurityValidator struct {
	maxFileSize    int64
	allowedFormats []string
	logger         *logging.Logger
}

// NewSecurityValidator constructs a new validator instance.
func NewSecurityValidator(
	maxFileSize int64,
	allowedFormats []string,
	logger *logging.Logger,
) *SecurityValidator {
	return &SecurityValidator{
		maxFileSize:    maxFileSize,
		allowedFormats: allowedFormats,
		logger:         logger,
	}
}

// documentSignatures maps formats to their magic bytes. DOC is the OLE2
// compound file header; DOCX is a ZIP local file header.
var documentSignatures = map[string][]byte{
	"pdf":  {0x25, 0x50, 0x44, 0x46},
	"doc":  {0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1},
	"docx": {0x50, 0x4B, 0x03, 0x04},
}

// executableSignatures are rejected outright regardless of declared format.
var executableSignatures = [][]byte{
	{0x4D, 0x5A},             // MZ, Windows PE
	{0x7F, 0x45, 0x4C, 0x46}, // ELF
}

// FormatFromContentType maps an upload MIME type to the short format name.
// Returns "" for types outside the resume allow-list.
func FormatFromContentType(contentType string) string {
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "application/pdf":
		return "pdf"
	case "application/msword":
		return "doc"
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return "docx"
	}
	return ""
}

// ValidateBytes validates raw document bytes against the declared format.
func (v *SecurityValidator) ValidateBytes(raw []byte, declaredFormat string) ValidationResult {
	result := ValidationResult{IsValid: false, Format: declaredFormat}

	if len(raw) == 0 {
		result.Error = fmt.Errorf("empty document payload")
		return result
	}

	if int64(len(raw)) > v.maxFileSize {
		result.Error = fmt.Errorf(
			"file size exceeds limit: %d bytes (max %d bytes)",
			len(raw),
			v.maxFileSize,
		)
		result.SecurityRisk = "file too large"
		v.logger.Warn(
			"detected oversized document: size=%d max_size=%d format=%s",
			len(raw),
			v.maxFileSize,
			declaredFormat,
		)
		return result
	}

	if declaredFormat == "" || !v.isFormatAllowed(declaredFormat) {
		result.Error = fmt.Errorf("unsupported format: %s", declaredFormat)
		result.SecurityRisk = "unapproved format"
		return result
	}

	for _, signature := range executableSignatures {
		if bytes.HasPrefix(raw, signature) {
			result.Error = fmt.Errorf("executable payload rejected")
			result.SecurityRisk = "executable content"
			v.logger.Warn(
				"detected executable signature in upload: signature_hex=%x format=%s",
				signature,
				declaredFormat,
			)
			return result
		}
	}

	// Content inspection stays advisory: the upstream processors own final
	// parsing, so a signature mismatch is logged but not rejected.
	if !v.validateFileSignature(raw, declaredFormat) {
		actualHeader := fmt.Sprintf("%x", raw[:min(len(raw), 16)])
		result.SecurityRisk = "signature mismatch"
		v.logger.Warn(
			"file signature mismatch: declared_format=%s actual_header=%s",
			declaredFormat,
			actualHeader,
		)
	}

	result.IsValid = true
	result.FileSize = int64(len(raw))
	return result
}

func (v *SecurityValidator) isFormatAllowed(format string) bool {
	format = strings.ToLower(format)
	allowed := v.allowedFormats
	if len(allowed) == 0 {
		allowed = []string{"pdf", "doc", "docx"}
	}

	for _, allowedFormat := range allowed {
		if strings.ToLower(allowedFormat) == format {
			return true
		}
	}
	return false
}

func (v *SecurityValidator) validateFileSignature(raw []byte, format string) bool {
	signature, ok := documentSignatures[strings.ToLower(format)]
	if !ok || len(signature) == 0 {
		return true
	}
	if len(raw) < len(signature) {
		return false
	}
	return bytes.Equal(signature, raw[:len(signature)])
}
