package kg

import (
	"context"
	"errors"
	"strings"

	"github.com/yungbote/kgbridge-backend/internal/platform/openai"
)

// Error codes for the ingestion taxonomy. Every code is terminal for the
// current attempt; there is no automatic retry.
const (
	// Configuration (raised before any external call).
	CodeConfigMissingModel     = "config_missing_model"
	CodeConfigMissingPrompt    = "config_missing_prompt"
	CodeConfigMissingMaxTokens = "config_missing_max_tokens"
	CodeConfigInvalidModelKey  = "config_invalid_model_key"
	CodeConfigProviderMismatch = "config_provider_mismatch"

	// Transport.
	CodeRequestAborted     = "request_aborted"
	CodeProviderKeyMissing = "provider_key_missing"
	CodeProviderHTTPError  = "provider_http_error"

	// Shape.
	CodeChunkingInvalidJSON = "chunking_invalid_json"
	CodeChunkingEmptyOutput = "chunking_empty_output"
	CodeExtractInvalidJSON  = "extract_invalid_json"
	CodeExtractEmptyOutput  = "extract_empty_output"

	// Graph sink.
	CodeGraphWriteFailed = "graph_write_failed"
)

// IngestError is a typed, terminal ingestion failure. Code is stable and ends
// up verbatim in the audit log and status endpoint.
type IngestError struct {
	Code    string
	Message string
}

func (e *IngestError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

func NewIngestError(code, message string) *IngestError {
	return &IngestError{Code: code, Message: message}
}

// AsIngestError unwraps err into an *IngestError, or wraps it under the given
// fallback code.
func AsIngestError(err error, fallbackCode string) *IngestError {
	if err == nil {
		return nil
	}
	var ie *IngestError
	if errors.As(err, &ie) {
		return ie
	}
	return &IngestError{Code: fallbackCode, Message: err.Error()}
}

// classifyGenerationError maps a failed generation call to the taxonomy.
// stage is "chunking" or "extract".
func classifyGenerationError(stage string, err error) *IngestError {
	if err == nil {
		return nil
	}
	msg := err.Error()

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &IngestError{Code: CodeRequestAborted, Message: msg}
	}
	if errors.Is(err, openai.ErrEmptyOutput) {
		return &IngestError{Code: stage + "_empty_output", Message: msg}
	}
	var mj *openai.MalformedJSONError
	if errors.As(err, &mj) {
		return &IngestError{Code: stage + "_invalid_json", Message: msg}
	}
	if strings.Contains(msg, "model refused") {
		return &IngestError{Code: stage + "_empty_output", Message: msg}
	}
	return &IngestError{Code: CodeProviderHTTPError, Message: msg}
}
