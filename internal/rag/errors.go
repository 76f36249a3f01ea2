package rag

import (
	"context"
	"errors"
)

// Pipeline errors. Wrap them with fmt.Errorf("%w: ...") so callers can
// classify failures with errors.Is.
var (
	// ErrUnsupportedInput is an unknown MIME type or unusable extracted text.
	ErrUnsupportedInput = errors.New("unsupported input")

	// ErrEmbedding is a failed embedding provider call.
	ErrEmbedding = errors.New("embedding failed")

	// ErrStore is a failed vector store or repository operation.
	ErrStore = errors.New("store failure")

	// ErrGeneration means no configured chat provider produced an answer.
	ErrGeneration = errors.New("generation failed")

	// ErrUnauthorized means the caller does not own the target workspace or document.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound indicates a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed caller input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDimensionMismatch is a vector whose length differs from the store column.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrRateLimited is a provider quota / HTTP 429 response for one model.
	ErrRateLimited = errors.New("rate limited")

	// ErrAllModelsRateLimited means every model of a provider was rate limited.
	ErrAllModelsRateLimited = errors.New("all AI models are currently rate-limited")

	// ErrProviderNotConfigured is a provider without credentials.
	ErrProviderNotConfigured = errors.New("provider not configured")
)

// IsTransient reports whether a provider error should fall through to the
// next provider. Caller mistakes and cancellation are not transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

// PublicMessage maps an error to the text shown to end users.
func PublicMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAllModelsRateLimited):
		return "All AI models are currently rate-limited. Please try again in a minute."
	case errors.Is(err, ErrGeneration):
		return "Failed to generate an answer. Please try again later."
	case errors.Is(err, ErrEmbedding):
		return "Embedding generation failed. Please try again later."
	case errors.Is(err, ErrUnsupportedInput), errors.Is(err, ErrInvalidInput):
		return err.Error()
	case errors.Is(err, ErrUnauthorized):
		return "Unauthorized"
	case errors.Is(err, ErrNotFound):
		return "Not found"
	case errors.Is(err, ErrStore):
		return "Storage failure. Please try again later."
	default:
		return "Internal error"
	}
}
