package scanning

import (
	"context"
	"errors"
)

var (
	// ErrTransport wraps every failure to obtain a response from the extraction service
	ErrTransport = errors.New("extraction service unavailable")
	// ErrInvalidInput is returned for requests that cannot be sent at all
	ErrInvalidInput = errors.New("invalid extraction input")
)

// Request is one extraction call to a multimodal service
type Request struct {
	SystemPrompt string
	UserPrompt   string
	ImageBase64  string
	MIMEType     string
	// UserID identifies the caller to the service for quota accounting
	UserID string
}

// Extractor sends a receipt image to a multimodal model and returns its raw text reply
type Extractor interface {
	// Extract performs one request. Any error wraps ErrTransport.
	Extract(ctx context.Context, req Request) (string, error)
	// Close releases the extractor's resources
	Close() error
}
