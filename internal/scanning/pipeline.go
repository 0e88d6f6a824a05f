package scanning

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Config holds the pipeline's defaults
type Config struct {
	// FallbackCurrency is reported when no valid currency code was read
	FallbackCurrency string
	// DegradedConfidence is reported for responses that could not be parsed
	DegradedConfidence float64
	// Now returns the processing time. Defaults to time.Now.
	Now func() time.Time
}

// Pipeline turns receipt images into draft expenses through one Extractor
type Pipeline struct {
	extractor Extractor
	config    Config
}

// NewPipeline creates a Pipeline. Zero config fields take the package defaults.
func NewPipeline(extractor Extractor, config Config) *Pipeline {
	if config.FallbackCurrency == "" {
		config.FallbackCurrency = DefaultFallbackCurrency
	}
	config.FallbackCurrency = strings.ToUpper(config.FallbackCurrency)
	if config.DegradedConfidence <= 0 {
		config.DegradedConfidence = DefaultDegradedConfidence
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Pipeline{
		extractor: extractor,
		config:    config,
	}
}

// Extract sends one image to the extraction service and returns the
// sanitized result. Unparseable responses yield a Degraded outcome; transport
// failures are returned as errors wrapping ErrTransport.
func (p *Pipeline) Extract(ctx context.Context, imageBase64 string, userID string) (Outcome, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user ID is required", ErrInvalidInput)
	}

	payload, mimeType, err := decodeImage(imageBase64)
	if err != nil {
		return nil, err
	}

	slog.Info("Processing receipt extraction", "user_id", userID, "content_type", mimeType, "size", len(payload))

	text, err := p.extractor.Extract(ctx, Request{
		SystemPrompt: receiptSystemPrompt,
		UserPrompt:   receiptUserPrompt,
		ImageBase64:  payload,
		MIMEType:     mimeType,
		UserID:       userID,
	})
	if err != nil {
		slog.Error("Receipt extraction failed", "user_id", userID, "error", err)
		return nil, err
	}

	s := newSanitizer(p.config.Now(), p.config.FallbackCurrency)

	raw, err := parseReceiptJSON(text)
	if err != nil {
		slog.Warn("Unparseable extraction response, manual entry required",
			"user_id", userID,
			"error", err,
			"raw_length", len(text),
		)
		return Degraded{
			Receipt: s.degraded(p.config.DegradedConfidence),
			Raw:     text,
			Reason:  err,
		}, nil
	}

	return Parsed{
		Receipt: s.sanitize(raw),
		Raw:     text,
	}, nil
}

// Close closes the underlying extractor
func (p *Pipeline) Close() error {
	return p.extractor.Close()
}

// decodeImage validates a base64 payload (optionally a data URL) and sniffs its type
func decodeImage(imageBase64 string) (string, string, error) {
	payload := stripDataURL(imageBase64)
	if payload == "" {
		return "", "", fmt.Errorf("%w: image data is required", ErrInvalidInput)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", "", fmt.Errorf("%w: decoding base64 image: %v", ErrInvalidInput, err)
	}

	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		return "", "", fmt.Errorf("%w: unsupported content type %s", ErrInvalidInput, mimeType)
	}

	return payload, mimeType, nil
}
