package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"

	"github.com/zombor/expense-tracker/internal/expense"
	"github.com/zombor/expense-tracker/internal/scanning"
)

// maxScanBodySize bounds a JSON scan body: a base64 image of MaxImageBytes
// plus room for a data URL prefix and the JSON envelope
var maxScanBodySize = int64(base64.StdEncoding.EncodedLen(scanning.MaxImageBytes)) + 64<<10

const imageTooLargeMessage = "Image is too large. Maximum size is 10MB. Please compress or resize your image."

// scanResponse is the result of one receipt scan
type scanResponse struct {
	Success     bool                       `json:"success"`
	Data        scanning.ReceiptExtraction `json:"data"`
	RawText     string                     `json:"rawText"`
	Degraded    bool                       `json:"degraded"`
	NeedsReview bool                       `json:"needs_review"`
	Draft       *expense.Draft             `json:"draft,omitempty"`
}

// scanImage reads the image to scan as base64, from either a multipart upload
// or a JSON body {"imageBase64": "..."}
func scanImage(w http.ResponseWriter, r *http.Request) (string, bool) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return scanImageJSON(w, r)
	}

	data, filename, contentType, ok := readUpload(w, r)
	if !ok {
		return "", false
	}

	imageBase64, err := scanning.PrepareImage(data, contentType)
	if err != nil {
		slog.Warn("Rejected receipt upload", "filename", filename, "content_type", contentType, "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return imageBase64, true
}

// scanImageJSON reads {"imageBase64": "..."} and converts the image the same
// way as an upload
func scanImageJSON(w http.ResponseWriter, r *http.Request) (string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxScanBodySize)
	var req struct {
		ImageBase64 string `json:"imageBase64"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusBadRequest, imageTooLargeMessage)
			return "", false
		}
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return "", false
	}

	imageBase64, err := scanning.PrepareBase64Image(req.ImageBase64)
	if err != nil {
		slog.Warn("Rejected receipt image", "error", err)
		if errors.Is(err, scanning.ErrImageTooLarge) {
			writeError(w, http.StatusBadRequest, imageTooLargeMessage)
			return "", false
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return imageBase64, true
}

// handleScanReceipt extracts a draft expense from a receipt image
func (s *Server) handleScanReceipt(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r)
	if !s.limiter.Allow(userID) {
		slog.Warn("Scan rate limit exceeded", "user_id", userID)
		writeError(w, http.StatusTooManyRequests, "Too many receipt scans. Please try again later.")
		return
	}

	imageBase64, ok := scanImage(w, r)
	if !ok {
		return
	}

	outcome, err := s.pipeline.Extract(r.Context(), imageBase64, userID)
	if err != nil {
		if errors.Is(err, scanning.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"error":   "OCR processing failed",
			"details": err.Error(),
		})
		return
	}

	result := outcome.Result()
	resp := scanResponse{
		Success:     true,
		Data:        result,
		RawText:     outcome.RawText(),
		NeedsReview: result.NeedsReview(),
	}
	if degraded, ok := outcome.(scanning.Degraded); ok {
		resp.Degraded = true
		slog.Info("Returning degraded scan for manual entry", "user_id", userID, "reason", degraded.Reason)
	}

	// Draft failures are logged and the scan result is still returned
	draft, err := s.service.DraftFromExtraction(r.Context(), userID, outcome)
	if err != nil {
		slog.Warn("Failed to build draft expense", "user_id", userID, "error", err)
	} else {
		resp.Draft = draft
	}

	writeJSON(w, http.StatusOK, resp)
}
