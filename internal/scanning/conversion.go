package scanning

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"net/http"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// MaxImageBytes caps an uploaded receipt before conversion
const MaxImageBytes = 10 << 20

var (
	// ErrImageTooLarge is returned for uploads above MaxImageBytes
	ErrImageTooLarge = errors.New("image is too large")
	// ErrUnsupportedImage is returned for uploads that are not images or PDFs
	ErrUnsupportedImage = errors.New("unsupported image format")
)

// PrepareImage validates an uploaded receipt, converts it to PNG when needed
// and returns it base64-encoded for the pipeline.
func PrepareImage(data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty upload", ErrUnsupportedImage)
	}
	if len(data) > MaxImageBytes {
		return "", fmt.Errorf("%w: %d bytes, maximum is %d", ErrImageTooLarge, len(data), MaxImageBytes)
	}

	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(mimeType, ";"); i != -1 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}

	var (
		pngData []byte
		err     error
	)
	switch {
	case mimeType == "image/png" && !isHEICFormat(data):
		pngData = data
	case mimeType == "application/pdf":
		pngData, err = pdfToPNG(data)
	case strings.HasPrefix(mimeType, "image/") || mimeType == "" || isHEICFormat(data):
		pngData, err = imageToPNG(data, mimeType)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedImage, mimeType)
	}
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(pngData), nil
}

// PrepareBase64Image is PrepareImage for a base64 payload, optionally a data
// URL. The content type is sniffed from the decoded bytes.
func PrepareBase64Image(imageBase64 string) (string, error) {
	payload := stripDataURL(imageBase64)
	if payload == "" {
		return "", fmt.Errorf("%w: image data is required", ErrInvalidInput)
	}
	if base64.StdEncoding.DecodedLen(len(payload)) > MaxImageBytes+2 {
		return "", fmt.Errorf("%w: maximum is %d bytes", ErrImageTooLarge, MaxImageBytes)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("%w: decoding base64 image: %v", ErrInvalidInput, err)
	}
	return PrepareImage(data, http.DetectContentType(data))
}

// stripDataURL trims a "data:<type>;base64," prefix
func stripDataURL(imageBase64 string) string {
	payload := strings.TrimSpace(imageBase64)
	if strings.HasPrefix(payload, "data:") {
		if idx := strings.Index(payload, ","); idx != -1 {
			payload = payload[idx+1:]
		}
	}
	return payload
}

// pdfToPNG renders the first page of a PDF receipt
func pdfToPNG(pdfData []byte) ([]byte, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}
	return encodePNG(img)
}

// imageToPNG decodes JPEG, GIF, PNG or HEIC/HEIF and re-encodes it as PNG
func imageToPNG(data []byte, mimeType string) ([]byte, error) {
	var (
		img image.Image
		err error
	)
	if isHEICFormat(data) || isHEICMimeType(mimeType) {
		img, err = heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
	} else {
		img, _, err = image.Decode(bytes.NewReader(data))
		if errors.Is(err, image.ErrFormat) {
			return nil, fmt.Errorf("%w: supported formats are JPEG, PNG, GIF, HEIC, HEIF and PDF", ErrUnsupportedImage)
		}
		if err != nil {
			return nil, fmt.Errorf("decoding image: %w", err)
		}
	}
	return encodePNG(img)
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// isHEICFormat checks for an ftyp box with a HEIC/HEIF brand at offset 4
func isHEICFormat(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "heif", "mif1", "msf1":
		return true
	}
	return false
}

func isHEICMimeType(mimeType string) bool {
	return strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}
