package scanning

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	errNoObject = errors.New("response is not a JSON object")

	decimalPattern       = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)
	signedDecimalPattern = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)
	currencyPattern      = regexp.MustCompile(`^[A-Z]{3}$`)
)

// rawReceipt keeps every field undecoded so a badly typed field can be
// defaulted on its own instead of failing the whole response.
type rawReceipt struct {
	Merchant   json.RawMessage `json:"merchant"`
	Amount     json.RawMessage `json:"amount"`
	Date       json.RawMessage `json:"date"`
	Items      json.RawMessage `json:"items"`
	Category   json.RawMessage `json:"category"`
	Tax        json.RawMessage `json:"tax"`
	Currency   json.RawMessage `json:"currency"`
	Confidence json.RawMessage `json:"confidence"`
}

// sanitizer applies field defaults relative to a processing date
type sanitizer struct {
	today            string
	fallbackCurrency string
}

func newSanitizer(now time.Time, fallbackCurrency string) sanitizer {
	return sanitizer{
		today:            now.Format(dateLayout),
		fallbackCurrency: fallbackCurrency,
	}
}

// parseReceiptJSON strictly decodes a single JSON object from the response
func parseReceiptJSON(text string) (*rawReceipt, error) {
	text = stripCodeFence(strings.TrimSpace(text))
	if !strings.HasPrefix(text, "{") {
		return nil, errNoObject
	}

	var raw rawReceipt
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}
	return &raw, nil
}

// stripCodeFence removes a markdown fence wrapping the whole response
func stripCodeFence(text string) string {
	if !strings.HasPrefix(text, "```") || !strings.HasSuffix(text, "```") || len(text) < 6 {
		return text
	}
	text = strings.TrimSuffix(strings.TrimPrefix(text, "```"), "```")
	if len(text) >= 4 && strings.EqualFold(text[:4], "json") {
		text = text[4:]
	}
	return strings.TrimSpace(text)
}

// sanitize turns a decoded response into a valid extraction
func (s sanitizer) sanitize(raw *rawReceipt) ReceiptExtraction {
	result := ReceiptExtraction{
		Merchant:   s.merchant(raw.Merchant),
		Amount:     s.money(raw.Amount),
		Date:       s.date(raw.Date),
		Items:      s.items(raw.Items),
		Category:   s.category(raw.Category),
		Tax:        s.money(raw.Tax),
		Currency:   s.currency(raw.Currency),
		Confidence: DefaultConfidence,
	}
	if c, ok := decodeNumber(raw.Confidence, signedDecimalPattern); ok {
		result.Confidence = clamp(c)
	}
	return result
}

// degraded returns the manual-entry default
func (s sanitizer) degraded(confidence float64) ReceiptExtraction {
	return ReceiptExtraction{
		Date:       s.today,
		Items:      []string{},
		Category:   DefaultCategory,
		Currency:   s.fallbackCurrency,
		Confidence: clamp(confidence),
	}
}

func (s sanitizer) merchant(raw json.RawMessage) *string {
	v, ok := decodeString(raw)
	if !ok || v == "" {
		return nil
	}
	return &v
}

// money accepts a non-negative number or a plain decimal string
func (s sanitizer) money(raw json.RawMessage) *float64 {
	v, ok := decodeNumber(raw, decimalPattern)
	if !ok || v < 0 {
		return nil
	}
	return &v
}

func (s sanitizer) date(raw json.RawMessage) string {
	v, ok := decodeString(raw)
	if !ok {
		return s.today
	}
	d, err := time.Parse(dateLayout, v)
	if err != nil {
		return s.today
	}
	return d.Format(dateLayout)
}

func (s sanitizer) items(raw json.RawMessage) []string {
	items := []string{}
	var values []any
	if isNull(raw) || json.Unmarshal(raw, &values) != nil {
		return items
	}
	for _, v := range values {
		text, ok := v.(string)
		if !ok {
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			items = append(items, text)
		}
	}
	return items
}

func (s sanitizer) category(raw json.RawMessage) string {
	v, ok := decodeString(raw)
	if !ok {
		return DefaultCategory
	}
	for _, c := range Categories {
		if strings.EqualFold(c, v) {
			return c
		}
	}
	return DefaultCategory
}

func (s sanitizer) currency(raw json.RawMessage) string {
	v, ok := decodeString(raw)
	if !ok {
		return s.fallbackCurrency
	}
	v = strings.ToUpper(v)
	if !currencyPattern.MatchString(v) {
		return s.fallbackCurrency
	}
	return v
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// decodeString returns a trimmed JSON string value
func decodeString(raw json.RawMessage) (string, bool) {
	if isNull(raw) {
		return "", false
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}
	return strings.TrimSpace(v), true
}

// decodeNumber returns a JSON number, or a string matching pattern.
// Strings with currency symbols, separators or exponents are rejected.
func decodeNumber(raw json.RawMessage, pattern *regexp.Regexp) (float64, bool) {
	if isNull(raw) {
		return 0, false
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	}

	text, ok := decodeString(raw)
	if !ok || !pattern.MatchString(text) {
		return 0, false
	}
	n, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func clamp(confidence float64) float64 {
	return math.Max(0, math.Min(1, confidence))
}
