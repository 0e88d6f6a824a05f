package scanning

const (
	// DefaultCategory is used when no known category was read
	DefaultCategory = "Other"
	// DefaultFallbackCurrency is used when no currency code was read
	DefaultFallbackCurrency = "USD"
	// DefaultDegradedConfidence is reported when the response could not be parsed
	DefaultDegradedConfidence = 0.2
	// DefaultConfidence is reported when a parsed response carries no confidence
	DefaultConfidence = 0.5
	// ReviewThreshold is the confidence below which a draft must be reviewed by hand
	ReviewThreshold = 0.7

	dateLayout = "2006-01-02"
)

// ReceiptExtraction is the structured draft read from a receipt image
type ReceiptExtraction struct {
	Merchant   *string  `json:"merchant"`
	Amount     *float64 `json:"amount"`
	Date       string   `json:"date"` // YYYY-MM-DD
	Items      []string `json:"items"`
	Category   string   `json:"category"`
	Tax        *float64 `json:"tax"`
	Currency   string   `json:"currency"`
	Confidence float64  `json:"confidence"` // 0..1
}

// NeedsReview reports whether the draft must be confirmed by hand before use
func (r ReceiptExtraction) NeedsReview() bool {
	return r.Confidence < ReviewThreshold
}

// Outcome is the result of one extraction. It is either Parsed or Degraded.
type Outcome interface {
	// Result returns the sanitized extraction
	Result() ReceiptExtraction
	// RawText returns the service response as received, for display only
	RawText() string

	outcome()
}

// Parsed is an outcome whose response was a well-formed JSON object
type Parsed struct {
	Receipt ReceiptExtraction
	Raw     string
}

// Result returns the sanitized extraction
func (p Parsed) Result() ReceiptExtraction {
	return p.Receipt
}

// RawText returns the service response
func (p Parsed) RawText() string {
	return p.Raw
}

func (Parsed) outcome() {}

// Degraded is an outcome substituted because the response could not be parsed
type Degraded struct {
	Receipt ReceiptExtraction
	Raw     string
	Reason  error
}

// Result returns the default extraction
func (d Degraded) Result() ReceiptExtraction {
	return d.Receipt
}

// RawText returns the service response
func (d Degraded) RawText() string {
	return d.Raw
}

func (Degraded) outcome() {}
