package scanning

import (
	"fmt"
	"strings"
)

// Categories is the closed set of category hints the model may suggest
var Categories = []string{
	"Food & Dining",
	"Transportation",
	"Shopping",
	"Entertainment",
	"Bills & Utilities",
	"Healthcare",
	"Travel",
	"Education",
	"Business",
	DefaultCategory,
}

// receiptSystemPrompt is shared by all extraction backends
var receiptSystemPrompt = fmt.Sprintf(`You are an expert at reading receipts and invoices. Carefully read all text in the image and return ONLY a JSON object with this exact format:
{
  "merchant": "Business name, or null",
  "amount": 0.00,
  "date": "YYYY-MM-DD",
  "items": ["Item name"],
  "category": "One of: %s",
  "tax": 0.00,
  "currency": "Three-letter currency code such as USD or EUR",
  "confidence": 0.0
}

Rules:
- "amount" is the final total charged and "tax" the tax charged; both must be numbers (not strings), or null if you cannot read them
- "date" is the transaction date in YYYY-MM-DD format, or null
- "items" lists the purchased line items; use an empty array if none are readable
- "category" must be exactly one of the listed categories
- "confidence" is a number between 0 and 1 describing how certain you are about the extracted data
- If you cannot find a field, use null for that field
- Do not include any text before or after the JSON
- Do not use markdown code blocks`, strings.Join(Categories, ", "))

const receiptUserPrompt = `Extract the receipt data from the attached image.`
