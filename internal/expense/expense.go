package expense

import "time"

// DateLayout is the wire format of expense dates
const DateLayout = "2006-01-02"

// PeriodMonthly is the only budget period
const PeriodMonthly = "monthly"

// Expense is a single recorded spend
type Expense struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Description string    `json:"description"`
	Amount      int64     `json:"amount"` // Amount in minor units
	Date        time.Time `json:"date"`
	CategoryID  string    `json:"category_id"`
	CurrencyID  string    `json:"currency_id"`
	Notes       string    `json:"notes,omitempty"`
	ReceiptPath string    `json:"receipt_url,omitempty"`
	ContentType string    `json:"receipt_content_type,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Budget is a monthly spending limit for one category
type Budget struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	CategoryID string    `json:"category_id"`
	Amount     int64     `json:"amount"` // Amount in minor units
	CurrencyID string    `json:"currency_id"`
	Period     string    `json:"period"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	// Spent is derived from the current month's expenses and never stored
	Spent int64 `json:"spent"`
}

// Category groups expenses. Categories are per user.
type Category struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"created_at"`
}

// Currency is shared reference data
type Currency struct {
	ID            string `json:"id"`
	Code          string `json:"code"`
	Name          string `json:"name"`
	Symbol        string `json:"symbol"`
	DecimalPlaces int    `json:"decimal_places"`
}

// Profile holds per-user settings. ID is the user ID.
type Profile struct {
	ID         string    `json:"id"`
	Email      string    `json:"email,omitempty"`
	FullName   string    `json:"full_name,omitempty"`
	CurrencyID string    `json:"currency_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ExpenseInput is the user-editable part of an expense
type ExpenseInput struct {
	Description string `json:"description"`
	Amount      int64  `json:"amount"`
	Date        string `json:"date"` // YYYY-MM-DD
	CategoryID  string `json:"category_id"`
	CurrencyID  string `json:"currency_id"`
	Notes       string `json:"notes,omitempty"`
}
