package expense

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxDescriptionLength bounds expense descriptions, in characters
const MaxDescriptionLength = 200

// ErrNotFound is returned when a record does not exist for the caller
var ErrNotFound = errors.New("not found")

// ValidationError names one rejected input field
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is returned before any remote call when input is invalid
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, 0, len(v))
	for _, e := range v {
		msgs = append(msgs, e.Field+": "+e.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (v *ValidationErrors) add(field, message string) {
	*v = append(*v, ValidationError{Field: field, Message: message})
}

func (v ValidationErrors) err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

// Validate checks an expense input and returns its parsed date
func (in ExpenseInput) Validate() (time.Time, error) {
	var errs ValidationErrors

	description := strings.TrimSpace(in.Description)
	switch {
	case description == "":
		errs.add("description", "is required")
	case utf8.RuneCountInString(description) > MaxDescriptionLength:
		errs.add("description", "must be at most 200 characters")
	}

	if in.Amount <= 0 {
		errs.add("amount", "must be greater than zero")
	}

	var date time.Time
	if strings.TrimSpace(in.Date) == "" {
		errs.add("date", "is required")
	} else {
		var err error
		date, err = time.Parse(DateLayout, strings.TrimSpace(in.Date))
		if err != nil {
			errs.add("date", "must be a valid YYYY-MM-DD date")
		}
	}

	if strings.TrimSpace(in.CategoryID) == "" {
		errs.add("category_id", "is required")
	}
	if strings.TrimSpace(in.CurrencyID) == "" {
		errs.add("currency_id", "is required")
	}

	return date, errs.err()
}

func validateBudget(categoryID string, amount int64, currencyID string) error {
	var errs ValidationErrors
	if strings.TrimSpace(categoryID) == "" {
		errs.add("category_id", "is required")
	}
	if amount <= 0 {
		errs.add("amount", "must be greater than zero")
	}
	if strings.TrimSpace(currencyID) == "" {
		errs.add("currency_id", "is required")
	}
	return errs.err()
}

func validateCategory(name string) error {
	var errs ValidationErrors
	if strings.TrimSpace(name) == "" {
		errs.add("name", "is required")
	}
	return errs.err()
}
