package expense

import (
	"context"
	"math"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/zombor/expense-tracker/internal/scanning"
)

// Draft is an unsaved expense pre-filled from a scanned receipt
type Draft struct {
	Expense     ExpenseInput `json:"expense"`
	Items       []string     `json:"items"`
	Tax         *int64       `json:"tax"` // Tax in minor units
	Confidence  float64      `json:"confidence"`
	NeedsReview bool         `json:"needs_review"`
	Degraded    bool         `json:"degraded"`
}

// DraftFromExtraction maps a scan outcome onto the user's categories and currencies
func (s *Service) DraftFromExtraction(ctx context.Context, userID string, outcome scanning.Outcome) (*Draft, error) {
	var (
		categories []*Category
		currencies []*Currency
		profile    *Profile
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		categories, err = s.ListCategories(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		currencies, err = s.ListCurrencies(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		profile, err = s.GetProfile(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := outcome.Result()
	draft := &Draft{
		Items:       result.Items,
		Confidence:  result.Confidence,
		NeedsReview: result.NeedsReview(),
	}
	if _, ok := outcome.(scanning.Degraded); ok {
		draft.Degraded = true
		draft.NeedsReview = true
	}

	if result.Merchant != nil {
		draft.Expense.Description = *result.Merchant
	}
	draft.Expense.Date = result.Date
	draft.Expense.CategoryID = matchCategory(categories, result.Category)

	currency := matchCurrency(currencies, result.Currency, profile.CurrencyID)
	decimals := 2
	if currency != nil {
		draft.Expense.CurrencyID = currency.ID
		decimals = currency.DecimalPlaces
	}
	if result.Amount != nil {
		if amount, ok := toMinorUnits(*result.Amount, decimals); ok {
			draft.Expense.Amount = amount
		} else {
			draft.NeedsReview = true
		}
	}
	if result.Tax != nil {
		if tax, ok := toMinorUnits(*result.Tax, decimals); ok {
			draft.Tax = &tax
		}
	}
	if len(result.Items) > 0 {
		draft.Expense.Notes = strings.Join(result.Items, ", ")
	}
	return draft, nil
}

// matchCategory finds the user's category by name, falling back to Other
func matchCategory(categories []*Category, name string) string {
	var fallback string
	for _, c := range categories {
		if strings.EqualFold(c.Name, name) {
			return c.ID
		}
		if strings.EqualFold(c.Name, DefaultCategoryName) {
			fallback = c.ID
		}
	}
	return fallback
}

// matchCurrency finds the read currency code, falling back to the profile currency
func matchCurrency(currencies []*Currency, code, profileCurrencyID string) *Currency {
	var fallback *Currency
	for _, c := range currencies {
		if strings.EqualFold(c.Code, code) {
			return c
		}
		if c.ID == profileCurrencyID {
			fallback = c
		}
	}
	return fallback
}

// toMinorUnits converts a decimal amount to integer minor units. It reports
// false when the result does not fit in an int64.
func toMinorUnits(amount float64, decimals int) (int64, bool) {
	scaled := math.Round(amount * math.Pow10(decimals))
	if math.IsNaN(scaled) || scaled >= math.MaxInt64 || scaled < math.MinInt64 {
		return 0, false
	}
	return int64(scaled), true
}
