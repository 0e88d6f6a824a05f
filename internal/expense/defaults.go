package expense

import "github.com/zombor/expense-tracker/internal/scanning"

const (
	// DefaultCurrencyCode is assigned to new profiles
	DefaultCurrencyCode = "USD"
	// DefaultCategoryName receives receipts with no recognised category
	DefaultCategoryName = scanning.DefaultCategory
)

// defaultCategoryColors pairs each scanner category with a chart color
var defaultCategoryColors = map[string]string{
	"Food & Dining":     "#ef4444",
	"Transportation":    "#3b82f6",
	"Shopping":          "#ec4899",
	"Entertainment":     "#a855f7",
	"Bills & Utilities": "#f59e0b",
	"Healthcare":        "#10b981",
	"Travel":            "#06b6d4",
	"Education":         "#6366f1",
	"Business":          "#8b5cf6",
	"Other":             "#6b7280",
}

// defaultCategories returns the category names seeded for a new user.
// They match the set the receipt scanner suggests from.
func defaultCategories() []Category {
	categories := make([]Category, 0, len(scanning.Categories))
	for _, name := range scanning.Categories {
		categories = append(categories, Category{Name: name, Color: defaultCategoryColors[name]})
	}
	return categories
}

// DefaultCurrencies is the reference data seeded on startup
var DefaultCurrencies = []Currency{
	{Code: "USD", Name: "US Dollar", Symbol: "$", DecimalPlaces: 2},
	{Code: "EUR", Name: "Euro", Symbol: "€", DecimalPlaces: 2},
	{Code: "GBP", Name: "British Pound", Symbol: "£", DecimalPlaces: 2},
	{Code: "JPY", Name: "Japanese Yen", Symbol: "¥", DecimalPlaces: 0},
	{Code: "CAD", Name: "Canadian Dollar", Symbol: "C$", DecimalPlaces: 2},
	{Code: "AUD", Name: "Australian Dollar", Symbol: "A$", DecimalPlaces: 2},
	{Code: "CHF", Name: "Swiss Franc", Symbol: "CHF", DecimalPlaces: 2},
	{Code: "INR", Name: "Indian Rupee", Symbol: "₹", DecimalPlaces: 2},
}
