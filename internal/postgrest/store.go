package postgrest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/zombor/expense-tracker/internal/expense"
)

const (
	expensesTable   = "expenses"
	budgetsTable    = "budgets"
	categoriesTable = "categories"
	currenciesTable = "currencies"
	profilesTable   = "profiles"

	preferUpsert = "resolution=merge-duplicates,return=minimal"
	preferReturn = "return=representation"
)

var _ expense.Store = (*Client)(nil)

// expenseRow is the expenses table layout; dates are plain SQL dates
type expenseRow struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Description string    `json:"description"`
	Amount      int64     `json:"amount"`
	Date        string    `json:"date"`
	CategoryID  string    `json:"category_id"`
	CurrencyID  string    `json:"currency_id"`
	Notes       *string   `json:"notes"`
	ReceiptURL  *string   `json:"receipt_url"`
	ReceiptType *string   `json:"receipt_content_type"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func toExpenseRow(e *expense.Expense) expenseRow {
	return expenseRow{
		ID:          e.ID,
		UserID:      e.UserID,
		Description: e.Description,
		Amount:      e.Amount,
		Date:        e.Date.Format(expense.DateLayout),
		CategoryID:  e.CategoryID,
		CurrencyID:  e.CurrencyID,
		Notes:       nullable(e.Notes),
		ReceiptURL:  nullable(e.ReceiptPath),
		ReceiptType: nullable(e.ContentType),
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

func (r expenseRow) toExpense() (*expense.Expense, error) {
	date, err := time.Parse(expense.DateLayout, r.Date)
	if err != nil {
		return nil, fmt.Errorf("parsing date of expense %s: %w", r.ID, err)
	}
	return &expense.Expense{
		ID:          r.ID,
		UserID:      r.UserID,
		Description: r.Description,
		Amount:      r.Amount,
		Date:        date,
		CategoryID:  r.CategoryID,
		CurrencyID:  r.CurrencyID,
		Notes:       deref(r.Notes),
		ReceiptPath: deref(r.ReceiptURL),
		ContentType: deref(r.ReceiptType),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}, nil
}

// budgetRow is the budgets table layout; spent is derived and not a column
type budgetRow struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	CategoryID string    `json:"category_id"`
	Amount     int64     `json:"amount"`
	CurrencyID string    `json:"currency_id"`
	Period     string    `json:"period"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func ownedBy(userID string) url.Values {
	return url.Values{"user_id": {eq(userID)}, "select": {"*"}}
}

func ownedRecord(userID, id string) url.Values {
	q := ownedBy(userID)
	q.Set("id", eq(id))
	return q
}

// deleteOwned removes one row and reports ErrNotFound when nothing matched
func (c *Client) deleteOwned(ctx context.Context, table, userID, id string) error {
	var deleted []map[string]any
	err := c.do(ctx, request{
		method: http.MethodDelete,
		table:  table,
		query:  ownedRecord(userID, id),
		prefer: preferReturn,
	}, &deleted)
	if err != nil {
		return err
	}
	if len(deleted) == 0 {
		return expense.ErrNotFound
	}
	return nil
}

// ListExpenses returns all expenses of a user
func (c *Client) ListExpenses(ctx context.Context, userID string) ([]*expense.Expense, error) {
	q := ownedBy(userID)
	q.Set("order", "date.desc")
	var rows []expenseRow
	if err := c.do(ctx, request{method: http.MethodGet, table: expensesTable, query: q}, &rows); err != nil {
		return nil, err
	}
	expenses := make([]*expense.Expense, 0, len(rows))
	for _, row := range rows {
		e, err := row.toExpense()
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	return expenses, nil
}

// GetExpense retrieves one expense
func (c *Client) GetExpense(ctx context.Context, userID, id string) (*expense.Expense, error) {
	var rows []expenseRow
	if err := c.do(ctx, request{method: http.MethodGet, table: expensesTable, query: ownedRecord(userID, id)}, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, expense.ErrNotFound
	}
	return rows[0].toExpense()
}

// SaveExpense upserts an expense
func (c *Client) SaveExpense(ctx context.Context, e *expense.Expense) error {
	return c.do(ctx, request{method: http.MethodPost, table: expensesTable, body: toExpenseRow(e), prefer: preferUpsert}, nil)
}

// DeleteExpense removes an expense
func (c *Client) DeleteExpense(ctx context.Context, userID, id string) error {
	return c.deleteOwned(ctx, expensesTable, userID, id)
}

// ListBudgets returns all budgets of a user
func (c *Client) ListBudgets(ctx context.Context, userID string) ([]*expense.Budget, error) {
	var rows []budgetRow
	if err := c.do(ctx, request{method: http.MethodGet, table: budgetsTable, query: ownedBy(userID)}, &rows); err != nil {
		return nil, err
	}
	budgets := make([]*expense.Budget, 0, len(rows))
	for _, r := range rows {
		budgets = append(budgets, &expense.Budget{
			ID:         r.ID,
			UserID:     r.UserID,
			CategoryID: r.CategoryID,
			Amount:     r.Amount,
			CurrencyID: r.CurrencyID,
			Period:     r.Period,
			CreatedAt:  r.CreatedAt,
			UpdatedAt:  r.UpdatedAt,
		})
	}
	return budgets, nil
}

// SaveBudget upserts a budget
func (c *Client) SaveBudget(ctx context.Context, b *expense.Budget) error {
	row := budgetRow{
		ID:         b.ID,
		UserID:     b.UserID,
		CategoryID: b.CategoryID,
		Amount:     b.Amount,
		CurrencyID: b.CurrencyID,
		Period:     b.Period,
		CreatedAt:  b.CreatedAt,
		UpdatedAt:  b.UpdatedAt,
	}
	return c.do(ctx, request{method: http.MethodPost, table: budgetsTable, body: row, prefer: preferUpsert}, nil)
}

// DeleteBudget removes a budget
func (c *Client) DeleteBudget(ctx context.Context, userID, id string) error {
	return c.deleteOwned(ctx, budgetsTable, userID, id)
}

// ListCategories returns all categories of a user
func (c *Client) ListCategories(ctx context.Context, userID string) ([]*expense.Category, error) {
	q := ownedBy(userID)
	q.Set("order", "name.asc")
	categories := make([]*expense.Category, 0)
	if err := c.do(ctx, request{method: http.MethodGet, table: categoriesTable, query: q}, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

// SaveCategory upserts a category
func (c *Client) SaveCategory(ctx context.Context, category *expense.Category) error {
	return c.do(ctx, request{method: http.MethodPost, table: categoriesTable, body: category, prefer: preferUpsert}, nil)
}

// DeleteCategory removes a category
func (c *Client) DeleteCategory(ctx context.Context, userID, id string) error {
	return c.deleteOwned(ctx, categoriesTable, userID, id)
}

// ListCurrencies returns the shared currency table
func (c *Client) ListCurrencies(ctx context.Context) ([]*expense.Currency, error) {
	q := url.Values{"select": {"*"}, "order": {"code.asc"}}
	currencies := make([]*expense.Currency, 0)
	if err := c.do(ctx, request{method: http.MethodGet, table: currenciesTable, query: q}, &currencies); err != nil {
		return nil, err
	}
	return currencies, nil
}

// SaveCurrency upserts a currency
func (c *Client) SaveCurrency(ctx context.Context, currency *expense.Currency) error {
	return c.do(ctx, request{method: http.MethodPost, table: currenciesTable, body: currency, prefer: preferUpsert}, nil)
}

// GetProfile retrieves a user's profile
func (c *Client) GetProfile(ctx context.Context, userID string) (*expense.Profile, error) {
	q := url.Values{"id": {eq(userID)}, "select": {"*"}}
	var profiles []*expense.Profile
	if err := c.do(ctx, request{method: http.MethodGet, table: profilesTable, query: q}, &profiles); err != nil {
		return nil, err
	}
	if len(profiles) == 0 {
		return nil, expense.ErrNotFound
	}
	return profiles[0], nil
}

// SaveProfile upserts a profile
func (c *Client) SaveProfile(ctx context.Context, profile *expense.Profile) error {
	return c.do(ctx, request{method: http.MethodPost, table: profilesTable, body: profile, prefer: preferUpsert}, nil)
}
