package expense

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/zombor/expense-tracker/internal/remote"
)

const currenciesCacheKey = "currencies"

// currencyNamespace derives stable currency IDs from their codes
var currencyNamespace = uuid.MustParse("6f2c1d8e-7b1a-4e53-9c1e-3f0b8a6d2e47")

// categoryNamespace derives the IDs of a user's default categories
var categoryNamespace = uuid.MustParse("a3e9b0c4-52d7-4f18-8b6e-0d4c7e91f2a5")

// IDGenerator generates unique record IDs
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// uuidGenerator generates random UUIDs
type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// CurrencyID returns the stable ID of a currency code
func CurrencyID(code string) string {
	return uuid.NewSHA1(currencyNamespace, []byte(strings.ToUpper(code))).String()
}

// defaultCategoryID returns the stable ID of a seeded default category, so
// concurrent first loads for the same user upsert the same rows
func defaultCategoryID(userID, name string) string {
	return uuid.NewSHA1(categoryNamespace, []byte(userID+"/"+name)).String()
}

// Service handles expense operations. Every Store call goes through the retrier.
type Service struct {
	store       Store
	storage     Storage
	retrier     *remote.Retrier
	currencies  *cache.Cache
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(store Store, storage Storage, retrier *remote.Retrier) *Service {
	return NewServiceWithDeps(store, storage, retrier, &uuidGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(store Store, storage Storage, retrier *remote.Retrier, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		store:       store,
		storage:     storage,
		retrier:     retrier,
		currencies:  cache.New(time.Hour, 2*time.Hour),
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

func (s *Service) run(ctx context.Context, op func(ctx context.Context) error) error {
	return s.retrier.Run(ctx, op)
}

// ListExpenses returns a user's expenses, newest first
func (s *Service) ListExpenses(ctx context.Context, userID string) ([]*Expense, error) {
	expenses, err := remote.Do(ctx, s.retrier, func(ctx context.Context) ([]*Expense, error) {
		return s.store.ListExpenses(ctx, userID)
	})
	if err != nil {
		return nil, fmt.Errorf("listing expenses: %w", err)
	}
	sortExpenses(expenses)
	return expenses, nil
}

func sortExpenses(expenses []*Expense) {
	sort.SliceStable(expenses, func(i, j int) bool {
		if !expenses[i].Date.Equal(expenses[j].Date) {
			return expenses[i].Date.After(expenses[j].Date)
		}
		return expenses[i].CreatedAt.After(expenses[j].CreatedAt)
	})
}

// GetExpense retrieves one expense
func (s *Service) GetExpense(ctx context.Context, userID, id string) (*Expense, error) {
	expense, err := remote.Do(ctx, s.retrier, func(ctx context.Context) (*Expense, error) {
		return s.store.GetExpense(ctx, userID, id)
	})
	if err != nil {
		return nil, fmt.Errorf("getting expense: %w", err)
	}
	return expense, nil
}

// AddExpense validates and records a new expense
func (s *Service) AddExpense(ctx context.Context, userID string, input ExpenseInput) (*Expense, error) {
	date, err := input.Validate()
	if err != nil {
		return nil, err
	}

	now := s.timeSource.Now()
	expense := &Expense{
		ID:          s.idGenerator.Generate(),
		UserID:      userID,
		Description: strings.TrimSpace(input.Description),
		Amount:      input.Amount,
		Date:        date,
		CategoryID:  input.CategoryID,
		CurrencyID:  input.CurrencyID,
		Notes:       strings.TrimSpace(input.Notes),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.run(ctx, func(ctx context.Context) error {
		return s.store.SaveExpense(ctx, expense)
	}); err != nil {
		return nil, fmt.Errorf("saving expense: %w", err)
	}

	slog.Info("Expense added", "user_id", userID, "id", expense.ID, "amount", expense.Amount)
	return expense, nil
}

// UpdateExpense validates and replaces the editable fields of an expense
func (s *Service) UpdateExpense(ctx context.Context, userID, id string, input ExpenseInput) (*Expense, error) {
	date, err := input.Validate()
	if err != nil {
		return nil, err
	}

	expense, err := s.GetExpense(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	expense.Description = strings.TrimSpace(input.Description)
	expense.Amount = input.Amount
	expense.Date = date
	expense.CategoryID = input.CategoryID
	expense.CurrencyID = input.CurrencyID
	expense.Notes = strings.TrimSpace(input.Notes)
	expense.UpdatedAt = s.timeSource.Now()

	if err := s.run(ctx, func(ctx context.Context) error {
		return s.store.SaveExpense(ctx, expense)
	}); err != nil {
		return nil, fmt.Errorf("updating expense: %w", err)
	}
	return expense, nil
}

// DeleteExpense removes an expense and its receipt file
func (s *Service) DeleteExpense(ctx context.Context, userID, id string) error {
	expense, err := s.GetExpense(ctx, userID, id)
	if err != nil {
		return err
	}

	if expense.ReceiptPath != "" {
		if err := s.storage.Delete(ctx, expense.ReceiptPath); err != nil {
			// Log error but continue with database deletion
			slog.Warn("Failed to delete receipt file", "path", expense.ReceiptPath, "error", err)
		}
	}

	if err := s.run(ctx, func(ctx context.Context) error {
		return s.store.DeleteExpense(ctx, userID, id)
	}); err != nil {
		return fmt.Errorf("deleting expense: %w", err)
	}
	return nil
}

// AttachReceipt stores a receipt file and links it to an expense
func (s *Service) AttachReceipt(ctx context.Context, userID, id, filename string, data []byte, contentType string) (*Expense, error) {
	expense, err := s.GetExpense(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	name := path.Join(userID, fmt.Sprintf("%s_%s", expense.ID, sanitizeFilename(filename)))
	savedPath, err := s.storage.Save(ctx, name, data)
	if err != nil {
		return nil, fmt.Errorf("saving receipt file: %w", err)
	}

	previous := expense.ReceiptPath
	expense.ReceiptPath = savedPath
	expense.ContentType = contentType
	expense.UpdatedAt = s.timeSource.Now()

	if err := s.run(ctx, func(ctx context.Context) error {
		return s.store.SaveExpense(ctx, expense)
	}); err != nil {
		// Clean up file if database save fails
		if delErr := s.storage.Delete(ctx, savedPath); delErr != nil {
			slog.Warn("Failed to clean up receipt file", "path", savedPath, "error", delErr)
		}
		return nil, fmt.Errorf("saving expense: %w", err)
	}

	if previous != "" && previous != savedPath {
		if err := s.storage.Delete(ctx, previous); err != nil {
			slog.Warn("Failed to delete replaced receipt file", "path", previous, "error", err)
		}
	}
	return expense, nil
}

// GetReceiptFile retrieves the receipt file attached to an expense
func (s *Service) GetReceiptFile(ctx context.Context, userID, id string) ([]byte, string, error) {
	expense, err := s.GetExpense(ctx, userID, id)
	if err != nil {
		return nil, "", err
	}
	if expense.ReceiptPath == "" {
		return nil, "", fmt.Errorf("receipt file: %w", ErrNotFound)
	}

	data, err := s.storage.Get(ctx, expense.ReceiptPath)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt file: %w", err)
	}

	contentType := expense.ContentType
	if contentType == "" {
		contentType = mime.TypeByExtension(path.Ext(expense.ReceiptPath))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return data, contentType, nil
}

// ListBudgets returns a user's budgets with the current month's spending
func (s *Service) ListBudgets(ctx context.Context, userID string) ([]*Budget, error) {
	budgets, expenses, err := s.budgetsAndExpenses(ctx, userID)
	if err != nil {
		return nil, err
	}

	spent := spentByCategory(expenses, monthStart(s.timeSource.Now()))
	for _, b := range budgets {
		b.Spent = spent[b.CategoryID].amount
	}
	sort.SliceStable(budgets, func(i, j int) bool {
		return budgets[i].CreatedAt.Before(budgets[j].CreatedAt)
	})
	return budgets, nil
}

// SetBudget creates or replaces the monthly budget of a category
func (s *Service) SetBudget(ctx context.Context, userID, categoryID string, amount int64, currencyID string) (*Budget, error) {
	if err := validateBudget(categoryID, amount, currencyID); err != nil {
		return nil, err
	}

	existing, err := remote.Do(ctx, s.retrier, func(ctx context.Context) ([]*Budget, error) {
		return s.store.ListBudgets(ctx, userID)
	})
	if err != nil {
		return nil, fmt.Errorf("listing budgets: %w", err)
	}

	now := s.timeSource.Now()
	budget := &Budget{
		ID:         s.idGenerator.Generate(),
		UserID:     userID,
		CategoryID: categoryID,
		Period:     PeriodMonthly,
		CreatedAt:  now,
	}
	for _, b := range existing {
		if b.CategoryID == categoryID && b.Period == PeriodMonthly {
			budget.ID = b.ID
			budget.CreatedAt = b.CreatedAt
			break
		}
	}
	budget.Amount = amount
	budget.CurrencyID = currencyID
	budget.UpdatedAt = now

	if err := s.run(ctx, func(ctx context.Context) error {
		return s.store.SaveBudget(ctx, budget)
	}); err != nil {
		return nil, fmt.Errorf("saving budget: %w", err)
	}
	return budget, nil
}

// DeleteBudget removes a budget
func (s *Service) DeleteBudget(ctx context.Context, userID, id string) error {
	if err := s.run(ctx, func(ctx context.Context) error {
		return s.store.DeleteBudget(ctx, userID, id)
	}); err != nil {
		return fmt.Errorf("deleting budget: %w", err)
	}
	return nil
}

// ListCategories returns a user's categories, seeding the defaults for a user with none
func (s *Service) ListCategories(ctx context.Context, userID string) ([]*Category, error) {
	categories, err := remote.Do(ctx, s.retrier, func(ctx context.Context) ([]*Category, error) {
		return s.store.ListCategories(ctx, userID)
	})
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}

	if len(categories) == 0 {
		categories, err = s.seedCategories(ctx, userID)
		if err != nil {
			return nil, err
		}
	}

	sort.SliceStable(categories, func(i, j int) bool {
		return strings.ToLower(categories[i].Name) < strings.ToLower(categories[j].Name)
	})
	return categories, nil
}

func (s *Service) seedCategories(ctx context.Context, userID string) ([]*Category, error) {
	now := s.timeSource.Now()
	defaults := defaultCategories()
	categories := make([]*Category, 0, len(defaults))
	for _, d := range defaults {
		category := &Category{
			ID:        defaultCategoryID(userID, d.Name),
			UserID:    userID,
			Name:      d.Name,
			Color:     d.Color,
			CreatedAt: now,
		}
		if err := s.run(ctx, func(ctx context.Context) error {
			return s.store.SaveCategory(ctx, category)
		}); err != nil {
			return nil, fmt.Errorf("seeding category %q: %w", d.Name, err)
		}
		categories = append(categories, category)
	}
	slog.Info("Seeded default categories", "user_id", userID, "count", len(categories))
	return categories, nil
}

// AddCategory creates a category. Names are unique per user, ignoring case.
func (s *Service) AddCategory(ctx context.Context, userID, name, color string) (*Category, error) {
	if err := validateCategory(name); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)

	existing, err := s.ListCategories(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, c := range existing {
		if strings.EqualFold(c.Name, name) {
			return nil, ValidationErrors{{Field: "name", Message: "already exists"}}
		}
	}

	if color == "" {
		color = defaultCategoryColors[DefaultCategoryName]
	}
	category := &Category{
		ID:        s.idGenerator.Generate(),
		UserID:    userID,
		Name:      name,
		Color:     color,
		CreatedAt: s.timeSource.Now(),
	}
	if err := s.run(ctx, func(ctx context.Context) error {
		return s.store.SaveCategory(ctx, category)
	}); err != nil {
		return nil, fmt.Errorf("saving category: %w", err)
	}
	return category, nil
}

// DeleteCategory removes a category
func (s *Service) DeleteCategory(ctx context.Context, userID, id string) error {
	if err := s.run(ctx, func(ctx context.Context) error {
		return s.store.DeleteCategory(ctx, userID, id)
	}); err != nil {
		return fmt.Errorf("deleting category: %w", err)
	}
	return nil
}

// ListCurrencies returns the currency table, sorted by code. The result is cached.
func (s *Service) ListCurrencies(ctx context.Context) ([]*Currency, error) {
	if cached, ok := s.currencies.Get(currenciesCacheKey); ok {
		return cached.([]*Currency), nil
	}

	currencies, err := remote.Do(ctx, s.retrier, func(ctx context.Context) ([]*Currency, error) {
		return s.store.ListCurrencies(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("listing currencies: %w", err)
	}
	sort.SliceStable(currencies, func(i, j int) bool {
		return currencies[i].Code < currencies[j].Code
	})

	s.currencies.Set(currenciesCacheKey, currencies, cache.DefaultExpiration)
	return currencies, nil
}

// SeedCurrencies stores any default currency missing from the table
func (s *Service) SeedCurrencies(ctx context.Context) error {
	s.currencies.Delete(currenciesCacheKey)
	existing, err := s.ListCurrencies(ctx)
	if err != nil {
		return err
	}

	known := make(map[string]bool, len(existing))
	for _, c := range existing {
		known[strings.ToUpper(c.Code)] = true
	}

	added := 0
	for _, d := range DefaultCurrencies {
		if known[d.Code] {
			continue
		}
		currency := d
		currency.ID = CurrencyID(d.Code)
		if err := s.run(ctx, func(ctx context.Context) error {
			return s.store.SaveCurrency(ctx, &currency)
		}); err != nil {
			return fmt.Errorf("seeding currency %s: %w", d.Code, err)
		}
		added++
	}

	s.currencies.Delete(currenciesCacheKey)
	slog.Info("Seeded currencies", "added", added, "existing", len(existing))
	return nil
}

// currencyByCode finds a currency by its ISO code
func (s *Service) currencyByCode(ctx context.Context, code string) (*Currency, error) {
	currencies, err := s.ListCurrencies(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range currencies {
		if strings.EqualFold(c.Code, code) {
			return c, nil
		}
	}
	return nil, fmt.Errorf("currency %s: %w", code, ErrNotFound)
}

// ProfileInput is the user-editable part of a profile
type ProfileInput struct {
	Email      string `json:"email"`
	FullName   string `json:"full_name"`
	CurrencyID string `json:"currency_id"`
}

// GetProfile returns a user's profile, creating a default one on first access
func (s *Service) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	profile, err := remote.Do(ctx, s.retrier, func(ctx context.Context) (*Profile, error) {
		return s.store.GetProfile(ctx, userID)
	})
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("getting profile: %w", err)
	}

	currencyID := CurrencyID(DefaultCurrencyCode)
	if currency, err := s.currencyByCode(ctx, DefaultCurrencyCode); err == nil {
		currencyID = currency.ID
	}

	now := s.timeSource.Now()
	profile = &Profile{
		ID:         userID,
		CurrencyID: currencyID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.run(ctx, func(ctx context.Context) error {
		return s.store.SaveProfile(ctx, profile)
	}); err != nil {
		return nil, fmt.Errorf("creating profile: %w", err)
	}
	slog.Info("Created profile", "user_id", userID)
	return profile, nil
}

// UpdateProfile replaces the editable fields of a user's profile
func (s *Service) UpdateProfile(ctx context.Context, userID string, input ProfileInput) (*Profile, error) {
	if strings.TrimSpace(input.CurrencyID) == "" {
		return nil, ValidationErrors{{Field: "currency_id", Message: "is required"}}
	}

	profile, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	profile.Email = strings.TrimSpace(input.Email)
	profile.FullName = strings.TrimSpace(input.FullName)
	profile.CurrencyID = input.CurrencyID
	profile.UpdatedAt = s.timeSource.Now()

	if err := s.run(ctx, func(ctx context.Context) error {
		return s.store.SaveProfile(ctx, profile)
	}); err != nil {
		return nil, fmt.Errorf("updating profile: %w", err)
	}
	return profile, nil
}
