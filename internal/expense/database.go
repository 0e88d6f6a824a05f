package expense

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

const (
	expensesBucket   = "expenses"
	budgetsBucket    = "budgets"
	categoriesBucket = "categories"
	currenciesBucket = "currencies"
	profilesBucket   = "profiles"
)

// Store defines the data store operations. Every per-user table is scoped by
// user ID; records belonging to another user are reported as ErrNotFound.
type Store interface {
	// ListExpenses returns all expenses of a user
	ListExpenses(ctx context.Context, userID string) ([]*Expense, error)

	// GetExpense retrieves one expense
	GetExpense(ctx context.Context, userID, id string) (*Expense, error)

	// SaveExpense inserts or replaces an expense
	SaveExpense(ctx context.Context, expense *Expense) error

	// DeleteExpense removes an expense
	DeleteExpense(ctx context.Context, userID, id string) error

	// ListBudgets returns all budgets of a user
	ListBudgets(ctx context.Context, userID string) ([]*Budget, error)

	// SaveBudget inserts or replaces a budget
	SaveBudget(ctx context.Context, budget *Budget) error

	// DeleteBudget removes a budget
	DeleteBudget(ctx context.Context, userID, id string) error

	// ListCategories returns all categories of a user
	ListCategories(ctx context.Context, userID string) ([]*Category, error)

	// SaveCategory inserts or replaces a category
	SaveCategory(ctx context.Context, category *Category) error

	// DeleteCategory removes a category
	DeleteCategory(ctx context.Context, userID, id string) error

	// ListCurrencies returns the shared currency table
	ListCurrencies(ctx context.Context) ([]*Currency, error)

	// SaveCurrency inserts or replaces a currency
	SaveCurrency(ctx context.Context, currency *Currency) error

	// GetProfile retrieves a user's profile
	GetProfile(ctx context.Context, userID string) (*Profile, error)

	// SaveProfile inserts or replaces a profile
	SaveProfile(ctx context.Context, profile *Profile) error

	// Close closes the database connection
	Close() error
}

// BoltDB implements the Store interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{expensesBucket, budgetsBucket, categoriesBucket, currenciesBucket, profilesBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// userKey scopes a record key to its owner
func userKey(userID, id string) []byte {
	return []byte(userID + "/" + id)
}

func (b *BoltDB) put(bucket string, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", bucket, err)
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucket)).Put(key, data)
	})
}

func (b *BoltDB) get(bucket string, key []byte, v any) error {
	return b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucket)).Get(key)
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, v)
	})
}

func (b *BoltDB) delete(bucket string, key []byte) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bkt := tx.Bucket([]byte(bucket))
		if bkt.Get(key) == nil {
			return ErrNotFound
		}
		return bkt.Delete(key)
	})
}

// scan calls fn for every value whose key starts with prefix
func (b *BoltDB) scan(bucket string, prefix []byte, fn func(v []byte) error) error {
	return b.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(bucket)).Cursor()
		k, v := c.First()
		if len(prefix) > 0 {
			k, v = c.Seek(prefix)
		}
		for ; k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			if err := fn(v); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListExpenses returns all expenses of a user
func (b *BoltDB) ListExpenses(ctx context.Context, userID string) ([]*Expense, error) {
	expenses := make([]*Expense, 0)
	err := b.scan(expensesBucket, userKey(userID, ""), func(v []byte) error {
		var expense Expense
		if err := json.Unmarshal(v, &expense); err != nil {
			return fmt.Errorf("unmarshaling expense: %w", err)
		}
		expenses = append(expenses, &expense)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return expenses, nil
}

// GetExpense retrieves one expense
func (b *BoltDB) GetExpense(ctx context.Context, userID, id string) (*Expense, error) {
	var expense Expense
	if err := b.get(expensesBucket, userKey(userID, id), &expense); err != nil {
		return nil, err
	}
	return &expense, nil
}

// SaveExpense inserts or replaces an expense
func (b *BoltDB) SaveExpense(ctx context.Context, expense *Expense) error {
	return b.put(expensesBucket, userKey(expense.UserID, expense.ID), expense)
}

// DeleteExpense removes an expense
func (b *BoltDB) DeleteExpense(ctx context.Context, userID, id string) error {
	return b.delete(expensesBucket, userKey(userID, id))
}

// ListBudgets returns all budgets of a user
func (b *BoltDB) ListBudgets(ctx context.Context, userID string) ([]*Budget, error) {
	budgets := make([]*Budget, 0)
	err := b.scan(budgetsBucket, userKey(userID, ""), func(v []byte) error {
		var budget Budget
		if err := json.Unmarshal(v, &budget); err != nil {
			return fmt.Errorf("unmarshaling budget: %w", err)
		}
		budgets = append(budgets, &budget)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return budgets, nil
}

// SaveBudget inserts or replaces a budget
func (b *BoltDB) SaveBudget(ctx context.Context, budget *Budget) error {
	stored := *budget
	stored.Spent = 0
	return b.put(budgetsBucket, userKey(budget.UserID, budget.ID), &stored)
}

// DeleteBudget removes a budget
func (b *BoltDB) DeleteBudget(ctx context.Context, userID, id string) error {
	return b.delete(budgetsBucket, userKey(userID, id))
}

// ListCategories returns all categories of a user
func (b *BoltDB) ListCategories(ctx context.Context, userID string) ([]*Category, error) {
	categories := make([]*Category, 0)
	err := b.scan(categoriesBucket, userKey(userID, ""), func(v []byte) error {
		var category Category
		if err := json.Unmarshal(v, &category); err != nil {
			return fmt.Errorf("unmarshaling category: %w", err)
		}
		categories = append(categories, &category)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return categories, nil
}

// SaveCategory inserts or replaces a category
func (b *BoltDB) SaveCategory(ctx context.Context, category *Category) error {
	return b.put(categoriesBucket, userKey(category.UserID, category.ID), category)
}

// DeleteCategory removes a category
func (b *BoltDB) DeleteCategory(ctx context.Context, userID, id string) error {
	return b.delete(categoriesBucket, userKey(userID, id))
}

// ListCurrencies returns the shared currency table
func (b *BoltDB) ListCurrencies(ctx context.Context) ([]*Currency, error) {
	currencies := make([]*Currency, 0)
	err := b.scan(currenciesBucket, nil, func(v []byte) error {
		var currency Currency
		if err := json.Unmarshal(v, &currency); err != nil {
			return fmt.Errorf("unmarshaling currency: %w", err)
		}
		currencies = append(currencies, &currency)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return currencies, nil
}

// SaveCurrency inserts or replaces a currency
func (b *BoltDB) SaveCurrency(ctx context.Context, currency *Currency) error {
	return b.put(currenciesBucket, []byte(currency.ID), currency)
}

// GetProfile retrieves a user's profile
func (b *BoltDB) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	var profile Profile
	if err := b.get(profilesBucket, []byte(userID), &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// SaveProfile inserts or replaces a profile
func (b *BoltDB) SaveProfile(ctx context.Context, profile *Profile) error {
	return b.put(profilesBucket, []byte(profile.ID), profile)
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
