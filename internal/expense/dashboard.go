package expense

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zombor/expense-tracker/internal/remote"
)

// Budget status thresholds, in percent of the budget spent
const (
	WarningPercent = 75
	DangerPercent  = 90

	StatusGood    = "good"
	StatusWarning = "warning"
	StatusDanger  = "danger"

	// MaxTrendMonths bounds SpendingTrend
	MaxTrendMonths = 24
)

// CategorySpending is one category's share of a month
type CategorySpending struct {
	CategoryID string  `json:"category_id"`
	Name       string  `json:"name"`
	Color      string  `json:"color"`
	Spent      int64   `json:"spent"`
	Count      int     `json:"count"`
	Percent    float64 `json:"percent"`
}

// MonthSummary aggregates one month of spending against the budgets
type MonthSummary struct {
	Year        int                `json:"year"`
	Month       int                `json:"month"`
	TotalSpent  int64              `json:"total_spent"`
	TotalBudget int64              `json:"total_budget"`
	Remaining   int64              `json:"remaining"`
	Categories  []CategorySpending `json:"categories"`
}

// BudgetStatus is a budget's progress in the current month
type BudgetStatus struct {
	Budget       *Budget `json:"budget"`
	CategoryName string  `json:"category_name"`
	Spent        int64   `json:"spent"`
	Remaining    int64   `json:"remaining"`
	Percent      float64 `json:"percent"`
	Status       string  `json:"status"`
}

// BudgetOverview is the current month's progress over all budgets
type BudgetOverview struct {
	Budgets        []BudgetStatus `json:"budgets"`
	TotalBudget    int64          `json:"total_budget"`
	TotalSpent     int64          `json:"total_spent"`
	TotalRemaining int64          `json:"total_remaining"`
	Percent        float64        `json:"percent"`
}

// TrendPoint is one month of the spending trend
type TrendPoint struct {
	Month      string           `json:"month"` // YYYY-MM
	Total      int64            `json:"total"`
	ByCategory map[string]int64 `json:"by_category"`
}

type categoryTotal struct {
	amount int64
	count  int
}

// monthStart returns the first instant of t's month in UTC, the zone expense dates are parsed in
func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func inMonth(date, start time.Time) bool {
	return !date.Before(start) && date.Before(start.AddDate(0, 1, 0))
}

// spentByCategory totals expenses of the month beginning at start
func spentByCategory(expenses []*Expense, start time.Time) map[string]categoryTotal {
	totals := make(map[string]categoryTotal)
	for _, e := range expenses {
		if !inMonth(e.Date, start) {
			continue
		}
		t := totals[e.CategoryID]
		t.amount += e.Amount
		t.count++
		totals[e.CategoryID] = t
	}
	return totals
}

func percentOf(part, whole int64) float64 {
	if whole <= 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

// budgetStatus classifies spending against a budget
func budgetStatus(percent float64) string {
	switch {
	case percent >= DangerPercent:
		return StatusDanger
	case percent >= WarningPercent:
		return StatusWarning
	default:
		return StatusGood
	}
}

// budgetsAndExpenses reads a user's budgets and expenses concurrently
func (s *Service) budgetsAndExpenses(ctx context.Context, userID string) ([]*Budget, []*Expense, error) {
	var (
		budgets  []*Budget
		expenses []*Expense
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		budgets, err = remote.Do(gctx, s.retrier, func(ctx context.Context) ([]*Budget, error) {
			return s.store.ListBudgets(ctx, userID)
		})
		if err != nil {
			return fmt.Errorf("listing budgets: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		expenses, err = remote.Do(gctx, s.retrier, func(ctx context.Context) ([]*Expense, error) {
			return s.store.ListExpenses(ctx, userID)
		})
		if err != nil {
			return fmt.Errorf("listing expenses: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return budgets, expenses, nil
}

// dashboardData reads budgets, expenses and categories concurrently
func (s *Service) dashboardData(ctx context.Context, userID string) ([]*Budget, []*Expense, map[string]*Category, error) {
	var (
		budgets    []*Budget
		expenses   []*Expense
		categories []*Category
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		budgets, expenses, err = s.budgetsAndExpenses(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		categories, err = s.ListCategories(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}

	byID := make(map[string]*Category, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}
	return budgets, expenses, byID, nil
}

func categoryName(categories map[string]*Category, id string) (string, string) {
	if c, ok := categories[id]; ok {
		return c.Name, c.Color
	}
	return DefaultCategoryName, defaultCategoryColors[DefaultCategoryName]
}

// MonthSummary totals one month of spending per category and against the budgets
func (s *Service) MonthSummary(ctx context.Context, userID string, year int, month time.Month) (*MonthSummary, error) {
	if month < time.January || month > time.December {
		return nil, ValidationErrors{{Field: "month", Message: "must be between 1 and 12"}}
	}

	budgets, expenses, categories, err := s.dashboardData(ctx, userID)
	if err != nil {
		return nil, err
	}

	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	totals := spentByCategory(expenses, start)

	summary := &MonthSummary{
		Year:       year,
		Month:      int(month),
		Categories: make([]CategorySpending, 0, len(totals)),
	}
	for _, b := range budgets {
		summary.TotalBudget += b.Amount
	}
	for _, t := range totals {
		summary.TotalSpent += t.amount
	}
	summary.Remaining = summary.TotalBudget - summary.TotalSpent

	for id, t := range totals {
		name, color := categoryName(categories, id)
		summary.Categories = append(summary.Categories, CategorySpending{
			CategoryID: id,
			Name:       name,
			Color:      color,
			Spent:      t.amount,
			Count:      t.count,
			Percent:    percentOf(t.amount, summary.TotalSpent),
		})
	}
	sort.SliceStable(summary.Categories, func(i, j int) bool {
		if summary.Categories[i].Spent != summary.Categories[j].Spent {
			return summary.Categories[i].Spent > summary.Categories[j].Spent
		}
		return summary.Categories[i].Name < summary.Categories[j].Name
	})
	return summary, nil
}

// BudgetStatuses reports each budget's progress in the current month
func (s *Service) BudgetStatuses(ctx context.Context, userID string) (*BudgetOverview, error) {
	budgets, expenses, categories, err := s.dashboardData(ctx, userID)
	if err != nil {
		return nil, err
	}

	totals := spentByCategory(expenses, monthStart(s.timeSource.Now()))
	overview := &BudgetOverview{Budgets: make([]BudgetStatus, 0, len(budgets))}

	for _, b := range budgets {
		spent := totals[b.CategoryID].amount
		b.Spent = spent
		name, _ := categoryName(categories, b.CategoryID)
		percent := percentOf(spent, b.Amount)
		overview.Budgets = append(overview.Budgets, BudgetStatus{
			Budget:       b,
			CategoryName: name,
			Spent:        spent,
			Remaining:    b.Amount - spent,
			Percent:      percent,
			Status:       budgetStatus(percent),
		})
		overview.TotalBudget += b.Amount
		overview.TotalSpent += spent
	}
	overview.TotalRemaining = overview.TotalBudget - overview.TotalSpent
	overview.Percent = percentOf(overview.TotalSpent, overview.TotalBudget)

	sort.SliceStable(overview.Budgets, func(i, j int) bool {
		return overview.Budgets[i].Percent > overview.Budgets[j].Percent
	})
	return overview, nil
}

// SpendingTrend totals the last months of spending per category, oldest first.
// The current month is included.
func (s *Service) SpendingTrend(ctx context.Context, userID string, months int) ([]TrendPoint, error) {
	if months < 1 || months > MaxTrendMonths {
		return nil, ValidationErrors{{Field: "months", Message: fmt.Sprintf("must be between 1 and %d", MaxTrendMonths)}}
	}

	_, expenses, categories, err := s.dashboardData(ctx, userID)
	if err != nil {
		return nil, err
	}

	current := monthStart(s.timeSource.Now())
	points := make([]TrendPoint, 0, months)
	for i := months - 1; i >= 0; i-- {
		start := current.AddDate(0, -i, 0)
		point := TrendPoint{
			Month:      start.Format("2006-01"),
			ByCategory: make(map[string]int64),
		}
		for id, t := range spentByCategory(expenses, start) {
			name, _ := categoryName(categories, id)
			point.ByCategory[name] += t.amount
			point.Total += t.amount
		}
		points = append(points, point)
	}
	return points, nil
}
