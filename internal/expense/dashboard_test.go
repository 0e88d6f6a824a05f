package expense

import (
	"context"
	"errors"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/expense-tracker/internal/remote"
)

var _ = Describe("Dashboards", func() {
	var (
		ctx     context.Context
		store   *mockStore
		service *Service
	)

	day := func(year int, month time.Month, d int) time.Time {
		return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
	}

	BeforeEach(func() {
		ctx = context.Background()
		store = newMockStore()
		store.categories["food"] = &Category{ID: "food", UserID: "user-1", Name: "Food & Dining", Color: "#ef4444"}
		store.categories["travel"] = &Category{ID: "travel", UserID: "user-1", Name: "Travel", Color: "#06b6d4"}
		store.categories["fun"] = &Category{ID: "fun", UserID: "user-1", Name: "Entertainment", Color: "#a855f7"}

		store.budgets["b-food"] = &Budget{ID: "b-food", UserID: "user-1", CategoryID: "food", Amount: 10000, Period: PeriodMonthly}
		store.budgets["b-travel"] = &Budget{ID: "b-travel", UserID: "user-1", CategoryID: "travel", Amount: 20000, Period: PeriodMonthly}
		store.budgets["b-fun"] = &Budget{ID: "b-fun", UserID: "user-1", CategoryID: "fun", Amount: 5000, Period: PeriodMonthly}

		store.expenses["e1"] = &Expense{ID: "e1", UserID: "user-1", CategoryID: "food", Amount: 6000, Date: day(2025, 3, 1)}
		store.expenses["e2"] = &Expense{ID: "e2", UserID: "user-1", CategoryID: "food", Amount: 3500, Date: day(2025, 3, 31)}
		store.expenses["e3"] = &Expense{ID: "e3", UserID: "user-1", CategoryID: "travel", Amount: 15000, Date: day(2025, 3, 10)}
		store.expenses["e4"] = &Expense{ID: "e4", UserID: "user-1", CategoryID: "food", Amount: 1000, Date: day(2025, 2, 28)}
		store.expenses["e5"] = &Expense{ID: "e5", UserID: "user-1", CategoryID: "gone", Amount: 500, Date: day(2025, 1, 5)}
		store.expenses["e6"] = &Expense{ID: "e6", UserID: "user-2", CategoryID: "food", Amount: 99999, Date: day(2025, 3, 5)}
	})

	JustBeforeEach(func() {
		service = NewServiceWithDeps(store, newMockStorage(), testRetrier(), &sequentialIDs{}, fixedTime{now: time.Date(2025, 3, 20, 18, 0, 0, 0, time.UTC)})
	})

	Describe("MonthSummary", func() {
		var (
			summary *MonthSummary
			err     error
		)

		JustBeforeEach(func() {
			summary, err = service.MonthSummary(ctx, "user-1", 2025, time.March)
		})

		It("totals spending against the budgets", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(summary.TotalSpent).To(Equal(int64(24500)))
			Expect(summary.TotalBudget).To(Equal(int64(35000)))
			Expect(summary.Remaining).To(Equal(int64(10500)))
		})

		It("breaks spending down by category, largest first", func() {
			Expect(summary.Categories).To(HaveLen(2))
			Expect(summary.Categories[0].Name).To(Equal("Travel"))
			Expect(summary.Categories[0].Count).To(Equal(1))
			Expect(summary.Categories[1].Name).To(Equal("Food & Dining"))
			Expect(summary.Categories[1].Spent).To(Equal(int64(9500)))
			Expect(summary.Categories[1].Count).To(Equal(2))
			Expect(summary.Categories[1].Percent).To(BeNumerically("~", 38.78, 0.01))
		})

		When("a store read fails", func() {
			BeforeEach(func() {
				store.listErr = &remote.StatusError{StatusCode: http.StatusForbidden, Message: "permission denied"}
			})

			It("returns the error", func() {
				status, ok := remote.HTTPStatus(err)
				Expect(ok).To(BeTrue())
				Expect(status).To(Equal(http.StatusForbidden))
			})
		})
	})

	It("rejects an invalid month", func() {
		_, err := service.MonthSummary(ctx, "user-1", 2025, 13)
		var validation ValidationErrors
		Expect(errors.As(err, &validation)).To(BeTrue())
	})

	Describe("BudgetStatuses", func() {
		var (
			overview *BudgetOverview
			err      error
		)

		JustBeforeEach(func() {
			overview, err = service.BudgetStatuses(ctx, "user-1")
		})

		It("classifies each budget", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(overview.Budgets).To(HaveLen(3))

			food := overview.Budgets[0]
			Expect(food.CategoryName).To(Equal("Food & Dining"))
			Expect(food.Percent).To(BeNumerically("~", 95.0))
			Expect(food.Status).To(Equal(StatusDanger))
			Expect(food.Remaining).To(Equal(int64(500)))

			travel := overview.Budgets[1]
			Expect(travel.Percent).To(BeNumerically("~", 75.0))
			Expect(travel.Status).To(Equal(StatusWarning))

			fun := overview.Budgets[2]
			Expect(fun.Spent).To(BeZero())
			Expect(fun.Status).To(Equal(StatusGood))
		})

		It("totals all budgets", func() {
			Expect(overview.TotalBudget).To(Equal(int64(35000)))
			Expect(overview.TotalSpent).To(Equal(int64(24500)))
			Expect(overview.TotalRemaining).To(Equal(int64(10500)))
			Expect(overview.Percent).To(BeNumerically("~", 70.0))
		})
	})

	Describe("SpendingTrend", func() {
		It("returns one point per month, oldest first", func() {
			points, err := service.SpendingTrend(ctx, "user-1", 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(points).To(HaveLen(3))

			Expect(points[0].Month).To(Equal("2025-01"))
			Expect(points[0].ByCategory).To(Equal(map[string]int64{"Other": 500}))

			Expect(points[1].Month).To(Equal("2025-02"))
			Expect(points[1].Total).To(Equal(int64(1000)))

			Expect(points[2].Month).To(Equal("2025-03"))
			Expect(points[2].Total).To(Equal(int64(24500)))
			Expect(points[2].ByCategory).To(HaveKeyWithValue("Travel", int64(15000)))
		})

		It("rejects an out of range window", func() {
			_, err := service.SpendingTrend(ctx, "user-1", 0)
			Expect(err).To(BeAssignableToTypeOf(ValidationErrors{}))
		})
	})
})

var _ = Describe("budgetStatus", func() {
	DescribeTable("thresholds",
		func(percent float64, expected string) {
			Expect(budgetStatus(percent)).To(Equal(expected))
		},
		Entry("under 75%", 74.9, StatusGood),
		Entry("at 75%", 75.0, StatusWarning),
		Entry("under 90%", 89.99, StatusWarning),
		Entry("at 90%", 90.0, StatusDanger),
		Entry("over budget", 140.0, StatusDanger),
	)
})
