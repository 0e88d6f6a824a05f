package expense

import (
	"context"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("BoltDB", func() {
	var (
		ctx    context.Context
		tmpDir string
		dbPath string
		db     *BoltDB
	)

	BeforeEach(func() {
		ctx = context.Background()
		tmpDir = GinkgoT().TempDir()
		dbPath = filepath.Join(tmpDir, "test.db")
		var err error
		db, err = NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	Describe("expenses", func() {
		var expense *Expense

		BeforeEach(func() {
			expense = &Expense{
				ID:          "e1",
				UserID:      "user-1",
				Description: "Lunch",
				Amount:      1250,
				Date:        time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
				CategoryID:  "food",
				CurrencyID:  "usd",
				CreatedAt:   time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC),
				UpdatedAt:   time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC),
			}
			Expect(db.SaveExpense(ctx, expense)).To(Succeed())
		})

		It("should read back a saved expense", func() {
			saved, err := db.GetExpense(ctx, "user-1", "e1")
			Expect(err).NotTo(HaveOccurred())
			Expect(saved).To(Equal(expense))
		})

		It("should scope reads to the owner", func() {
			_, err := db.GetExpense(ctx, "user-2", "e1")
			Expect(err).To(MatchError(ErrNotFound))
		})

		It("should list only the owner's expenses", func() {
			Expect(db.SaveExpense(ctx, &Expense{ID: "e2", UserID: "user-10"})).To(Succeed())
			Expect(db.SaveExpense(ctx, &Expense{ID: "e3", UserID: "user-1"})).To(Succeed())

			expenses, err := db.ListExpenses(ctx, "user-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(expenses).To(HaveLen(2))
		})

		It("should return an empty list for a new user", func() {
			expenses, err := db.ListExpenses(ctx, "nobody")
			Expect(err).NotTo(HaveOccurred())
			Expect(expenses).NotTo(BeNil())
			Expect(expenses).To(BeEmpty())
		})

		It("should delete an expense", func() {
			Expect(db.DeleteExpense(ctx, "user-1", "e1")).To(Succeed())
			_, err := db.GetExpense(ctx, "user-1", "e1")
			Expect(err).To(MatchError(ErrNotFound))
		})

		It("should report deleting a missing expense", func() {
			Expect(db.DeleteExpense(ctx, "user-2", "e1")).To(MatchError(ErrNotFound))
		})
	})

	Describe("budgets", func() {
		It("should not store the derived spent amount", func() {
			Expect(db.SaveBudget(ctx, &Budget{ID: "b1", UserID: "user-1", Amount: 500, Spent: 300})).To(Succeed())

			budgets, err := db.ListBudgets(ctx, "user-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(budgets).To(HaveLen(1))
			Expect(budgets[0].Amount).To(Equal(int64(500)))
			Expect(budgets[0].Spent).To(BeZero())
		})

		It("should delete a budget", func() {
			Expect(db.SaveBudget(ctx, &Budget{ID: "b1", UserID: "user-1"})).To(Succeed())
			Expect(db.DeleteBudget(ctx, "user-1", "b1")).To(Succeed())
			budgets, err := db.ListBudgets(ctx, "user-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(budgets).To(BeEmpty())
		})
	})

	Describe("categories", func() {
		It("should save, list and delete", func() {
			Expect(db.SaveCategory(ctx, &Category{ID: "c1", UserID: "user-1", Name: "Pets"})).To(Succeed())
			categories, err := db.ListCategories(ctx, "user-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(categories).To(HaveLen(1))
			Expect(categories[0].Name).To(Equal("Pets"))

			Expect(db.DeleteCategory(ctx, "user-1", "c1")).To(Succeed())
			Expect(db.DeleteCategory(ctx, "user-1", "c1")).To(MatchError(ErrNotFound))
		})
	})

	Describe("currencies", func() {
		It("should list every currency", func() {
			Expect(db.SaveCurrency(ctx, &Currency{ID: "usd", Code: "USD"})).To(Succeed())
			Expect(db.SaveCurrency(ctx, &Currency{ID: "eur", Code: "EUR"})).To(Succeed())

			currencies, err := db.ListCurrencies(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(currencies).To(HaveLen(2))
		})
	})

	Describe("profiles", func() {
		It("should report a missing profile", func() {
			_, err := db.GetProfile(ctx, "user-1")
			Expect(err).To(MatchError(ErrNotFound))
		})

		It("should read back a saved profile", func() {
			Expect(db.SaveProfile(ctx, &Profile{ID: "user-1", FullName: "Ada"})).To(Succeed())
			profile, err := db.GetProfile(ctx, "user-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(profile.FullName).To(Equal("Ada"))
		})
	})

	Describe("reopening", func() {
		It("should keep data across restarts", func() {
			Expect(db.SaveProfile(ctx, &Profile{ID: "user-1"})).To(Succeed())
			Expect(db.Close()).To(Succeed())

			var err error
			db, err = NewBoltDB(dbPath)
			Expect(err).NotTo(HaveOccurred())
			_, err = db.GetProfile(ctx, "user-1")
			Expect(err).NotTo(HaveOccurred())
		})
	})
})
