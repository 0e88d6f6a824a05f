package expense

import (
	"context"
	"errors"
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/expense-tracker/internal/scanning"
)

var _ = Describe("DraftFromExtraction", func() {
	var (
		ctx     context.Context
		store   *mockStore
		service *Service
		outcome scanning.Outcome
		draft   *Draft
		err     error
	)

	strPtr := func(s string) *string { return &s }
	floatPtr := func(f float64) *float64 { return &f }

	BeforeEach(func() {
		ctx = context.Background()
		store = newMockStore()
		store.categories["food"] = &Category{ID: "food", UserID: "user-1", Name: "Food & Dining"}
		store.categories["other"] = &Category{ID: "other", UserID: "user-1", Name: "Other"}
		for _, c := range DefaultCurrencies {
			currency := c
			currency.ID = CurrencyID(c.Code)
			store.currencies[currency.ID] = &currency
		}
		store.profiles["user-1"] = &Profile{ID: "user-1", CurrencyID: CurrencyID("EUR")}
	})

	JustBeforeEach(func() {
		service = NewServiceWithDeps(store, newMockStorage(), testRetrier(), &sequentialIDs{}, fixedTime{now: time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC)})
		draft, err = service.DraftFromExtraction(ctx, "user-1", outcome)
	})

	When("the receipt was parsed", func() {
		BeforeEach(func() {
			outcome = scanning.Parsed{
				Receipt: scanning.ReceiptExtraction{
					Merchant:   strPtr("Cafe Luna"),
					Amount:     floatPtr(12.5),
					Date:       "2025-03-18",
					Items:      []string{"Latte", "Croissant"},
					Category:   "food & dining",
					Tax:        floatPtr(1.05),
					Currency:   "GBP",
					Confidence: 0.9,
				},
			}
		})

		It("fills the expense input", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(draft.Expense).To(Equal(ExpenseInput{
				Description: "Cafe Luna",
				Amount:      1250,
				Date:        "2025-03-18",
				CategoryID:  "food",
				CurrencyID:  CurrencyID("GBP"),
				Notes:       "Latte, Croissant",
			}))
			Expect(*draft.Tax).To(Equal(int64(105)))
		})

		It("is ready to confirm", func() {
			Expect(draft.NeedsReview).To(BeFalse())
			Expect(draft.Degraded).To(BeFalse())
		})
	})

	When("the currency uses no minor units", func() {
		BeforeEach(func() {
			outcome = scanning.Parsed{
				Receipt: scanning.ReceiptExtraction{Amount: floatPtr(1200), Date: "2025-03-18", Category: "Other", Currency: "JPY", Confidence: 0.8},
			}
		})

		It("keeps the amount whole", func() {
			Expect(draft.Expense.Amount).To(Equal(int64(1200)))
		})
	})

	When("the amount is too large to store", func() {
		BeforeEach(func() {
			outcome = scanning.Parsed{
				Receipt: scanning.ReceiptExtraction{Amount: floatPtr(1e19), Tax: floatPtr(1e19), Date: "2025-03-18", Category: "Other", Currency: "USD", Confidence: 0.9},
			}
		})

		It("leaves the amount for manual entry", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(draft.Expense.Amount).To(BeZero())
			Expect(draft.Tax).To(BeNil())
			Expect(draft.NeedsReview).To(BeTrue())
		})
	})

	When("the currency is unknown", func() {
		BeforeEach(func() {
			outcome = scanning.Parsed{
				Receipt: scanning.ReceiptExtraction{Date: "2025-03-18", Category: "Travel", Currency: "SEK", Confidence: 0.4},
			}
		})

		It("uses the profile currency", func() {
			Expect(draft.Expense.CurrencyID).To(Equal(CurrencyID("EUR")))
		})

		It("falls back to the Other category", func() {
			Expect(draft.Expense.CategoryID).To(Equal("other"))
		})

		It("requires review", func() {
			Expect(draft.NeedsReview).To(BeTrue())
		})
	})

	When("the receipt could not be parsed", func() {
		BeforeEach(func() {
			outcome = scanning.Degraded{
				Receipt: scanning.ReceiptExtraction{Date: "2025-03-20", Items: []string{}, Category: "Other", Currency: "USD", Confidence: 0.2},
				Raw:     "I cannot read this receipt.",
				Reason:  errors.New("response is not a JSON object"),
			}
		})

		It("returns an empty draft for manual entry", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(draft.Degraded).To(BeTrue())
			Expect(draft.NeedsReview).To(BeTrue())
			Expect(draft.Expense.Description).To(BeEmpty())
			Expect(draft.Expense.Amount).To(BeZero())
			Expect(draft.Expense.Date).To(Equal("2025-03-20"))
			Expect(draft.Tax).To(BeNil())
		})
	})
})

var _ = Describe("toMinorUnits", func() {
	minor := func(amount float64, decimals int) int64 {
		units, ok := toMinorUnits(amount, decimals)
		Expect(ok).To(BeTrue())
		return units
	}

	It("rounds to the nearest minor unit", func() {
		Expect(minor(19.99, 2)).To(Equal(int64(1999)))
		Expect(minor(0.1+0.2, 2)).To(Equal(int64(30)))
		Expect(minor(500, 0)).To(Equal(int64(500)))
	})

	It("refuses amounts that overflow an int64", func() {
		_, ok := toMinorUnits(1e19, 2)
		Expect(ok).To(BeFalse())
		_, ok = toMinorUnits(1e17, 2)
		Expect(ok).To(BeFalse())
		_, ok = toMinorUnits(math.Inf(1), 0)
		Expect(ok).To(BeFalse())
	})
})
