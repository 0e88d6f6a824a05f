package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/expense-tracker/internal/expense"
	"github.com/zombor/expense-tracker/internal/remote"
	"github.com/zombor/expense-tracker/internal/scanning"
)

var _ = Describe("Integration", func() {
	var (
		db       *expense.BoltDB
		storage  *expense.LocalStorage
		ollama   *ghttp.Server
		apiSrv   *ghttp.Server
		pipeline *scanning.Pipeline
	)

	BeforeEach(func() {
		tempDir := GinkgoT().TempDir()

		var err error
		db, err = expense.NewBoltDB(filepath.Join(tempDir, "test.db"))
		Expect(err).NotTo(HaveOccurred())

		storage, err = expense.NewLocalStorage(filepath.Join(tempDir, "receipts"))
		Expect(err).NotTo(HaveOccurred())

		// A fake Ollama server answers the extraction call
		ollama = ghttp.NewServer()
		extractor, err := scanning.NewOllama(ollama.URL(), "llava")
		Expect(err).NotTo(HaveOccurred())
		pipeline = scanning.NewPipeline(extractor, scanning.Config{})

		retrier := remote.NewWithSleep(remote.DefaultConfig(), noSleep)
		service := expense.NewService(db, storage, retrier)
		Expect(service.SeedCurrencies(context.Background())).To(Succeed())

		server := NewServer(service, pipeline, Config{})
		apiSrv = ghttp.NewServer()
		apiSrv.RouteToHandler(http.MethodPost, "/api/receipts/scan", server.ServeHTTP)
		apiSrv.RouteToHandler(http.MethodPost, "/api/expenses", server.ServeHTTP)
	})

	AfterEach(func() {
		apiSrv.Close()
		ollama.Close()
		pipeline.Close()
		db.Close()
	})

	post := func(path string, v any) *http.Response {
		data, err := json.Marshal(v)
		Expect(err).NotTo(HaveOccurred())
		resp, err := http.Post(apiSrv.URL()+path, "application/json", bytes.NewReader(data))
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	It("should scan a receipt and save the reviewed draft", func() {
		today := time.Now().UTC().Format(expense.DateLayout)
		ollama.AppendHandlers(ghttp.CombineHandlers(
			ghttp.VerifyRequest(http.MethodPost, "/api/chat"),
			ghttp.RespondWith(http.StatusOK, `{"message":{"role":"assistant","content":"`+
				`{\"merchant\":\"Cafe Luna\",\"amount\":12.5,\"date\":\"`+today+`\",\"items\":[\"Latte\"],`+
				`\"category\":\"Food & Dining\",\"tax\":0.5,\"currency\":\"USD\",\"confidence\":0.95}"},"done":true}`),
		))

		// --- Step 1: Scan Request ---
		resp := post("/api/receipts/scan", map[string]string{"imageBase64": "data:image/png;base64," + pngBase64()})
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(resp.Header.Get("Content-Type")).To(ContainSubstring("application/json"))

		body, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		var scanned scanResponse
		Expect(json.Unmarshal(body, &scanned)).To(Succeed())
		Expect(scanned.Degraded).To(BeFalse())
		Expect(scanned.Draft).NotTo(BeNil())
		Expect(scanned.Draft.Expense.Amount).To(Equal(int64(1250)))
		Expect(*scanned.Draft.Tax).To(Equal(int64(50)))
		Expect(scanned.Draft.Expense.Date).To(Equal(today))

		// Nothing is stored until the draft is confirmed
		expenses, err := db.ListExpenses(context.Background(), LocalUserID)
		Expect(err).NotTo(HaveOccurred())
		Expect(expenses).To(BeEmpty())

		// --- Step 2: Save Request ---
		saveResp := post("/api/expenses", scanned.Draft.Expense)
		defer saveResp.Body.Close()
		Expect(saveResp.StatusCode).To(Equal(http.StatusCreated))

		expenses, err = db.ListExpenses(context.Background(), LocalUserID)
		Expect(err).NotTo(HaveOccurred())
		Expect(expenses).To(HaveLen(1))
		Expect(expenses[0].Description).To(Equal("Cafe Luna"))
		Expect(expenses[0].Notes).To(Equal("Latte"))
		Expect(expenses[0].CurrencyID).To(Equal(expense.CurrencyID("USD")))
	})

	It("should report an unreachable extraction service as a bad gateway", func() {
		ollama.AppendHandlers(ghttp.RespondWith(http.StatusInternalServerError, "model not loaded"))

		resp := post("/api/receipts/scan", map[string]string{"imageBase64": pngBase64()})
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))
		Expect(ollama.ReceivedRequests()).To(HaveLen(1))
	})
})

func pngBase64() string {
	return base64.StdEncoding.EncodeToString(testPNG())
}
