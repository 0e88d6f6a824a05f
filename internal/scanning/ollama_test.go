package scanning

import (
	"context"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/expense-tracker/internal/remote"
)

var _ = Describe("Ollama", func() {
	var (
		server    *ghttp.Server
		extractor *Ollama
		req       Request
		text      string
		err       error
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		extractor, err = NewOllama(server.URL()+"/", "llava")
		Expect(err).NotTo(HaveOccurred())
		req = Request{
			SystemPrompt: "system",
			UserPrompt:   "user",
			ImageBase64:  "aW1hZ2U=",
			MIMEType:     "image/png",
			UserID:       "user-1",
		}
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		text, err = extractor.Extract(context.Background(), req)
	})

	When("the server answers", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/api/chat"),
				ghttp.VerifyContentType("application/json"),
				ghttp.VerifyJSONRepresenting(ollamaChatRequest{
					Model:  "llava",
					Stream: false,
					Format: "json",
					Messages: []ollamaMessage{
						{Role: "system", Content: "system"},
						{Role: "user", Content: "user", Images: []string{"aW1hZ2U="}},
					},
					Options: ollamaOptions{Temperature: 0.1, NumPredict: 500},
				}),
				ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{
					Message: ollamaMessage{Role: "assistant", Content: "  {\"merchant\":\"Shop\"}\n"},
					Done:    true,
				}),
			))
		})

		It("returns the trimmed message content", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal(`{"merchant":"Shop"}`))
		})
	})

	When("the server returns an error status", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusServiceUnavailable, "model is loading"))
		})

		It("returns a retryable transport error", func() {
			Expect(err).To(MatchError(ErrTransport))
			status, ok := remote.HTTPStatus(err)
			Expect(ok).To(BeTrue())
			Expect(status).To(Equal(http.StatusServiceUnavailable))
			Expect(remote.IsRetryable(err)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("model is loading"))
		})
	})

	When("the model is missing", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusNotFound, `{"error":"model not found"}`))
		})

		It("returns a permanent transport error", func() {
			Expect(err).To(MatchError(ErrTransport))
			Expect(remote.IsRetryable(err)).To(BeFalse())
		})
	})

	When("the reply is empty", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{Done: true}))
		})

		It("returns a transport error", func() {
			Expect(err).To(MatchError(ErrTransport))
		})
	})

	When("the reply is not JSON", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusOK, "<html>"))
		})

		It("returns a transport error", func() {
			Expect(err).To(MatchError(ErrTransport))
		})
	})
})

var _ = Describe("NewOllama", func() {
	It("applies defaults", func() {
		o, err := NewOllama("", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(o.baseURL).To(Equal("http://localhost:11434"))
		Expect(o.model).To(Equal("llava"))
		Expect(o.Close()).To(Succeed())
	})
})
