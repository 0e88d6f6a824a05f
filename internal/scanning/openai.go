package scanning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zombor/expense-tracker/internal/remote"
)

// DefaultOpenAIBaseURL points at Groq's OpenAI-compatible endpoint
const DefaultOpenAIBaseURL = "https://api.groq.com/openai/v1"

// OpenAI implements the Extractor interface against any OpenAI-compatible
// chat completions API (OpenAI, Groq, OpenRouter, vLLM).
type OpenAI struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewOpenAI creates a new OpenAI-compatible Extractor
func NewOpenAI(baseURL, apiKey, modelName string) (*OpenAI, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key is required")
	}
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	if modelName == "" {
		modelName = "meta-llama/llama-4-scout-17b-16e-instruct"
	}

	return &OpenAI{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   modelName,
		client:  &http.Client{Timeout: 60 * time.Second},
	}, nil
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	User        string        `json:"user,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatContentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatImageURL struct {
	URL string `json:"url"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type chatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Extract sends the receipt image as a data URL in a chat completion request
func (o *OpenAI) Extract(ctx context.Context, req Request) (string, error) {
	body := chatCompletionRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: []chatContentPart{
				{Type: "text", Text: req.UserPrompt},
				{Type: "image_url", ImageURL: &chatImageURL{
					URL: fmt.Sprintf("data:%s;base64,%s", req.MIMEType, req.ImageBase64),
				}},
			}},
		},
		Temperature: 0.1,
		MaxTokens:   500,
		User:        req.UserID,
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("%w: marshaling request: %w", ErrTransport, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("%w: creating request: %w", ErrTransport, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: calling chat completions API: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		statusErr := &remote.StatusError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(errBody))}
		var apiErr chatErrorResponse
		if json.Unmarshal(errBody, &apiErr) == nil && apiErr.Error.Message != "" {
			statusErr.Message = apiErr.Error.Message
			statusErr.Code = apiErr.Error.Code
		}
		return "", fmt.Errorf("%w: chat completions API: %w", ErrTransport, statusErr)
	}

	var completion chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", fmt.Errorf("%w: decoding response: %w", ErrTransport, err)
	}

	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w: no content returned from chat completions API", ErrTransport)
	}
	text := strings.TrimSpace(completion.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("%w: no content returned from chat completions API", ErrTransport)
	}
	return text, nil
}

// Close is a no-op for the HTTP client
func (o *OpenAI) Close() error {
	return nil
}
