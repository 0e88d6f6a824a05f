// Package postgrest implements the expense store on a hosted PostgREST API,
// such as the one Supabase exposes under /rest/v1.
package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zombor/expense-tracker/internal/remote"
)

// Client talks to a PostgREST endpoint. Non-2xx responses are returned as
// *remote.StatusError so the retrier can classify them.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// New creates a Client. baseURL is the REST root, e.g. https://xyz.supabase.co/rest/v1
func New(baseURL, apiKey string) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("postgrest url is required")
	}
	if apiKey == "" {
		return nil, errors.New("postgrest api key is required")
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// request describes one PostgREST call
type request struct {
	method string
	table  string
	query  url.Values
	body   any
	prefer string
}

func eq(v string) string {
	return "eq." + v
}

// do sends a request and decodes a JSON array response into out when out is non-nil
func (c *Client) do(ctx context.Context, req request, out any) error {
	var body io.Reader
	if req.body != nil {
		data, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("marshaling %s: %w", req.table, err)
		}
		body = bytes.NewReader(data)
	}

	endpoint := fmt.Sprintf("%s/%s", c.baseURL, req.table)
	if len(req.query) > 0 {
		endpoint += "?" + req.query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, endpoint, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("apikey", c.apiKey)
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.prefer != "" {
		httpReq.Header.Set("Prefer", req.prefer)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("calling %s %s: %w", req.method, req.table, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", req.table, err)
	}
	return nil
}

// decodeError reads a PostgREST error body: {message, code, details, hint}
func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	statusErr := &remote.StatusError{StatusCode: resp.StatusCode}
	if err := json.Unmarshal(data, statusErr); err != nil || statusErr.Message == "" {
		statusErr.Message = strings.TrimSpace(string(data))
	}
	if statusErr.Message == "" {
		statusErr.Message = http.StatusText(resp.StatusCode)
	}
	return statusErr
}

// Close releases idle connections
func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
