// Package enrich talks to the Gemini generateContent endpoint. It attaches
// short explanations to quiz questions and answers free-form chat messages
// as a tutor.
package enrich

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

	"github.com/tidwall/gjson"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	DefaultModel   = "gemini-1.5-flash"
	DefaultTimeout = 60 * time.Second

	RoleUser  = "user"
	RoleModel = "model"
)

// ErrEmptyReply is returned when a 2xx response carries no candidate text.
var ErrEmptyReply = errors.New("gemini: reply has no candidate text")

// Part is a single text part of a Content.
type Part struct {
	Text string `json:"text"`
}

// Content is one conversation turn.
type Content struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

func UserText(s string) Content  { return Content{Role: RoleUser, Parts: []Part{{Text: s}}} }
func ModelText(s string) Content { return Content{Role: RoleModel, Parts: []Part{{Text: s}}} }

type generateRequest struct {
	Contents []Content `json:"contents"`
}

// Generator produces the model's text reply for a conversation.
type Generator interface {
	Generate(ctx context.Context, contents []Content) (string, error)
}

// HTTPStatusError captures non-2xx upstream responses.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("gemini: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

// Client is a minimal Gemini REST client. One Generate call is exactly one
// HTTP request; there are no retries.
type Client struct {
	baseURL    string
	model      string
	apiKey     string
	httpClient *http.Client
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if s := strings.TrimSpace(baseURL); s != "" {
			c.baseURL = s
		}
	}
}

func WithModel(model string) Option {
	return func(c *Client) {
		if s := strings.TrimSpace(model); s != "" {
			c.model = s
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func NewClient(apiKey string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini: api key must not be empty")
	}
	c := &Client{
		baseURL:    DefaultBaseURL,
		model:      DefaultModel,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Model() string { return c.model }

func generateURL(baseURL, model string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if !strings.HasSuffix(base, "/v1") && !strings.HasSuffix(base, "/v1beta") {
		base += "/v1"
	}
	return base + "/models/" + url.PathEscape(model) + ":generateContent"
}

// Generate posts contents and returns candidates[0].content.parts[0].text.
func (c *Client) Generate(ctx context.Context, contents []Content) (string, error) {
	if len(contents) == 0 {
		return "", errors.New("gemini: no contents")
	}
	body, err := json.Marshal(generateRequest{Contents: contents})
	if err != nil {
		return "", fmt.Errorf("gemini: marshal request: %w", err)
	}

	u := generateURL(c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("gemini: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	raw, err := c.doJSONRequest(req, u)
	if err != nil {
		return "", fmt.Errorf("gemini: request failed: %w", err)
	}

	text := gjson.GetBytes(raw, "candidates.0.content.parts.0.text")
	if !text.Exists() || text.Type != gjson.String {
		return "", ErrEmptyReply
	}
	return text.String(), nil
}

func (c *Client) doJSONRequest(req *http.Request, u string) ([]byte, error) {
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{StatusCode: res.StatusCode, URL: u, Body: string(buf)}
	}
	buf, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}
