// Package llm provides the chat/image completion client used by the narrator,
// the conversation transcript, and the prompts the simulation sends.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	defaultBaseURL    = "https://api.openai.com/v1"
	defaultModel      = "gpt-4o-mini"
	defaultImageModel = "dall-e-3"

	// MaxImagePrompt is the hard cap the image endpoint accepts.
	MaxImagePrompt = 1000
)

// ErrDisabled is returned by every call on a client without an API key.
var ErrDisabled = errors.New("LLM client not configured")

// ErrRateLimited is returned when the per-minute call budget is spent.
var ErrRateLimited = errors.New("LLM rate limit exceeded")

// Config configures a Client. Zero values fall back to defaults.
type Config struct {
	APIKey       string
	BaseURL      string
	Model        string
	ImageModel   string
	Timeout      time.Duration
	MaxPerMinute int
	Retries      int
	RetryDelay   time.Duration
}

// Client wraps an OpenAI-compatible chat completions and images API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	imageModel string
	httpClient *http.Client

	retries    int
	retryDelay time.Duration

	// Rate limiting: max calls per minute.
	mu        sync.Mutex
	callCount int
	resetAt   time.Time
	maxPerMin int
}

// NewClient creates a new API client.
// Returns nil if the API key is empty (LLM features disabled).
func NewClient(cfg Config) *Client {
	if cfg.APIKey == "" {
		return nil
	}
	c := &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		imageModel: cfg.ImageModel,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		retries:    cfg.Retries,
		retryDelay: cfg.RetryDelay,
		maxPerMin:  cfg.MaxPerMinute,
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.model == "" {
		c.model = defaultModel
	}
	if c.imageModel == "" {
		c.imageModel = defaultImageModel
	}
	if c.httpClient.Timeout <= 0 {
		c.httpClient.Timeout = 60 * time.Second
	}
	if c.retries <= 0 {
		c.retries = 3
	}
	if c.retryDelay < 0 {
		c.retryDelay = 0
	}
	if c.maxPerMin <= 0 {
		c.maxPerMin = 30
	}
	return c
}

// Enabled returns true if the client has a valid API key.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// Params are the generation parameters of one chat call.
type Params struct {
	Temperature      float64
	TopP             float64
	PresencePenalty  float64
	FrequencyPenalty float64
	MaxTokens        int
	ForceJSON        bool
}

// DefaultParams are the narrator's usual sampling settings.
func DefaultParams() Params {
	return Params{Temperature: 0.7, TopP: 1.0, FrequencyPenalty: 0.3}
}

// WithTemperature returns a copy of p using t.
func (p Params) WithTemperature(t float64) Params {
	p.Temperature = t
	return p
}

type chatRequest struct {
	Model            string          `json:"model"`
	Messages         []Message       `json:"messages"`
	Temperature      float64         `json:"temperature"`
	TopP             float64         `json:"top_p"`
	PresencePenalty  float64         `json:"presence_penalty"`
	FrequencyPenalty float64         `json:"frequency_penalty"`
	MaxTokens        int             `json:"max_tokens,omitempty"`
	ResponseFormat   *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

type imageRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	N      int    `json:"n"`
	Size   string `json:"size"`
}

type imageResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}

// Complete sends the transcript and returns the assistant reply text.
// Transient failures are retried with a fixed delay; the last error is
// returned once retries are exhausted.
func (c *Client) Complete(ctx context.Context, messages []Message, p Params) (string, error) {
	if !c.Enabled() {
		return "", ErrDisabled
	}
	if err := c.take(); err != nil {
		return "", err
	}

	req := chatRequest{
		Model:            c.model,
		Messages:         messages,
		Temperature:      p.Temperature,
		TopP:             p.TopP,
		PresencePenalty:  p.PresencePenalty,
		FrequencyPenalty: p.FrequencyPenalty,
		MaxTokens:        p.MaxTokens,
	}
	if p.ForceJSON {
		req.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	var resp chatResponse
	if err := c.retry(ctx, "chat", func() error {
		return c.post(ctx, "/chat/completions", req, &resp)
	}); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response")
	}

	slog.Debug("chat call",
		"model", c.model,
		"messages", len(messages),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)
	return resp.Choices[0].Message.Content, nil
}

// GenerateImage requests one image for prompt and returns its URLs. Prompts
// over MaxImagePrompt characters are truncated with "...". A response
// without URLs is an error.
func (c *Client) GenerateImage(ctx context.Context, prompt, size string) ([]string, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}
	if err := c.take(); err != nil {
		return nil, err
	}
	if size == "" {
		size = "1024x1024"
	}

	req := imageRequest{Model: c.imageModel, Prompt: Truncate(prompt, MaxImagePrompt), N: 1, Size: size}
	var resp imageResponse
	if err := c.retry(ctx, "image", func() error {
		return c.post(ctx, "/images/generations", req, &resp)
	}); err != nil {
		return nil, err
	}

	urls := make([]string, 0, len(resp.Data))
	for _, d := range resp.Data {
		if d.URL != "" {
			urls = append(urls, d.URL)
		}
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("image response held no URLs")
	}
	return urls, nil
}

// take spends one call from the per-minute budget.
func (c *Client) take() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	if now.After(c.resetAt) {
		c.callCount = 0
		c.resetAt = now.Add(time.Minute)
	}
	if c.callCount >= c.maxPerMin {
		return fmt.Errorf("%w (%d calls/min)", ErrRateLimited, c.maxPerMin)
	}
	c.callCount++
	return nil
}

func (c *Client) retry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= c.retries; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		var se *statusError
		if errors.As(err, &se) && !se.retryable() {
			return err
		}
		if attempt == c.retries {
			break
		}
		slog.Warn("LLM call failed, retrying", "op", op, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retryDelay):
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", op, c.retries, err)
}

// statusError is a non-2xx API response.
type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.Code, e.Body)
}

// Client errors other than throttling will not change on retry.
func (e *statusError) retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("API call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &statusError{Code: resp.StatusCode, Body: string(respBody)}
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// Truncate shortens s to at most max characters, ending in "..." when cut.
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
