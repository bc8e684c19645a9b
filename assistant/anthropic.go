package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/liamcoop/ruleweave/internal/logger"
	"golang.org/x/time/rate"
)

const (
	DefaultAnthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion        = "2023-06-01"
)

// AnthropicConfig configures an AnthropicCompleter
type AnthropicConfig struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	// Backoff is the first retry delay; it doubles on every further attempt
	Backoff time.Duration
	// RatePerSecond and Burst throttle outbound requests. Zero disables throttling.
	RatePerSecond float64
	Burst         int
}

// DefaultAnthropicConfig returns the production endpoint with a short retry budget
func DefaultAnthropicConfig() AnthropicConfig {
	return AnthropicConfig{
		BaseURL:       DefaultAnthropicBaseURL,
		Timeout:       60 * time.Second,
		MaxRetries:    3,
		Backoff:       time.Second,
		RatePerSecond: 5,
		Burst:         5,
	}
}

// AnthropicCompleter calls the Anthropic Messages API
type AnthropicCompleter struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewAnthropicCompleter creates a completer from config, filling zero values with defaults
func NewAnthropicCompleter(cfg AnthropicConfig) *AnthropicCompleter {
	def := DefaultAnthropicConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = def.Backoff
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}

	return &AnthropicCompleter{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    limiter,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
	}
}

// Complete sends the prompt and returns the concatenated text blocks of the reply.
// 429 and 5xx responses are retried with exponential backoff.
func (c *AnthropicCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if req.APIKey == "" {
		return "", ErrMissingAPIKey
	}

	body, err := json.Marshal(anthropicRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		System:      req.System,
		Messages:    []anthropicMessage{{Role: "user", Content: req.Prompt}},
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	start := time.Now()
	logger.LLMRequests.Add(1)

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepContext(ctx, c.backoff<<(attempt-1)); err != nil {
				return "", err
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter: %w", err)
		}

		text, retry, err := c.do(ctx, req.APIKey, body)
		if err == nil {
			logger.Debug("anthropic completion finished", "model", req.Model, "attempts", attempt+1, "duration", time.Since(start), "response_len", len(text))
			return text, nil
		}
		lastErr = err
		if !retry {
			break
		}
		logger.Debug("anthropic request failed, retrying", "attempt", attempt+1, "error", err)
	}

	logger.LLMFailures.Add(1)
	logger.Warn("anthropic completion failed", "model", req.Model, "duration", time.Since(start), "error", lastErr)
	return "", lastErr
}

// do performs one HTTP round trip and reports whether a failure is retryable
func (c *AnthropicCompleter) do(ctx context.Context, apiKey string, body []byte) (string, bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", ctx.Err() == nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return "", true, fmt.Errorf("API request failed with status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return "", false, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", false, fmt.Errorf("failed to parse response: %w", err)
	}
	if parsed.Error != nil {
		return "", false, fmt.Errorf("API error: %s", parsed.Error.Message)
	}

	var text strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", false, fmt.Errorf("no completion returned")
	}
	return text.String(), false, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
