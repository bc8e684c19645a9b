package assistant

import (
	"context"
	"fmt"
	"time"

	"github.com/liamcoop/ruleweave/internal/logger"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// GeminiCompleter calls Google's Gemini API through the genai SDK. A client is
// built per request because the key arrives with each request.
type GeminiCompleter struct {
	limiter *rate.Limiter
}

// NewGeminiCompleter creates a completer throttled to ratePerSecond (zero disables throttling)
func NewGeminiCompleter(ratePerSecond float64, burst int) *GeminiCompleter {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if ratePerSecond > 0 {
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(ratePerSecond), burst)
	}
	return &GeminiCompleter{limiter: limiter}
}

func (c *GeminiCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if req.APIKey == "" {
		return "", ErrMissingAPIKey
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  req.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create GenAI client: %w", err)
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(req.Temperature)),
		MaxOutputTokens: int32(req.MaxTokens),
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	start := time.Now()
	logger.LLMRequests.Add(1)

	resp, err := client.Models.GenerateContent(ctx, req.Model, genai.Text(req.Prompt), cfg)
	if err != nil {
		logger.LLMFailures.Add(1)
		logger.Warn("gemini completion failed", "model", req.Model, "duration", time.Since(start), "error", err)
		return "", fmt.Errorf("generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		logger.LLMFailures.Add(1)
		return "", fmt.Errorf("no completion returned")
	}
	logger.Debug("gemini completion finished", "model", req.Model, "duration", time.Since(start), "response_len", len(text))
	return text, nil
}
