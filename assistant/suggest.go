package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/liamcoop/ruleweave/internal/logger"
)

// MaxSuggestions caps the suggestions returned for one partial rule
const MaxSuggestions = 5

const suggestSystemPrompt = `You are an AI assistant that helps users write rules for a rule engine.
Your task is to analyze the user's partial rule text and suggest relevant entities, conditions, actions, or values they might want to include next.
You should return suggestions in JSON format.`

const suggestPromptTemplate = `Here's a partial rule the user is writing:
%q

Based on this partial text, provide suggestions for what they might want to add next.
Consider suggesting:
- Entities (like transaction.amount, user.age, user.country, transaction.date, location.state, weekly_revenue, etc.)
- Conditions (like greater than, less than, equal to, not equal to, contains, etc.)
- Actions (like flag, block, approve, review, etc.)
- Values (specific amounts, countries, states, etc. that make sense in context)

Return ONLY a JSON object of suggestions in this format:
{
  "suggestions": [
    {
      "text": "transaction.amount",
      "category": "entity",
      "description": "The monetary value of the transaction"
    },
    {
      "text": "greater than",
      "category": "condition",
      "description": "Checks if a value exceeds a threshold"
    }
  ]
}

Limit to 5 most relevant suggestions. Ensure they make semantic sense with what the user has already typed.`

// Suggestion is one next-token hint for a partially written rule
type Suggestion struct {
	Text        string `json:"text"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

type suggestionReply struct {
	Suggestions []Suggestion `json:"suggestions"`
}

// Suggester proposes entities, conditions, actions and values for partial rules
type Suggester struct {
	completer Completer
	models    Models
	cache     SuggestionCache
}

// NewSuggester creates a suggester. cache may be nil to disable caching.
func NewSuggester(completer Completer, models Models, cache SuggestionCache) *Suggester {
	return &Suggester{
		completer: completer,
		models:    models.withDefaults(DefaultAnthropicModels),
		cache:     cache,
	}
}

// Suggest returns at most MaxSuggestions hints. An unparsable reply yields an
// empty list rather than an error.
func (s *Suggester) Suggest(ctx context.Context, text, apiKey string) ([]Suggestion, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	key := strings.TrimSpace(text)
	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			logger.Trace("suggestion cache hit", "text_len", len(key))
			return cached, nil
		}
	}

	reply, err := s.completer.Complete(ctx, CompletionRequest{
		APIKey:      apiKey,
		Model:       s.models.Main,
		System:      suggestSystemPrompt,
		Prompt:      fmt.Sprintf(suggestPromptTemplate, text),
		MaxTokens:   1000,
		Temperature: 0.2,
	})
	if err != nil {
		return nil, fmt.Errorf("suggest: %w", err)
	}

	parsed, err := ExtractJSON[suggestionReply](reply)
	if err != nil {
		// Unparsable replies are not cached so the next request asks again
		logger.Debug("discarding unparsable suggestion reply", "error", err)
		return []Suggestion{}, nil
	}

	suggestions := parsed.Suggestions
	if suggestions == nil {
		suggestions = []Suggestion{}
	}
	if len(suggestions) > MaxSuggestions {
		suggestions = suggestions[:MaxSuggestions]
	}

	if s.cache != nil {
		s.cache.Set(key, suggestions)
	}
	return suggestions, nil
}
