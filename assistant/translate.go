package assistant

import (
	"context"
	"fmt"
	"strings"
)

const translateSystemPrompt = `You are an expert system that translates natural language rule descriptions into structured rule code.
Your output should be valid JSON with a "rule" field containing the translated rule logic.`

const translatePromptTemplate = `Translate this into a rule expression using conditions and logical operators (and, or, not).
Use common fields like:
- transaction.amount
- user.age
- user.country
- transaction.date
- location.state
- weekly_revenue
- monthly_revenue

For example:
"Flag transactions over $500 from new users" would translate to:
{
  "rule": "if transaction.amount > 500 and user.is_new == true then flag_transaction"
}

Provide ONLY the JSON output with no additional text or explanation.

Natural language rule to translate: %q`

// Translation is the rule code produced from a natural-language description
type Translation struct {
	Rule string `json:"rule"`
}

// Translator turns natural-language descriptions into rule code
type Translator struct {
	completer Completer
	models    Models
}

func NewTranslator(completer Completer, models Models) *Translator {
	return &Translator{completer: completer, models: models.withDefaults(DefaultAnthropicModels)}
}

// Translate asks the model for rule code. Realtime requests trade quality for
// latency with the light model and a small token budget. A reply without
// decodable JSON is used verbatim as the rule.
func (t *Translator) Translate(ctx context.Context, text, apiKey string, realtime bool) (*Translation, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	req := CompletionRequest{
		APIKey:      apiKey,
		Model:       t.models.Main,
		System:      translateSystemPrompt,
		Prompt:      fmt.Sprintf(translatePromptTemplate, text),
		MaxTokens:   1000,
		Temperature: 0.3,
	}
	if realtime {
		req.Model = t.models.Light
		req.MaxTokens = 300
		req.Temperature = 0.2
	}

	reply, err := t.completer.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("translate: %w", err)
	}

	parsed, err := ExtractJSON[Translation](reply)
	if err != nil {
		return &Translation{Rule: strings.TrimSpace(reply)}, nil
	}
	return parsed, nil
}
