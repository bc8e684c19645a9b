package assistant

import (
	"context"
	"errors"
	"fmt"
)

const validateSystemPrompt = `You are a rule syntax validator. You analyze rule code and check for syntax errors or logical inconsistencies.`

const validatePromptTemplate = `Analyze the following rule code and check for syntax errors or logical inconsistencies:

%s

Respond with a JSON object like this:
{
  "isValid": true or false,
  "errors": [] (an array of error messages if any),
  "suggestions": [] (an array of improvement suggestions if any)
}

ONLY return the JSON object with no additional text.`

// ValidationResult reports whether a rule is well formed
type ValidationResult struct {
	IsValid     bool     `json:"isValid"`
	Errors      []string `json:"errors"`
	Suggestions []string `json:"suggestions"`
}

// Validator checks rule code. apiKey may be ignored by validators that run locally.
type Validator interface {
	Validate(ctx context.Context, ruleCode, apiKey string) (*ValidationResult, error)
}

// LLMValidator asks a model to review rule code
type LLMValidator struct {
	completer Completer
	models    Models
}

func NewLLMValidator(completer Completer, models Models) *LLMValidator {
	return &LLMValidator{completer: completer, models: models.withDefaults(DefaultAnthropicModels)}
}

func (v *LLMValidator) Validate(ctx context.Context, ruleCode, apiKey string) (*ValidationResult, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	reply, err := v.completer.Complete(ctx, CompletionRequest{
		APIKey:      apiKey,
		Model:       v.models.Main,
		System:      validateSystemPrompt,
		Prompt:      fmt.Sprintf(validatePromptTemplate, ruleCode),
		MaxTokens:   1000,
		Temperature: 0.2,
	})
	if err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}

	parsed, err := ExtractJSON[ValidationResult](reply)
	switch {
	case errors.Is(err, ErrNoJSON):
		return &ValidationResult{
			IsValid:     false,
			Errors:      []string{"Could not validate rule format"},
			Suggestions: []string{"Check rule syntax and ensure it follows the expected format"},
		}, nil
	case err != nil:
		return &ValidationResult{
			IsValid:     false,
			Errors:      []string{"Failed to parse validation response"},
			Suggestions: []string{"Try simplifying the rule syntax"},
		}, nil
	}
	return parsed.normalized(), nil
}

func (r *ValidationResult) normalized() *ValidationResult {
	if r.Errors == nil {
		r.Errors = []string{}
	}
	if r.Suggestions == nil {
		r.Suggestions = []string{}
	}
	return r
}

// MultiValidator runs validators in order and merges their findings. The rule
// is valid only when every validator accepts it. A validator failing with
// ErrMissingAPIKey is skipped.
type MultiValidator []Validator

func (m MultiValidator) Validate(ctx context.Context, ruleCode, apiKey string) (*ValidationResult, error) {
	merged := &ValidationResult{IsValid: true, Errors: []string{}, Suggestions: []string{}}
	for _, v := range m {
		res, err := v.Validate(ctx, ruleCode, apiKey)
		if errors.Is(err, ErrMissingAPIKey) {
			continue
		}
		if err != nil {
			return nil, err
		}
		merged.IsValid = merged.IsValid && res.IsValid
		merged.Errors = appendUnique(merged.Errors, res.Errors...)
		merged.Suggestions = appendUnique(merged.Suggestions, res.Suggestions...)
	}
	return merged, nil
}

func appendUnique(dst []string, items ...string) []string {
	for _, item := range items {
		seen := false
		for _, existing := range dst {
			if existing == item {
				seen = true
				break
			}
		}
		if !seen {
			dst = append(dst, item)
		}
	}
	return dst
}
