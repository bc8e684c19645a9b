package main

import (
	"github.com/liamcoop/ruleweave/assistant"
	"github.com/liamcoop/ruleweave/rules"
	"github.com/liamcoop/ruleweave/templates"
)

// API request and response models

// TranslateRequest asks for rule code from a natural-language description
type TranslateRequest struct {
	NaturalLanguageRule string `json:"naturalLanguageRule" example:"Flag transactions over $500 from new users"`
	APIKey              string `json:"apiKey,omitempty"`
	Realtime            bool   `json:"realtime,omitempty"`
}

// ValidateRequest asks for a structural and, with a key, model-assisted review
type ValidateRequest struct {
	RuleCode string `json:"ruleCode" example:"if transaction.amount > 500 then flag_transaction"`
	APIKey   string `json:"apiKey,omitempty"`
}

// SuggestRequest asks for hints to continue a partial rule
type SuggestRequest struct {
	Text   string `json:"text" example:"if transaction.amount"`
	APIKey string `json:"apiKey,omitempty"`
}

// SuggestResponse wraps the suggestion list
type SuggestResponse struct {
	Suggestions []assistant.Suggestion `json:"suggestions"`
}

// FixRequest asks for heuristic repairs of rule code
type FixRequest struct {
	RuleCode string   `json:"ruleCode" example:"if a > 5 and b < 10"`
	Errors   []string `json:"errors,omitempty"`
	// TokenizeOperators opts into longest-match operator detection
	TokenizeOperators bool `json:"tokenizeOperators,omitempty"`
}

// TemplatesListResponse wraps the template catalog
type TemplatesListResponse struct {
	Templates  []templates.Template `json:"templates"`
	Categories []string             `json:"categories"`
}

// ApplyTemplateRequest carries variable values keyed by variable name
type ApplyTemplateRequest struct {
	Values map[string]any `json:"values"`
	// Save stores the applied template as a new rule
	Save bool `json:"save,omitempty"`
}

// SaveRuleRequest creates or updates a rule
type SaveRuleRequest struct {
	Name            string `json:"name" example:"High value"`
	NaturalLanguage string `json:"naturalLanguage" example:"Flag transactions over $1000"`
	RuleCode        string `json:"ruleCode" example:"if transaction.amount > 1000 then flag_transaction"`
}

// RulesListResponse wraps the rule collection
type RulesListResponse struct {
	Rules []*rules.Rule `json:"rules"`
}

// VersionsResponse lists a rule's history, oldest first
type VersionsResponse struct {
	RuleID   string          `json:"ruleId"`
	Versions []rules.Version `json:"versions"`
}

// RevertRequest names the version to restore
type RevertRequest struct {
	VersionIndex *int `json:"versionIndex" example:"0"`
}

// ErrorResponse is returned with every non-2xx status
type ErrorResponse struct {
	Error   string `json:"error" example:"rule not found"`
	Details string `json:"details,omitempty"`
}
