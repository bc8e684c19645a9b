// Package autofix repairs common textual defects in rule expressions.
//
// Repairs are heuristic and purely syntactic. The result always carries a
// human-readable explanation per repair and a confidence score so a person
// can decide whether to accept it; nothing here is applied silently.
package autofix

import (
	"fmt"
	"strings"
)

// NoFixExplanation is the single explanation reported when no repair applied
const NoFixExplanation = "No automatic fixes applied"

// Confidence penalties per repair
const (
	startingConfidence   = 100
	parenPenalty         = 5
	quotePenalty         = 5
	thenPenalty          = 10
	missingValuePenalty  = 15
	missingValueFiller   = " 0 "
	thenKeywordInsertion = " then "
)

// comparisonOperators are checked in this order. ">" precedes ">=" so a plain
// substring search for ">" can land inside a ">=" token.
var comparisonOperators = []string{">", "<", ">=", "<=", "==", "!="}

// FixResult is the outcome of one Fix call
type FixResult struct {
	FixedRule       string   `json:"fixedRule"`
	FixExplanations []string `json:"fixExplanations"`
	// ConfidenceScore starts at 100 and drops per repair. It is not clamped and
	// can go negative. It is 0 when nothing was fixed.
	ConfidenceScore int  `json:"confidenceScore"`
	WasFixed        bool `json:"wasFixed"`
}

// Options tunes the fixer
type Options struct {
	// TokenizeOperators matches comparison operators longest-first while
	// scanning left to right, so ">" never matches inside ">=".
	TokenizeOperators bool
}

// Fix applies the default heuristics. errs holds the validator's messages; it
// is accepted for future targeted repairs and does not influence the result.
func Fix(ruleCode string, errs []string) FixResult {
	return FixWithOptions(ruleCode, errs, Options{})
}

// FixWithOptions applies every heuristic in a fixed order. Each check sees the
// output of the previous one, so several repairs can stack in one call.
func FixWithOptions(ruleCode string, _ []string, opts Options) FixResult {
	fixed := ruleCode
	var explanations []string
	confidence := startingConfidence

	if missing := strings.Count(fixed, "(") - strings.Count(fixed, ")"); missing > 0 {
		fixed += strings.Repeat(")", missing)
		explanations = append(explanations, fmt.Sprintf("Added %d missing closing parenthesis", missing))
		confidence -= parenPenalty * missing
	}

	if strings.Count(fixed, `"`)%2 != 0 {
		fixed += `"`
		explanations = append(explanations, "Added missing closing quote")
		confidence -= quotePenalty
	}

	if strings.Count(fixed, "'")%2 != 0 {
		fixed += "'"
		explanations = append(explanations, "Added missing closing quote")
		confidence -= quotePenalty
	}

	if strings.Contains(fixed, "if") && strings.Contains(fixed, "and") && !strings.Contains(fixed, "then") {
		fixed = insertThen(fixed)
		explanations = append(explanations, `Added missing "then" keyword after conditions`)
		confidence -= thenPenalty
	}

	find := strings.Index
	if opts.TokenizeOperators {
		find = indexOperatorToken
	}
	for _, op := range comparisonOperators {
		opIndex := find(fixed, op)
		if opIndex == -1 {
			continue
		}
		end := opIndex + len(op)
		rest := strings.TrimSpace(fixed[end:])
		if rest != "" && !startsWithKeyword(rest) {
			continue
		}
		fixed = fixed[:end] + missingValueFiller + trimLeadingKeyword(rest)
		explanations = append(explanations, fmt.Sprintf("Added missing value after %q operator", op))
		confidence -= missingValuePenalty
	}

	if len(explanations) == 0 {
		return FixResult{
			FixedRule:       ruleCode,
			FixExplanations: []string{NoFixExplanation},
			ConfidenceScore: 0,
			WasFixed:        false,
		}
	}

	return FixResult{
		FixedRule:       fixed,
		FixExplanations: explanations,
		ConfidenceScore: confidence,
		WasFixed:        true,
	}
}

// insertThen places " then " after the condition that follows the last "and":
// at the next " and " or " or " boundary, or at the end of the string.
func insertThen(s string) string {
	andEnd := strings.LastIndex(s, "and") + len("and")
	tail := s[andEnd:]

	next := -1
	for _, sep := range []string{" and ", " or "} {
		if i := strings.Index(tail, sep); i != -1 && (next == -1 || i < next) {
			next = i
		}
	}

	insertAt := len(s)
	if next != -1 {
		insertAt = andEnd + next
	}
	return s[:insertAt] + thenKeywordInsertion + s[insertAt:]
}

var connectiveKeywords = []string{"and", "or", "then"}

func startsWithKeyword(s string) bool {
	for _, kw := range connectiveKeywords {
		if strings.HasPrefix(s, kw) {
			return true
		}
	}
	return false
}

// trimLeadingKeyword removes at most one leading connective
func trimLeadingKeyword(s string) string {
	for _, kw := range connectiveKeywords {
		if strings.HasPrefix(s, kw) {
			return s[len(kw):]
		}
	}
	return s
}

// operatorTokens is ordered longest first for maximal munch
var operatorTokens = []string{">=", "<=", "==", "!=", ">", "<"}

// indexOperatorToken returns the byte offset of the first comparison token
// equal to op, or -1
func indexOperatorToken(s, op string) int {
	for i := 0; i < len(s); {
		matched := ""
		for _, tok := range operatorTokens {
			if strings.HasPrefix(s[i:], tok) {
				matched = tok
				break
			}
		}
		if matched == "" {
			i++
			continue
		}
		if matched == op {
			return i
		}
		i += len(matched)
	}
	return -1
}
