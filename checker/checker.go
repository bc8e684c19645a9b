// Package checker validates the structure of rule code locally, without a
// language model. Rules have the form "if <condition> then <action>". The
// condition is rewritten into CEL and compiled with every top-level
// identifier declared dynamic, so syntax and operator misuse are caught while
// field names stay free-form.
package checker

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/liamcoop/ruleweave/assistant"
	"github.com/liamcoop/ruleweave/internal/logger"
)

const (
	maxRuleLength       = 4096
	maxIdentifierLength = 100
	// costLimit bounds CEL program planning for pathological input
	costLimit = 1000000
)

var (
	rulePattern   = regexp.MustCompile(`(?s)^if\s+(.*?)\s*\bthen\b\s*(.*)$`)
	actionPattern = regexp.MustCompile(`^([a-zA-Z_][a-zA-Z0-9_]*)(\(.*\))?$`)
	identPattern  = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
)

// Checker validates rule code. It is safe for concurrent use.
type Checker struct {
	env *cel.Env
}

// New creates a checker with an empty base CEL environment
func New() (*Checker, error) {
	env, err := cel.NewEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &Checker{env: env}, nil
}

// Validate implements assistant.Validator. The API key is ignored.
func (c *Checker) Validate(_ context.Context, ruleCode, _ string) (*assistant.ValidationResult, error) {
	return c.Check(ruleCode), nil
}

// Check returns every structural problem found in ruleCode
func (c *Checker) Check(ruleCode string) *assistant.ValidationResult {
	res := &assistant.ValidationResult{IsValid: true, Errors: []string{}, Suggestions: []string{}}
	fail := func(msg, suggestion string) {
		res.IsValid = false
		res.Errors = append(res.Errors, msg)
		if suggestion != "" {
			res.Suggestions = append(res.Suggestions, suggestion)
		}
	}

	code := strings.TrimSpace(ruleCode)
	switch {
	case code == "":
		fail("Rule is empty", `Write a rule like "if transaction.amount > 1000 then flag_transaction"`)
		return res
	case len(code) > maxRuleLength:
		fail(fmt.Sprintf("Rule is %d characters long, maximum is %d", len(code), maxRuleLength), "")
		return res
	case !strings.HasPrefix(code, "if ") && code != "if":
		fail(`Rule must start with "if"`, `Begin the rule with "if" followed by a condition`)
		return res
	}

	m := rulePattern.FindStringSubmatch(code)
	if m == nil {
		fail(`Missing "then" keyword before the action`, `Add "then" followed by an action, e.g. "then flag_transaction"`)
		return res
	}
	condition, action := strings.TrimSpace(m[1]), strings.TrimSpace(m[2])

	if condition == "" {
		fail("Condition is empty", `Add a condition between "if" and "then"`)
	}
	if action == "" {
		fail(`Missing action after "then"`, `Name an action such as flag_transaction or send_alert`)
	} else if err := validateAction(action); err != nil {
		fail(fmt.Sprintf("Invalid action %q: %v", action, err), "Actions are identifiers made of letters, digits and underscores")
	}
	if condition == "" {
		return res
	}

	if problem := c.conditionProblem(condition); problem != "" {
		fail(problem, "Check operators and operands in the condition")
	}
	return res
}

func validateAction(action string) error {
	m := actionPattern.FindStringSubmatch(action)
	if m == nil {
		return fmt.Errorf("must match pattern ^[a-zA-Z_][a-zA-Z0-9_]*$")
	}
	return validateIdentifier(m[1])
}

// validateIdentifier checks length and reserved words for a top-level name
func validateIdentifier(name string) error {
	if len(name) > maxIdentifierLength {
		return fmt.Errorf("identifier length %d exceeds maximum of %d characters", len(name), maxIdentifierLength)
	}
	if !identPattern.MatchString(name) {
		return fmt.Errorf("must match pattern ^[a-zA-Z_][a-zA-Z0-9_]*$")
	}
	if isReservedKeyword(name) {
		return fmt.Errorf("cannot use reserved keyword %q as identifier", name)
	}
	return nil
}

// conditionProblem rewrites the condition to CEL and type-checks it. It
// returns a user-facing message, or "" when the condition compiles.
func (c *Checker) conditionProblem(condition string) string {
	expr := toCEL(condition)

	names := topLevelIdentifiers(expr)
	opts := make([]cel.EnvOption, 0, len(names))
	for _, name := range names {
		if err := validateIdentifier(name); err != nil {
			return fmt.Sprintf("Invalid identifier %q: %v", name, err)
		}
		opts = append(opts, cel.Variable(name, cel.DynType))
	}

	env, err := c.env.Extend(opts...)
	if err != nil {
		return fmt.Sprintf("Invalid condition: %v", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		logger.Trace("condition rejected by CEL", "expression", expr, "error", issues.Err())
		return "Invalid condition: " + firstLine(issues.Err().Error())
	}

	out := ast.OutputType()
	if !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return fmt.Sprintf("Condition must evaluate to true or false, got %s", out)
	}

	if _, err := env.Program(ast, cel.CostLimit(costLimit)); err != nil {
		return fmt.Sprintf("Invalid condition: %v", err)
	}
	return ""
}

func firstLine(s string) string {
	s = strings.TrimPrefix(s, "ERROR: <input>:")
	if i := strings.IndexByte(s, '\n'); i != -1 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// isReservedKeyword reports names that cannot be used as fields or actions
func isReservedKeyword(name string) bool {
	reservedKeywords := map[string]bool{
		"true": true, "false": true, "null": true,
		"if": true, "then": true, "else": true, "for": true, "while": true,
		"break": true, "continue": true, "return": true,
		"var": true, "let": true, "const": true, "function": true,
		"in": true, "as": true, "import": true, "package": true,
		"namespace": true, "loop": true, "void": true,
		"and": true, "or": true, "not": true,
	}
	return reservedKeywords[name]
}
