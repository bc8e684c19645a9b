// Package templates holds the built-in catalog of starter rules and fills in
// their variables.
package templates

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrTemplateNotFound is returned for an unknown template id
var ErrTemplateNotFound = errors.New("template not found")

// Categories
const (
	CategoryFraud       = "Fraud Detection"
	CategorySecurity    = "Security"
	CategoryMonitoring  = "Monitoring"
	CategoryCompliance  = "Compliance"
	CategoryPerformance = "Performance"
	CategoryOther       = "Other"
)

// Categories lists every category in display order
var Categories = []string{
	CategoryFraud,
	CategorySecurity,
	CategoryMonitoring,
	CategoryCompliance,
	CategoryPerformance,
	CategoryOther,
}

// Variable kinds
const (
	KindNumber = "number"
	KindString = "string"
	KindArray  = "array"
)

// Variable is a customizable value inside a template. DefaultValue is a
// float64, string or []any, matching what JSON decoding produces.
type Variable struct {
	Name         string `json:"name"`
	Label        string `json:"label"`
	Type         string `json:"type"`
	DefaultValue any    `json:"defaultValue"`
}

// Template is a starter rule
type Template struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	Category        string     `json:"category"`
	NaturalLanguage string     `json:"naturalLanguage"`
	RuleCode        string     `json:"ruleCode"`
	Variables       []Variable `json:"variables"`
}

// Applied is a template with values substituted, ready to save as a rule
type Applied struct {
	Name            string `json:"name"`
	NaturalLanguage string `json:"naturalLanguage"`
	RuleCode        string `json:"ruleCode"`
}

// List returns templates in catalog order. An empty or "all" category matches
// everything; query matches name or description case-insensitively.
func List(category, query string) []Template {
	q := strings.ToLower(strings.TrimSpace(query))
	out := []Template{}
	for _, tpl := range catalog {
		if category != "" && category != "all" && tpl.Category != category {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(tpl.Name), q) && !strings.Contains(strings.ToLower(tpl.Description), q) {
			continue
		}
		out = append(out, tpl.clone())
	}
	return out
}

// Get returns a template by id
func Get(id string) (Template, error) {
	for _, tpl := range catalog {
		if tpl.ID == id {
			return tpl.clone(), nil
		}
	}
	return Template{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
}

// Apply substitutes values for each variable's default in the rule code and
// the natural-language text. Variables absent from values keep their default.
func Apply(id string, values map[string]any) (*Applied, error) {
	tpl, err := Get(id)
	if err != nil {
		return nil, err
	}

	var codeSubs, textSubs []substitution
	for _, v := range tpl.Variables {
		value, ok := values[v.Name]
		if !ok {
			value = v.DefaultValue
		}
		if err := checkKind(v, value); err != nil {
			return nil, err
		}
		codeSubs = append(codeSubs, substitution{old: codeLiteral(v.DefaultValue, true), new: codeLiteral(value, true)})
		textSubs = append(textSubs, substitution{old: plainText(v.DefaultValue), new: plainText(value)})
	}

	return &Applied{
		Name:            tpl.Name,
		NaturalLanguage: substitute(tpl.NaturalLanguage, textSubs),
		RuleCode:        substitute(tpl.RuleCode, codeSubs),
	}, nil
}

type substitution struct {
	old, new string
}

// substitute replaces every token occurrence in one left-to-right pass, so a
// replacement is never rewritten by a later variable. A match only counts when
// it does not continue a neighbouring number or word: "5" matches in "> 5" but
// not in "500" or "Country5".
func substitute(s string, subs []substitution) string {
	var b strings.Builder
	for i := 0; i < len(s); {
		matched := false
		for _, sub := range subs {
			if sub.old == "" || !strings.HasPrefix(s[i:], sub.old) || !tokenBounded(s, i, i+len(sub.old)) {
				continue
			}
			b.WriteString(sub.new)
			i += len(sub.old)
			matched = true
			break
		}
		if !matched {
			b.WriteByte(s[i])
			i++
		}
	}
	return b.String()
}

// tokenBounded rejects matches that extend an identifier on the left or run
// into more digits or letters of the same kind on the right. Units stay
// attached: "500" matches in "500ms".
func tokenBounded(s string, start, end int) bool {
	if start > 0 && isWord(s[start-1]) && isWord(s[start]) {
		return false
	}
	if end < len(s) {
		last, next := s[end-1], s[end]
		if isDigit(last) && isDigit(next) || isLetter(last) && isLetter(next) {
			return false
		}
	}
	return true
}

func isDigit(c byte) bool  { return c >= '0' && c <= '9' }
func isLetter(c byte) bool { return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isWord(c byte) bool   { return isDigit(c) || isLetter(c) }

func checkKind(v Variable, value any) error {
	switch v.Type {
	case KindNumber:
		switch value.(type) {
		case float64, int, int64:
			return nil
		}
	case KindString:
		if _, ok := value.(string); ok {
			return nil
		}
	case KindArray:
		switch value.(type) {
		case []any, []string:
			return nil
		}
	default:
		return nil
	}
	return fmt.Errorf("variable %q expects a %s, got %T", v.Name, v.Type, value)
}

// codeLiteral renders a value as it appears in rule code. Arrays render as
// their comma-separated elements; bracketed wraps them in [ ].
func codeLiteral(value any, bracketed bool) string {
	switch v := value.(type) {
	case string:
		return strconv.Quote(v)
	case []string:
		items := make([]any, len(v))
		for i, s := range v {
			items[i] = s
		}
		return codeLiteral(items, bracketed)
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = codeLiteral(item, false)
		}
		joined := strings.Join(parts, ", ")
		if bracketed {
			return "[" + joined + "]"
		}
		return joined
	default:
		return plainText(v)
	}
}

// plainText renders a value for natural-language text
func plainText(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case []string:
		return strings.Join(v, ",")
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = plainText(item)
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(v)
	}
}

func (t Template) clone() Template {
	vars := make([]Variable, len(t.Variables))
	copy(vars, t.Variables)
	t.Variables = vars
	return t
}
