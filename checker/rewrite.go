package checker

import (
	"regexp"
	"strings"
)

// wordRewrites map rule-language connectives to CEL operators. "not in" has
// no CEL spelling; it is checked as "in" since only structure matters here.
var wordRewrites = []struct {
	pattern *regexp.Regexp
	repl    string
}{
	{regexp.MustCompile(`\bnot\s+in\b`), "in"},
	{regexp.MustCompile(`\band\b`), "&&"},
	{regexp.MustCompile(`\bor\b`), "||"},
	{regexp.MustCompile(`\bnot\b\s*`), "!"},
}

// toCEL rewrites connectives outside string literals
func toCEL(condition string) string {
	var b strings.Builder
	for _, seg := range splitLiterals(condition) {
		if seg.literal {
			b.WriteString(seg.text)
			continue
		}
		text := seg.text
		for _, rw := range wordRewrites {
			text = rw.pattern.ReplaceAllString(text, rw.repl)
		}
		b.WriteString(text)
	}
	return b.String()
}

type segment struct {
	text    string
	literal bool
}

// splitLiterals cuts s into alternating code and quoted-string segments. An
// unterminated literal runs to the end of s.
func splitLiterals(s string) []segment {
	var segs []segment
	start := 0
	for i := 0; i < len(s); i++ {
		q := s[i]
		if q != '"' && q != '\'' {
			continue
		}
		if i > start {
			segs = append(segs, segment{text: s[start:i]})
		}
		j := i + 1
		for j < len(s) && s[j] != q {
			if s[j] == '\\' {
				j++
			}
			j++
		}
		end := j + 1
		if end > len(s) {
			end = len(s)
		}
		segs = append(segs, segment{text: s[i:end], literal: true})
		start = end
		i = end - 1
	}
	if start < len(s) {
		segs = append(segs, segment{text: s[start:]})
	}
	return segs
}

// topLevelIdentifiers lists, in first-seen order, the names that head a field
// path or stand alone. Selectors after "." and function names are skipped.
func topLevelIdentifiers(expr string) []string {
	var names []string
	seen := make(map[string]bool)

	for _, seg := range splitLiterals(expr) {
		if seg.literal {
			continue
		}
		s := seg.text
		for i := 0; i < len(s); {
			ch := s[i]
			switch {
			case isDigit(ch):
				for i < len(s) && (isIdentChar(s[i]) || s[i] == '.') {
					i++
				}
			case isIdentStart(ch):
				start := i
				for i < len(s) && isIdentChar(s[i]) {
					i++
				}
				name := s[start:i]
				if isSelector(s, start) || isCall(s, i) || isLiteralWord(name) {
					continue
				}
				if !seen[name] {
					seen[name] = true
					names = append(names, name)
				}
			default:
				i++
			}
		}
	}
	return names
}

func isSelector(s string, start int) bool {
	for k := start - 1; k >= 0; k-- {
		if s[k] == ' ' || s[k] == '\t' || s[k] == '\n' {
			continue
		}
		return s[k] == '.'
	}
	return false
}

func isCall(s string, end int) bool {
	for k := end; k < len(s); k++ {
		if s[k] == ' ' || s[k] == '\t' || s[k] == '\n' {
			continue
		}
		return s[k] == '('
	}
	return false
}

func isLiteralWord(name string) bool {
	switch name {
	case "true", "false", "null", "in":
		return true
	}
	return false
}

func isDigit(c byte) bool      { return c >= '0' && c <= '9' }
func isIdentStart(c byte) bool { return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isIdentChar(c byte) bool  { return isIdentStart(c) || isDigit(c) }
