package assistant

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoJSON means the reply contained no JSON object at all
var ErrNoJSON = errors.New("no JSON object in response")

// fencedObject matches a JSON object inside a markdown code fence
var fencedObject = regexp.MustCompile("(?s)\x60\x60\x60(?:json)?\\s*({.*})\\s*\x60\x60\x60")

// ExtractJSON decodes the JSON object embedded in a model reply. The object may
// be the whole reply, wrapped in a markdown fence, or surrounded by prose; in
// the last case it spans from the first "{" to the last "}".
func ExtractJSON[T any](reply string) (*T, error) {
	raw, ok := findObject(reply)
	if !ok {
		return nil, ErrNoJSON
	}

	var out T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON response: %w (extracted: %s)", err, truncate(raw, 200))
	}
	return &out, nil
}

func findObject(reply string) (string, bool) {
	reply = strings.TrimSpace(reply)
	if m := fencedObject.FindStringSubmatch(reply); len(m) > 1 {
		return m[1], true
	}
	first := strings.Index(reply, "{")
	last := strings.LastIndex(reply, "}")
	if first == -1 || last < first {
		return "", false
	}
	return reply[first : last+1], true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
