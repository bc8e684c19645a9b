package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/liamcoop/ruleweave/assistant"
	"github.com/liamcoop/ruleweave/autofix"
	"github.com/liamcoop/ruleweave/internal/config"
	"github.com/liamcoop/ruleweave/rules"
	"github.com/liamcoop/ruleweave/templates"
)

// stubCompleter returns a canned reply and records every request
type stubCompleter struct {
	mu       sync.Mutex
	reply    string
	err      error
	requests []assistant.CompletionRequest
}

func (s *stubCompleter) Complete(_ context.Context, req assistant.CompletionRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	return s.reply, s.err
}

func (s *stubCompleter) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func newTestServer(t *testing.T, completer assistant.Completer, fallbackKey string) *Server {
	t.Helper()
	s, err := NewServer(Dependencies{
		Store:          rules.NewBlobRuleStore(rules.NewMemoryStorage()),
		Completer:      completer,
		FallbackAPIKey: fallbackKey,
		Backend:        config.BackendMemory,
	})
	if err != nil {
		t.Fatalf("NewServer() failed: %v", err)
	}
	return s
}

func doRequest(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
	return out
}

// TestHealth verifies the health endpoint reflects the storage ping
func TestHealth(t *testing.T) {
	s := newTestServer(t, &stubCompleter{}, "")
	w := doRequest(t, s, http.MethodGet, "/api/v1/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	s.ping = func(context.Context) error { return errors.New("connection refused") }
	w = doRequest(t, s, http.MethodGet, "/api/v1/health", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

// TestTranslate verifies translation uses the request key and falls back to the server key
func TestTranslate(t *testing.T) {
	stub := &stubCompleter{reply: `{"rule": "if transaction.amount > 500 then flag_transaction"}`}
	s := newTestServer(t, stub, "server-key")

	w := doRequest(t, s, http.MethodPost, "/api/v1/translate", TranslateRequest{
		NaturalLanguageRule: "Flag transactions over 500",
		APIKey:              "user-key",
		Realtime:            true,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	got := decode[assistant.Translation](t, w)
	if got.Rule != "if transaction.amount > 500 then flag_transaction" {
		t.Errorf("Rule = %q", got.Rule)
	}
	if stub.requests[0].APIKey != "user-key" || stub.requests[0].Model != assistant.DefaultAnthropicModels.Light {
		t.Errorf("request = %+v", stub.requests[0])
	}

	doRequest(t, s, http.MethodPost, "/api/v1/translate", TranslateRequest{NaturalLanguageRule: "x"})
	if stub.requests[1].APIKey != "server-key" {
		t.Errorf("fallback key = %q, want server-key", stub.requests[1].APIKey)
	}
}

// TestTranslateErrors verifies request validation and upstream failures map to status codes
func TestTranslateErrors(t *testing.T) {
	tests := []struct {
		name        string
		fallbackKey string
		completer   *stubCompleter
		body        any
		wantStatus  int
	}{
		{"empty text", "k", &stubCompleter{}, TranslateRequest{NaturalLanguageRule: "  "}, http.StatusBadRequest},
		{"no key anywhere", "", &stubCompleter{}, TranslateRequest{NaturalLanguageRule: "x"}, http.StatusBadRequest},
		{"malformed body", "k", &stubCompleter{}, "not an object", http.StatusBadRequest},
		{"upstream failure", "k", &stubCompleter{err: errors.New("529 overloaded")}, TranslateRequest{NaturalLanguageRule: "x"}, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.completer, tt.fallbackKey)
			w := doRequest(t, s, http.MethodPost, "/api/v1/translate", tt.body)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			resp := decode[ErrorResponse](t, w)
			if resp.Error == "" {
				t.Error("expected an error message")
			}
		})
	}
}

// TestValidateWithoutKey verifies the local checker answers when no key is configured
func TestValidateWithoutKey(t *testing.T) {
	stub := &stubCompleter{}
	s := newTestServer(t, stub, "")

	w := doRequest(t, s, http.MethodPost, "/api/v1/validate", ValidateRequest{RuleCode: "if amount > 5"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	got := decode[assistant.ValidationResult](t, w)
	if got.IsValid || len(got.Errors) == 0 {
		t.Errorf("result = %+v, want invalid", got)
	}
	if stub.calls() != 0 {
		t.Errorf("completer called %d times without a key", stub.calls())
	}
}

// TestValidateMergesModelReview verifies model findings are merged with the local result
func TestValidateMergesModelReview(t *testing.T) {
	stub := &stubCompleter{reply: `{"isValid": false, "errors": ["Unknown action"], "suggestions": ["Use flag_transaction"]}`}
	s := newTestServer(t, stub, "k")

	w := doRequest(t, s, http.MethodPost, "/api/v1/validate", ValidateRequest{
		RuleCode: "if transaction.amount > 500 then flag_transaction",
	})
	got := decode[assistant.ValidationResult](t, w)
	want := assistant.ValidationResult{
		IsValid:     false,
		Errors:      []string{"Unknown action"},
		Suggestions: []string{"Use flag_transaction"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("validation mismatch (-want +got):\n%s", diff)
	}
}

// TestSuggest verifies suggestions are wrapped and capped
func TestSuggest(t *testing.T) {
	stub := &stubCompleter{reply: "```json\n{\"suggestions\": [" +
		`{"text": "> 1000", "category": "operator", "description": "a"},` +
		`{"text": "then", "category": "keyword", "description": "b"}` +
		"]}\n```"}
	s := newTestServer(t, stub, "k")

	w := doRequest(t, s, http.MethodPost, "/api/v1/suggest", SuggestRequest{Text: "if transaction.amount"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	got := decode[SuggestResponse](t, w)
	if len(got.Suggestions) != 2 || got.Suggestions[1].Text != "then" {
		t.Errorf("suggestions = %+v", got.Suggestions)
	}

	w = doRequest(t, s, http.MethodPost, "/api/v1/suggest", SuggestRequest{Text: ""})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty text status = %d, want 400", w.Code)
	}
}

// TestFix verifies the fixer is exposed and needs no key
func TestFix(t *testing.T) {
	s := newTestServer(t, &stubCompleter{}, "")

	w := doRequest(t, s, http.MethodPost, "/api/v1/fix", FixRequest{RuleCode: "if a > 5 and b < 10"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	got := decode[autofix.FixResult](t, w)
	if !got.WasFixed || got.FixedRule != "if a > 5 and b < 10 then " || got.ConfidenceScore != 90 {
		t.Errorf("result = %+v", got)
	}

	w = doRequest(t, s, http.MethodPost, "/api/v1/fix", FixRequest{RuleCode: "y >= 1 and x > ", TokenizeOperators: true})
	got = decode[autofix.FixResult](t, w)
	if got.FixedRule != "y >= 1 and x > 0 " {
		t.Errorf("tokenized FixedRule = %q", got.FixedRule)
	}
}

// TestTemplates verifies listing, filtering, applying and saving templates
func TestTemplates(t *testing.T) {
	s := newTestServer(t, &stubCompleter{}, "")

	w := doRequest(t, s, http.MethodGet, "/api/v1/templates/", nil)
	all := decode[TemplatesListResponse](t, w)
	if len(all.Templates) != len(templates.List("", "")) || len(all.Categories) == 0 {
		t.Errorf("list = %d templates, %d categories", len(all.Templates), len(all.Categories))
	}

	w = doRequest(t, s, http.MethodGet, "/api/v1/templates/?category=Security", nil)
	for _, tpl := range decode[TemplatesListResponse](t, w).Templates {
		if tpl.Category != templates.CategorySecurity {
			t.Errorf("category filter returned %q", tpl.Category)
		}
	}

	first := all.Templates[0]
	w = doRequest(t, s, http.MethodPost, "/api/v1/templates/"+first.ID+"/apply", ApplyTemplateRequest{})
	if w.Code != http.StatusOK {
		t.Fatalf("apply status = %d, body = %s", w.Code, w.Body.String())
	}
	applied := decode[templates.Applied](t, w)
	if applied.RuleCode == "" || strings.Contains(applied.RuleCode, "{") {
		t.Errorf("applied rule code = %q", applied.RuleCode)
	}

	w = doRequest(t, s, http.MethodPost, "/api/v1/templates/"+first.ID+"/apply", ApplyTemplateRequest{Save: true})
	if w.Code != http.StatusCreated {
		t.Fatalf("apply+save status = %d", w.Code)
	}
	saved := decode[rules.Rule](t, w)
	if saved.RuleCode != applied.RuleCode || len(saved.Versions) != 1 {
		t.Errorf("saved rule = %+v", saved)
	}

	w = doRequest(t, s, http.MethodPost, "/api/v1/templates/no-such-template/apply", ApplyTemplateRequest{})
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown template status = %d, want 404", w.Code)
	}
}

// TestRuleLifecycle verifies create, update, versions, revert and delete over HTTP
func TestRuleLifecycle(t *testing.T) {
	s := newTestServer(t, &stubCompleter{}, "")

	w := doRequest(t, s, http.MethodPost, "/api/v1/rules/", SaveRuleRequest{
		Name:     "High value",
		RuleCode: "if transaction.amount > 1000 then flag_transaction",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	created := decode[rules.Rule](t, w)
	if created.ID == "" {
		t.Fatal("created rule has no id")
	}
	path := "/api/v1/rules/" + created.ID

	w = doRequest(t, s, http.MethodPut, path, SaveRuleRequest{
		Name:     "High value",
		RuleCode: "if transaction.amount > 2000 then flag_transaction",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d", w.Code)
	}

	w = doRequest(t, s, http.MethodGet, path+"/versions", nil)
	versions := decode[VersionsResponse](t, w)
	if versions.RuleID != created.ID || len(versions.Versions) != 2 {
		t.Fatalf("versions = %+v", versions)
	}

	zero := 0
	w = doRequest(t, s, http.MethodPost, path+"/revert", RevertRequest{VersionIndex: &zero})
	if w.Code != http.StatusOK {
		t.Fatalf("revert status = %d, body = %s", w.Code, w.Body.String())
	}
	reverted := decode[rules.Rule](t, w)
	latest := reverted.LatestVersion()
	if reverted.RuleCode != "if transaction.amount > 1000 then flag_transaction" || !latest.IsReversion {
		t.Errorf("reverted = %+v", reverted)
	}

	w = doRequest(t, s, http.MethodGet, "/api/v1/rules/", nil)
	if list := decode[RulesListResponse](t, w); len(list.Rules) != 1 {
		t.Errorf("list = %d rules, want 1", len(list.Rules))
	}

	w = doRequest(t, s, http.MethodDelete, path, nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", w.Code)
	}
	w = doRequest(t, s, http.MethodGet, path, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", w.Code)
	}
	w = doRequest(t, s, http.MethodDelete, path, nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("second delete status = %d, want 204", w.Code)
	}
}

// TestRuleErrors verifies missing fields and unknown ids map to 400 and 404
func TestRuleErrors(t *testing.T) {
	s := newTestServer(t, &stubCompleter{}, "")

	w := doRequest(t, s, http.MethodPost, "/api/v1/rules/", SaveRuleRequest{Name: "no code"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("create without code status = %d, want 400", w.Code)
	}

	w = doRequest(t, s, http.MethodPost, "/api/v1/rules/", SaveRuleRequest{RuleCode: "if a > 1 then flag"})
	created := decode[rules.Rule](t, w)

	w = doRequest(t, s, http.MethodPost, "/api/v1/rules/"+created.ID+"/revert", RevertRequest{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("revert without index status = %d, want 400", w.Code)
	}

	nine := 9
	w = doRequest(t, s, http.MethodPost, "/api/v1/rules/"+created.ID+"/revert", RevertRequest{VersionIndex: &nine})
	if w.Code != http.StatusNotFound {
		t.Errorf("revert out of range status = %d, want 404", w.Code)
	}

	w = doRequest(t, s, http.MethodPost, "/api/v1/rules/missing/revert", RevertRequest{VersionIndex: new(int)})
	if w.Code != http.StatusNotFound {
		t.Errorf("revert unknown rule status = %d, want 404", w.Code)
	}
}

// TestMetricsCountsErrors verifies 4xx responses reach the metrics snapshot
func TestMetricsCountsErrors(t *testing.T) {
	s := newTestServer(t, &stubCompleter{}, "")

	before := decode[map[string]int64](t, doRequest(t, s, http.MethodGet, "/api/v1/metrics", nil))
	doRequest(t, s, http.MethodGet, "/api/v1/rules/missing", nil)
	after := decode[map[string]int64](t, doRequest(t, s, http.MethodGet, "/api/v1/metrics", nil))

	if after["http4xx"] <= before["http4xx"] {
		t.Errorf("4xx counter did not advance: before %v, after %v", before, after)
	}
}

// TestModelsFor verifies provider defaults and explicit overrides
func TestModelsFor(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
		want assistant.Models
	}{
		{"anthropic defaults", config.Config{LLMProvider: config.ProviderAnthropic}, assistant.DefaultAnthropicModels},
		{"gemini defaults", config.Config{LLMProvider: config.ProviderGemini}, assistant.DefaultGeminiModels},
		{"override main", config.Config{LLMProvider: config.ProviderGemini, MainModel: "gemini-2.5-pro"},
			assistant.Models{Main: "gemini-2.5-pro", Light: assistant.DefaultGeminiModels.Light}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, modelsFor(&tt.cfg)); diff != "" {
				t.Errorf("modelsFor mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// TestOpenBackendMemory verifies the memory backend needs no external service
func TestOpenBackendMemory(t *testing.T) {
	b, err := openBackend(context.Background(), &config.Config{StorageBackend: config.BackendMemory})
	if err != nil {
		t.Fatalf("openBackend() failed: %v", err)
	}
	defer b.Close()
	if _, ok := b.Storage.(*rules.MemoryStorage); !ok {
		t.Errorf("storage = %T, want *rules.MemoryStorage", b.Storage)
	}

	if _, err := openBackend(context.Background(), &config.Config{StorageBackend: "mongo"}); err == nil {
		t.Error("expected an error for an unknown backend")
	}
}
