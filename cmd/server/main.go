package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/liamcoop/ruleweave/assistant"
	"github.com/liamcoop/ruleweave/autofix"
	"github.com/liamcoop/ruleweave/checker"
	"github.com/liamcoop/ruleweave/internal/config"
	"github.com/liamcoop/ruleweave/internal/logger"
	"github.com/liamcoop/ruleweave/rules"
	"github.com/liamcoop/ruleweave/templates"
)

// maxBodyBytes bounds request bodies
const maxBodyBytes = 1 << 20

// Dependencies are the collaborators a Server is built from
type Dependencies struct {
	Store     rules.RuleStore
	Completer assistant.Completer
	Models    assistant.Models
	// SuggestionCache may be nil
	SuggestionCache assistant.SuggestionCache
	// FallbackAPIKey is used when a request carries no key
	FallbackAPIKey string
	// Ping reports backend health; nil means always healthy
	Ping           func(context.Context) error
	Backend        string
	RequestTimeout time.Duration
}

type Server struct {
	store       rules.RuleStore
	translator  *assistant.Translator
	validator   assistant.Validator
	suggester   *assistant.Suggester
	fallbackKey string
	ping        func(context.Context) error
	backend     string
	router      *chi.Mux
}

func NewServer(deps Dependencies) (*Server, error) {
	local, err := checker.New()
	if err != nil {
		return nil, err
	}

	s := &Server{
		store:      deps.Store,
		translator: assistant.NewTranslator(deps.Completer, deps.Models),
		validator: assistant.MultiValidator{
			local,
			assistant.NewLLMValidator(deps.Completer, deps.Models),
		},
		suggester:   assistant.NewSuggester(deps.Completer, deps.Models, deps.SuggestionCache),
		fallbackKey: deps.FallbackAPIKey,
		ping:        deps.Ping,
		backend:     deps.Backend,
	}

	timeout := deps.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	s.setupRoutes(timeout)

	return s, nil
}

func (s *Server) setupRoutes(timeout time.Duration) {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	r.Use(countStatus)

	r.Get("/api/v1/health", s.handleHealth)
	r.Get("/api/v1/metrics", s.handleMetrics)

	// Assistance
	r.Post("/api/v1/translate", s.handleTranslate)
	r.Post("/api/v1/validate", s.handleValidate)
	r.Post("/api/v1/suggest", s.handleSuggest)
	r.Post("/api/v1/fix", s.handleFix)

	r.Route("/api/v1/templates", func(r chi.Router) {
		r.Get("/", s.handleListTemplates)
		r.Post("/{templateId}/apply", s.handleApplyTemplate)
	})

	r.Route("/api/v1/rules", func(r chi.Router) {
		r.Get("/", s.handleListRules)
		r.Post("/", s.handleCreateRule)

		r.Route("/{ruleId}", func(r chi.Router) {
			r.Get("/", s.handleGetRule)
			r.Put("/", s.handleUpdateRule)
			r.Delete("/", s.handleDeleteRule)
			r.Get("/versions", s.handleListVersions)
			r.Post("/revert", s.handleRevertRule)
		})
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// countStatus feeds response codes into the logger's error counters
func countStatus(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.HTTPStatus(ww.Status())
	})
}

// Health check handler
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.ping != nil {
		if err := s.ping(r.Context()); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":  "unhealthy",
				"storage": s.backend,
				"error":   err.Error(),
			})
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"storage": s.backend,
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, logger.Snapshot())
}

// Translation handler
func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req TranslateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.NaturalLanguageRule) == "" {
		respondError(w, http.StatusBadRequest, "naturalLanguageRule is required", nil)
		return
	}
	apiKey, ok := s.requireKey(w, req.APIKey)
	if !ok {
		return
	}

	translation, err := s.translator.Translate(r.Context(), req.NaturalLanguageRule, apiKey, req.Realtime)
	if err != nil {
		respondError(w, http.StatusBadGateway, "failed to translate rule", err)
		return
	}

	respondJSON(w, http.StatusOK, translation)
}

// Validation handler. The local checker always runs; the model only when a key is available.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.RuleCode) == "" {
		respondError(w, http.StatusBadRequest, "ruleCode is required", nil)
		return
	}

	result, err := s.validator.Validate(r.Context(), req.RuleCode, s.apiKey(req.APIKey))
	if err != nil {
		respondError(w, http.StatusBadGateway, "failed to validate rule", err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// Suggestion handler
func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	var req SuggestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respondError(w, http.StatusBadRequest, "text is required", nil)
		return
	}
	apiKey, ok := s.requireKey(w, req.APIKey)
	if !ok {
		return
	}

	suggestions, err := s.suggester.Suggest(r.Context(), req.Text, apiKey)
	if err != nil {
		respondError(w, http.StatusBadGateway, "failed to generate suggestions", err)
		return
	}

	respondJSON(w, http.StatusOK, SuggestResponse{Suggestions: suggestions})
}

// Auto-fix handler
func (s *Server) handleFix(w http.ResponseWriter, r *http.Request) {
	var req FixRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result := autofix.FixWithOptions(req.RuleCode, req.Errors, autofix.Options{TokenizeOperators: req.TokenizeOperators})
	if result.WasFixed {
		logger.FixesApplied.Add(1)
		logger.Debug("rule auto-fixed", "repairs", len(result.FixExplanations), "confidence", result.ConfidenceScore)
	}

	respondJSON(w, http.StatusOK, result)
}

// List templates handler
func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	respondJSON(w, http.StatusOK, TemplatesListResponse{
		Templates:  templates.List(q.Get("category"), q.Get("q")),
		Categories: templates.Categories,
	})
}

// Apply template handler
func (s *Server) handleApplyTemplate(w http.ResponseWriter, r *http.Request) {
	templateID := chi.URLParam(r, "templateId")

	var req ApplyTemplateRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}

	applied, err := templates.Apply(templateID, req.Values)
	if errors.Is(err, templates.ErrTemplateNotFound) {
		respondError(w, http.StatusNotFound, "template not found", err)
		return
	}
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid template values", err)
		return
	}

	if !req.Save {
		respondJSON(w, http.StatusOK, applied)
		return
	}

	rule, err := s.store.Save(r.Context(), rules.RuleInput{
		Name:            applied.Name,
		NaturalLanguage: applied.NaturalLanguage,
		RuleCode:        applied.RuleCode,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to save rule", err)
		return
	}
	respondJSON(w, http.StatusCreated, rule)
}

// List rules handler
func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListAll(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list rules", err)
		return
	}

	respondJSON(w, http.StatusOK, RulesListResponse{Rules: list})
}

// Create rule handler
func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req SaveRuleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.RuleCode) == "" {
		respondError(w, http.StatusBadRequest, "ruleCode is required", nil)
		return
	}

	rule, err := s.store.Save(r.Context(), rules.RuleInput{
		Name:            req.Name,
		NaturalLanguage: req.NaturalLanguage,
		RuleCode:        req.RuleCode,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to save rule", err)
		return
	}

	respondJSON(w, http.StatusCreated, rule)
}

// Get rule handler
func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	rule, err := s.store.Get(r.Context(), chi.URLParam(r, "ruleId"))
	if err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, rule)
}

// Update rule handler. An unknown id is created with that id.
func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "ruleId")

	var req SaveRuleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.RuleCode) == "" {
		respondError(w, http.StatusBadRequest, "ruleCode is required", nil)
		return
	}

	rule, err := s.store.Save(r.Context(), rules.RuleInput{
		ID:              ruleID,
		Name:            req.Name,
		NaturalLanguage: req.NaturalLanguage,
		RuleCode:        req.RuleCode,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to save rule", err)
		return
	}

	respondJSON(w, http.StatusOK, rule)
}

// Delete rule handler. Deleting an unknown rule succeeds.
func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), chi.URLParam(r, "ruleId")); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to delete rule", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// List versions handler
func (s *Server) handleListVersions(w http.ResponseWriter, r *http.Request) {
	rule, err := s.store.Get(r.Context(), chi.URLParam(r, "ruleId"))
	if err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, VersionsResponse{RuleID: rule.ID, Versions: rule.Versions})
}

// Revert rule handler
func (s *Server) handleRevertRule(w http.ResponseWriter, r *http.Request) {
	var req RevertRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.VersionIndex == nil {
		respondError(w, http.StatusBadRequest, "versionIndex is required", nil)
		return
	}

	rule, err := s.store.Revert(r.Context(), chi.URLParam(r, "ruleId"), *req.VersionIndex)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, rule)
}

// Helper functions

// apiKey prefers the caller's key over the server's fallback
func (s *Server) apiKey(fromRequest string) string {
	if fromRequest != "" {
		return fromRequest
	}
	return s.fallbackKey
}

func (s *Server) requireKey(w http.ResponseWriter, fromRequest string) (string, bool) {
	key := s.apiKey(fromRequest)
	if key == "" {
		respondError(w, http.StatusBadRequest, "apiKey is required", assistant.ErrMissingAPIKey)
		return "", false
	}
	return key, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return false
	}
	return true
}

func respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, rules.ErrRuleNotFound):
		respondError(w, http.StatusNotFound, "rule not found", err)
	case errors.Is(err, rules.ErrVersionNotFound):
		respondError(w, http.StatusNotFound, "version not found", err)
	default:
		respondError(w, http.StatusInternalServerError, "storage error", err)
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := ErrorResponse{Error: message}
	if err != nil {
		response.Details = err.Error()
	}
	respondJSON(w, status, response)
}

func main() {
	ctx := context.Background()

	if err := logger.ConfigureFromEnv(ctx); err != nil {
		logger.Fatal("failed to configure logging", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", "error", err)
	}
	logger.Info("configuration loaded", "config", cfg.String())

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to open rule storage", "backend", cfg.StorageBackend, "error", err)
	}
	defer backend.Close()

	server, err := NewServer(Dependencies{
		Store:           rules.NewBlobRuleStore(backend.Storage),
		Completer:       newCompleter(cfg),
		Models:          modelsFor(cfg),
		SuggestionCache: assistant.NewInMemorySuggestionCache(cfg.SuggestionCacheTTL, cfg.SuggestionCacheSize),
		FallbackAPIKey:  cfg.FallbackAPIKey(),
		Ping:            backend.Ping,
		Backend:         cfg.StorageBackend,
		RequestTimeout:  cfg.RequestTimeout,
	})
	if err != nil {
		logger.Fatal("failed to create server", "error", err)
	}

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.LLMTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port, "storage", cfg.StorageBackend, "provider", cfg.LLMProvider)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed to start", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	if err := logger.Shutdown(shutdownCtx); err != nil {
		logger.Error("logger shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
