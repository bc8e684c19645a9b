package logger

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

type Level = slog.Level

const (
	LevelTrace   = slog.Level(-8)
	LevelDebug   = slog.LevelDebug
	LevelInfo    = slog.LevelInfo
	LevelWarning = slog.LevelWarn
	LevelError   = slog.LevelError
	LevelFatal   = slog.Level(12)
)

var (
	Logger          *slog.Logger
	errorSampleRate int32 = 1
	programLevel          = new(slog.LevelVar)
	shutdownFunc    func(context.Context) error
)

// Counters are incremented regardless of sampling and surfaced by the metrics endpoint
var (
	TotalErrors      atomic.Int64
	TotalWarnings    atomic.Int64
	LLMRequests      atomic.Int64
	LLMFailures      atomic.Int64
	FixesApplied     atomic.Int64
	DroppedWrites    atomic.Int64
	Total4xxRequests atomic.Int64
	Total5xxRequests atomic.Int64
)

// Options selects how the process logs
type Options struct {
	Level           string
	ErrorSampleRate int
	OTELEnabled     bool
	ServiceName     string
}

func init() {
	programLevel.Set(slog.LevelInfo)
	setupJSONLogging()
}

// Configure replaces the process logger. Call once at startup, before serving traffic.
func Configure(ctx context.Context, opts Options) error {
	level, err := ParseLevel(opts.Level)
	if err != nil && opts.Level != "" {
		fmt.Fprintf(os.Stderr, "%v\n", err)
	}
	programLevel.Set(level)

	if opts.ErrorSampleRate > 0 {
		atomic.StoreInt32(&errorSampleRate, int32(opts.ErrorSampleRate))
	}

	if !opts.OTELEnabled {
		setupJSONLogging()
		return nil
	}

	serviceName := opts.ServiceName
	if serviceName == "" {
		serviceName = "ruleweave"
	}
	shutdown, err := setupOTELLogging(ctx, serviceName)
	if err != nil {
		setupJSONLogging()
		return fmt.Errorf("failed to setup OTEL logging, using JSON: %w", err)
	}
	shutdownFunc = shutdown
	return nil
}

// ConfigureFromEnv reads LOG_LEVEL, ERROR_SAMPLE_RATE, OTEL_ENABLED and OTEL_SERVICE_NAME
func ConfigureFromEnv(ctx context.Context) error {
	opts := Options{
		Level:       os.Getenv("LOG_LEVEL"),
		OTELEnabled: strings.EqualFold(os.Getenv("OTEL_ENABLED"), "true"),
		ServiceName: os.Getenv("OTEL_SERVICE_NAME"),
	}
	if rate, err := strconv.Atoi(os.Getenv("ERROR_SAMPLE_RATE")); err == nil {
		opts.ErrorSampleRate = rate
	}
	return Configure(ctx, opts)
}

func setupJSONLogging() {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: programLevel})
	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

func setupOTELLogging(ctx context.Context, serviceName string) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := otlploggrpc.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	loggerProvider := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	)

	handler := &levelHandler{
		level: programLevel,
		handler: otelslog.NewHandler(
			serviceName,
			otelslog.WithLoggerProvider(loggerProvider),
		),
	}

	Logger = slog.New(handler)
	slog.SetDefault(Logger)

	return loggerProvider.Shutdown, nil
}

// levelHandler adds level filtering to the OTEL bridge, which has none of its own
type levelHandler struct {
	level   slog.Leveler
	handler slog.Handler
}

func (h *levelHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *levelHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.handler.Handle(ctx, r)
}

func (h *levelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelHandler{level: h.level, handler: h.handler.WithAttrs(attrs)}
}

func (h *levelHandler) WithGroup(name string) slog.Handler {
	return &levelHandler{level: h.level, handler: h.handler.WithGroup(name)}
}

// Shutdown flushes the OTEL exporter if one is configured
func Shutdown(ctx context.Context) error {
	if shutdownFunc != nil {
		return shutdownFunc(ctx)
	}
	return nil
}

// SetLevel sets the minimum log level
func SetLevel(level slog.Level) {
	programLevel.Set(level)
}

// GetLevel returns the current minimum log level
func GetLevel() slog.Level {
	return programLevel.Level()
}

// ParseLevel converts a level name to slog.Level. Empty or unknown names yield INFO.
func ParseLevel(levelStr string) (slog.Level, error) {
	switch strings.ToUpper(levelStr) {
	case "TRACE":
		return LevelTrace, nil
	case "DEBUG":
		return LevelDebug, nil
	case "", "INFO":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarning, nil
	case "ERROR":
		return LevelError, nil
	case "FATAL":
		return LevelFatal, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level: %s (defaulting to INFO)", levelStr)
	}
}

func shouldSample() bool {
	rate := atomic.LoadInt32(&errorSampleRate)
	if rate <= 1 {
		return true
	}
	return rand.Intn(int(rate)) == 0
}

// Trace logs below debug level
func Trace(msg string, args ...any) {
	Logger.Log(context.Background(), LevelTrace, msg, args...)
}

func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}

func Info(msg string, args ...any) {
	Logger.Info(msg, args...)
}

// Warn counts every call but only emits 1 in ERROR_SAMPLE_RATE
func Warn(msg string, args ...any) {
	TotalWarnings.Add(1)
	if shouldSample() {
		Logger.Warn(msg, args...)
	}
}

// Error counts every call but only emits 1 in ERROR_SAMPLE_RATE
func Error(msg string, args ...any) {
	TotalErrors.Add(1)
	if shouldSample() {
		Logger.Error(msg, args...)
	}
}

// Fatal logs, flushes OTEL and exits
func Fatal(msg string, args ...any) {
	Logger.Log(context.Background(), LevelFatal, msg, args...)
	if shutdownFunc != nil {
		_ = shutdownFunc(context.Background())
	}
	os.Exit(1)
}

// HTTPStatus records a response status in the request counters
func HTTPStatus(status int) {
	switch {
	case status >= 500:
		Total5xxRequests.Add(1)
	case status >= 400:
		Total4xxRequests.Add(1)
	}
}

// Snapshot returns the current counter values keyed by name
func Snapshot() map[string]int64 {
	return map[string]int64{
		"errors":        TotalErrors.Load(),
		"warnings":      TotalWarnings.Load(),
		"llmRequests":   LLMRequests.Load(),
		"llmFailures":   LLMFailures.Load(),
		"fixesApplied":  FixesApplied.Load(),
		"droppedWrites": DroppedWrites.Load(),
		"http4xx":       Total4xxRequests.Load(),
		"http5xx":       Total5xxRequests.Load(),
	}
}
