package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// Console output goes to stderr so the report sink can own stdout.
var (
	osStderr io.Writer = os.Stderr
	osPipe             = os.Pipe
)

// SlogManager manages slog-based logging with optional OTel integration.
type SlogManager struct {
	logger *slog.Logger

	// OTel provider for flushing
	logProvider *sdklog.LoggerProvider
	closers     []io.Closer
}

// SetupOption adds an optional output or decoration to Setup.
type SetupOption func(*setupConfig)

type setupConfig struct {
	extra   []slog.Handler
	closers []io.Closer
	context ContextProvider
}

// WithHandler adds another handler, closed by Close if it is an io.Closer.
func WithHandler(h slog.Handler) SetupOption {
	return func(c *setupConfig) {
		if h == nil {
			return
		}
		c.extra = append(c.extra, h)
		if closer, ok := h.(io.Closer); ok {
			c.closers = append(c.closers, closer)
		}
	}
}

// WithContext injects the attributes returned by provider into every record.
func WithContext(provider ContextProvider) SetupOption {
	return func(c *setupConfig) {
		c.context = provider
	}
}

// NewSlogManager creates a new slog-based logging manager.
func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func handlerOptions(level string) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level: parseLevel(level),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
				}
			}
			return a
		},
	}
}

// Setup initializes the logging system. Records go to file, or to the console
// when file is nil. If provider is nil, OTel logging is disabled.
func (m *SlogManager) Setup(file io.Writer, level string, provider *sdklog.LoggerProvider, opts ...SetupOption) {
	cfg := &setupConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	m.logProvider = provider
	m.closers = cfg.closers

	handlerOpts := handlerOptions(level)

	var handlers []slog.Handler
	if file != nil {
		handlers = append(handlers, slog.NewTextHandler(file, handlerOpts))
	} else {
		handlers = append(handlers, slog.NewTextHandler(osStderr, handlerOpts))
	}

	// OTel handler (if provider is available)
	if provider != nil {
		handlers = append(handlers, otelslog.NewHandler("duel-recorder", otelslog.WithLoggerProvider(provider)))
	}

	handlers = append(handlers, cfg.extra...)

	var root slog.Handler = NewMultiHandler(handlers...)
	if cfg.context != nil {
		root = NewContextHandler(root, cfg.context)
	}

	m.logger = slog.New(root)
	m.logger.Info("Logging initialized", "level", level)
}

// Logger returns the configured slog.Logger.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		// Return a default logger if Setup hasn't been called
		return slog.Default()
	}
	return m.logger
}

// Flush forces a flush of OTel logs if available.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.logProvider != nil {
		return m.logProvider.ForceFlush(ctx)
	}
	return nil
}

// Close releases extra outputs such as the GELF connection.
func (m *SlogManager) Close() error {
	var firstErr error
	for _, c := range m.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	m.closers = nil
	return firstErr
}
