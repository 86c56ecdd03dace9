package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Format represents the log format
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// RecordSink receives a copy of every record that passes the level filter.
// The debug console buffer subscribes through it.
type RecordSink func(level slog.Level, message string, at time.Time)

// Logger wraps slog with rebuildable outputs and an optional record sink.
// SetLevel and SetSink may be called while other goroutines are logging.
type Logger struct {
	current atomic.Pointer[slog.Logger]
	mu      sync.Mutex
	out     *lockedWriter
	writers []io.Writer
	level   slog.Level
	format  Format
	sink    RecordSink
}

// lockedWriter serializes writes from handlers built before and after a rebuild.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (w *lockedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Write(p)
}

// New creates a new logger
func New(level slog.Level, format Format, writers ...io.Writer) *Logger {
	l := &Logger{
		out:     &lockedWriter{w: io.MultiWriter(writers...)},
		writers: writers,
		level:   level,
		format:  format,
	}
	l.rebuildLocked()
	return l
}

func (l *Logger) rebuildLocked() {
	opts := &slog.HandlerOptions{Level: l.level}
	var handler slog.Handler
	switch l.format {
	case FormatJSON:
		handler = slog.NewJSONHandler(l.out, opts)
	default:
		handler = slog.NewTextHandler(l.out, opts)
	}
	if l.sink != nil {
		handler = &sinkHandler{Handler: handler, sink: l.sink}
	}
	l.current.Store(slog.New(handler))
}

// Slog returns the slog.Logger currently in use.
func (l *Logger) Slog() *slog.Logger {
	return l.current.Load()
}

func (l *Logger) Debug(msg string, args ...any) { l.Slog().Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.Slog().Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.Slog().Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.Slog().Error(msg, args...) }

func (l *Logger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.Slog().DebugContext(ctx, msg, args...)
}

func (l *Logger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.Slog().WarnContext(ctx, msg, args...)
}

func (l *Logger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.Slog().ErrorContext(ctx, msg, args...)
}

// With returns a child slog.Logger bound to the current handler.
func (l *Logger) With(args ...any) *slog.Logger {
	return l.Slog().With(args...)
}

// SetLevel sets the logging level
func (l *Logger) SetLevel(level slog.Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
	l.rebuildLocked()
}

// SetSink installs (or with nil removes) the record sink.
func (l *Logger) SetSink(sink RecordSink) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sink = sink
	l.rebuildLocked()
}

// Level returns the current log level
func (l *Logger) Level() slog.Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// Close closes all file writers except stdout/stderr.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, writer := range l.writers {
		if file, ok := writer.(*os.File); ok {
			if file != os.Stdout && file != os.Stderr {
				if err := file.Close(); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

type sinkHandler struct {
	slog.Handler
	sink RecordSink
}

func (h *sinkHandler) Handle(ctx context.Context, record slog.Record) error {
	h.sink(record.Level, record.Message, record.Time)
	return h.Handler.Handle(ctx, record)
}

func (h *sinkHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &sinkHandler{Handler: h.Handler.WithAttrs(attrs), sink: h.sink}
}

func (h *sinkHandler) WithGroup(name string) slog.Handler {
	return &sinkHandler{Handler: h.Handler.WithGroup(name), sink: h.sink}
}

// Init initializes the default logger. Console output goes to stderr so the
// stdio transport keeps stdout for protocol frames. Call it before any
// goroutine logs; use SetLevel or SetSink to change a running logger.
func Init(level slog.Level, format Format, paths ...string) error {
	writers := []io.Writer{os.Stderr}

	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return err
		}
		writers = append(writers, file)
	}

	defaultLogger = New(level, format, writers...)
	return nil
}

// GetLevelFromString returns the log level from a string
func GetLevelFromString(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var defaultLogger = New(slog.LevelInfo, FormatText, os.Stderr)

// Default returns the process-wide logger.
func Default() *Logger {
	return defaultLogger
}

// SetSink installs a record sink on the default logger.
func SetSink(sink RecordSink) {
	defaultLogger.SetSink(sink)
}

func Debug(msg string, args ...any) {
	defaultLogger.Debug(msg, args...)
}

func Info(msg string, args ...any) {
	defaultLogger.Info(msg, args...)
}

func Warn(msg string, args ...any) {
	defaultLogger.Warn(msg, args...)
}

func Error(msg string, args ...any) {
	defaultLogger.Error(msg, args...)
}

func DebugContext(ctx context.Context, msg string, args ...any) {
	defaultLogger.DebugContext(ctx, msg, args...)
}

func WarnContext(ctx context.Context, msg string, args ...any) {
	defaultLogger.WarnContext(ctx, msg, args...)
}

func ErrorContext(ctx context.Context, msg string, args ...any) {
	defaultLogger.ErrorContext(ctx, msg, args...)
}
