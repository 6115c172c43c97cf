// logger/logger.go
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case DEBUG:
		return slog.LevelDebug
	case WARN:
		return slog.LevelWarn
	case ERROR:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLevel maps a configuration string onto a LogLevel, defaulting to INFO.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

// Options controls where and how log records are written
type Options struct {
	Filename string // mirrored log file, empty for none
	Console  bool
	Level    LogLevel
	JSON     bool
}

var (
	defaultLogger *slog.Logger
	level         = new(slog.LevelVar)
	file          *os.File
	mu            sync.RWMutex
	out           = &sink{}
)

// sink is the writer behind every handler. Its target is swapped under a lock,
// so a logger obtained before Close never writes to a closed file.
type sink struct {
	mu sync.Mutex
	w  io.Writer // nil writes to os.Stdout
}

func (s *sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == nil {
		return os.Stdout.Write(p)
	}
	return s.w.Write(p)
}

func (s *sink) swap(w io.Writer) {
	s.mu.Lock()
	s.w = w
	s.mu.Unlock()
}

func consoleLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
}

// ensureInitialized creates a console logger if Init was never called
func ensureInitialized() {
	mu.RLock()
	ready := defaultLogger != nil
	mu.RUnlock()
	if ready {
		return
	}

	mu.Lock()
	defer mu.Unlock()
	if defaultLogger == nil {
		defaultLogger = consoleLogger()
	}
}

// Init (re)configures the logger. If the file cannot be opened the error is
// returned and the previous configuration stays in place.
func Init(opts Options) error {
	mu.Lock()
	defer mu.Unlock()

	var writers []io.Writer
	var newFile *os.File
	if opts.Filename != "" {
		f, err := os.OpenFile(opts.Filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		newFile = f
		writers = append(writers, f)
	}
	if opts.Console {
		writers = append(writers, os.Stdout)
	}
	if len(writers) == 0 {
		return fmt.Errorf("no output destination specified")
	}

	level.Set(opts.Level.slogLevel())
	handlerOpts := &slog.HandlerOptions{Level: level}
	if opts.JSON {
		defaultLogger = slog.New(slog.NewJSONHandler(out, handlerOpts))
	} else {
		defaultLogger = slog.New(slog.NewTextHandler(out, handlerOpts))
	}
	out.swap(io.MultiWriter(writers...))

	if file != nil {
		file.Close()
	}
	file = newFile
	return nil
}

// SetLevel sets the minimum level; records below it are dropped
func SetLevel(l LogLevel) {
	ensureInitialized()
	level.Set(l.slogLevel())
}

// Close closes the mirrored log file if one is open and falls back to console
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if file != nil {
		out.swap(nil)
		file.Close()
		file = nil
		defaultLogger = consoleLogger()
	}
}

// Slog exposes the underlying structured logger for callers that want attributes.
func Slog() *slog.Logger {
	ensureInitialized()
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

func output(l slog.Level, msg string) {
	lg := Slog()
	if !lg.Enabled(context.Background(), l) {
		return
	}
	lg.Log(context.Background(), l, msg)
}

// Debug logs a debug message
func Debug(v ...interface{}) {
	output(slog.LevelDebug, fmt.Sprint(v...))
}

// Debugf logs a formatted debug message
func Debugf(format string, v ...interface{}) {
	output(slog.LevelDebug, fmt.Sprintf(format, v...))
}

// Info logs an info message
func Info(v ...interface{}) {
	output(slog.LevelInfo, fmt.Sprint(v...))
}

// Infof logs a formatted info message
func Infof(format string, v ...interface{}) {
	output(slog.LevelInfo, fmt.Sprintf(format, v...))
}

// Warn logs a warning message
func Warn(v ...interface{}) {
	output(slog.LevelWarn, fmt.Sprint(v...))
}

// Warnf logs a formatted warning message
func Warnf(format string, v ...interface{}) {
	output(slog.LevelWarn, fmt.Sprintf(format, v...))
}

// Error logs an error message
func Error(v ...interface{}) {
	output(slog.LevelError, fmt.Sprint(v...))
}

// Errorf logs a formatted error message
func Errorf(format string, v ...interface{}) {
	output(slog.LevelError, fmt.Sprintf(format, v...))
}

// Fatal logs an error message and exits the program
func Fatal(v ...interface{}) {
	output(slog.LevelError, fmt.Sprint(v...))
	os.Exit(1)
}

// Fatalf logs a formatted error message and exits the program
func Fatalf(format string, v ...interface{}) {
	output(slog.LevelError, fmt.Sprintf(format, v...))
	os.Exit(1)
}
