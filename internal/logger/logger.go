// Package logger provides leveled logging for protosmith.
// Warnings and errors are always written; when verbose mode is enabled via
// the --verbose flag, debug and info messages are written too so users can
// follow the pipeline stage by stage.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
	logFile *lumberjack.Logger
	level   = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	base    = build()
)

// Entry is a logger carrying structured key/value context.
type Entry struct {
	s *zap.SugaredLogger
}

func build() *zap.SugaredLogger {
	enc := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		MessageKey:       "msg",
		LevelKey:         "level",
		EncodeLevel:      bracketLevel,
		ConsoleSeparator: " ",
		LineEnding:       zapcore.DefaultLineEnding,
	})

	sink := zapcore.AddSync(output)
	if logFile != nil {
		sink = zapcore.NewMultiWriteSyncer(sink, zapcore.AddSync(logFile))
	}

	return zap.New(zapcore.NewCore(enc, zapcore.Lock(sink), level)).Sugar()
}

func bracketLevel(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString("[" + l.CapitalString() + "]")
}

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
	if v {
		level.SetLevel(zapcore.DebugLevel)
	} else {
		level.SetLevel(zapcore.WarnLevel)
	}
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	base = build()
}

// SetLogFile additionally writes logs to a size-rotated file.
// An empty path disables file logging.
func SetLogFile(path string) error {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		if err := logFile.Close(); err != nil {
			return fmt.Errorf("close log file: %w", err)
		}
		logFile = nil
	}
	if path != "" {
		logFile = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
		}
	}
	base = build()
	return nil
}

// Sync flushes buffered log entries.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = base.Sync()
}

func current() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

// Debug prints a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	current().Debugf(format, args...)
}

// Info prints an informational message if verbose mode is enabled.
func Info(format string, args ...any) {
	current().Infof(format, args...)
}

// Warn prints a warning message.
func Warn(format string, args ...any) {
	current().Warnf(format, args...)
}

// Error prints an error message.
func Error(format string, args ...any) {
	current().Errorf(format, args...)
}

// Section prints a section header if verbose mode is enabled.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}

// With returns an Entry that attaches the given key/value pairs to every message.
func With(keysAndValues ...any) *Entry {
	return &Entry{s: current().With(keysAndValues...)}
}

// Debug prints a message if verbose mode is enabled.
func (e *Entry) Debug(format string, args ...any) {
	e.s.Debugf(format, args...)
}

// Info prints an informational message if verbose mode is enabled.
func (e *Entry) Info(format string, args ...any) {
	e.s.Infof(format, args...)
}

// Warn prints a warning message.
func (e *Entry) Warn(format string, args ...any) {
	e.s.Warnf(format, args...)
}

// Error prints an error message.
func (e *Entry) Error(format string, args ...any) {
	e.s.Errorf(format, args...)
}

// With returns a child Entry with additional key/value pairs.
func (e *Entry) With(keysAndValues ...any) *Entry {
	return &Entry{s: e.s.With(keysAndValues...)}
}
