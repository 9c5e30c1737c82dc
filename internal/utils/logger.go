// internal/utils/logger.go
package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

// LogLevel orders log severities.
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARNING
	ERROR
	FATAL
)

// ParseLogLevel maps a config string to a level, defaulting to INFO
// for anything unrecognized.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "info":
		return INFO
	case "warn", "warning":
		return WARNING
	case "error":
		return ERROR
	case "fatal":
		return FATAL
	default:
		return INFO
	}
}

func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARNING:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// Logger writes leveled entries to stdout and, once InitLogger has run,
// to the day's log file as well. Default fields installed with
// SetDefaults are stamped on every entry, so the wizard tags all lines
// with the serving process identity.
type Logger struct {
	mu       sync.Mutex
	out      io.Writer
	file     *os.File
	level    LogLevel
	enabled  bool
	defaults map[string]interface{}
}

var (
	globalLogger *Logger
	loggerOnce   sync.Once
)

// GetLogger returns the process-wide logger.
func GetLogger() *Logger {
	loggerOnce.Do(func() {
		globalLogger = &Logger{
			out:     os.Stdout,
			level:   INFO,
			enabled: true,
		}
	})
	return globalLogger
}

// InitLogger points the global logger at a log file, creating the
// directory as needed. An earlier file is closed first.
func InitLogger(logFile string) error {
	if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	logger := GetLogger()
	logger.mu.Lock()
	defer logger.mu.Unlock()

	if logger.file != nil {
		logger.file.Close()
	}
	logger.file = file
	return nil
}

// SetLogLevel sets the minimum severity that gets written.
func (l *Logger) SetLogLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// Enable turns logging on or off entirely.
func (l *Logger) Enable(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = enabled
}

// SetDefaults installs fields added to every subsequent entry.
// Per-entry fields with the same key win.
func (l *Logger) SetDefaults(fields map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.defaults = fields
}

func (l *Logger) log(level LogLevel, message string, fields map[string]interface{}) {
	l.mu.Lock()
	if !l.enabled || level < l.level {
		l.mu.Unlock()
		return
	}
	merged := mergeFields(l.defaults, fields)
	l.mu.Unlock()

	// caller site, two frames up past log() and the level method
	_, file, line, ok := runtime.Caller(2)
	if ok {
		file = filepath.Base(file)
	} else {
		file, line = "???", 0
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %-5s %s:%d %s",
		time.Now().Format("2006-01-02T15:04:05.000"), level, file, line, message)

	// stable key order so lines diff cleanly
	if len(merged) > 0 {
		keys := make([]string, 0, len(merged))
		for k := range merged {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" |")
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, merged[k])
		}
	}
	b.WriteString("\n")
	entry := b.String()

	l.mu.Lock()
	if l.file != nil {
		l.file.WriteString(entry)
		l.file.Sync()
	}
	io.WriteString(l.out, entry)
	l.mu.Unlock()

	if level == FATAL {
		os.Exit(1)
	}
}

func mergeFields(defaults, fields map[string]interface{}) map[string]interface{} {
	if len(defaults) == 0 {
		return fields
	}
	merged := make(map[string]interface{}, len(defaults)+len(fields))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return merged
}

func (l *Logger) Debug(message string, fields map[string]interface{}) {
	l.log(DEBUG, message, fields)
}

func (l *Logger) Info(message string, fields map[string]interface{}) {
	l.log(INFO, message, fields)
}

func (l *Logger) Warn(message string, fields map[string]interface{}) {
	l.log(WARNING, message, fields)
}

func (l *Logger) Error(message string, fields map[string]interface{}) {
	l.log(ERROR, message, fields)
}

// Fatal logs the message and exits the process.
func (l *Logger) Fatal(message string, fields map[string]interface{}) {
	l.log(FATAL, message, fields)
}
