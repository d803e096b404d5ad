package logger

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	FATAL
)

func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorGray   = "\033[90m"
)

type Logger struct {
	mu         sync.Mutex
	out        io.Writer
	level      LogLevel
	prefix     string
	colorize   bool
	showCaller bool
	showTime   bool
	timeFormat string
}

type Config struct {
	Level      LogLevel
	Prefix     string
	Colorize   bool
	ShowCaller bool
	ShowTime   bool
	TimeFormat string
	Output     io.Writer
}

func DefaultConfig() Config {
	return Config{
		Level:      INFO,
		Colorize:   true,
		ShowTime:   true,
		TimeFormat: "2006-01-02 15:04:05",
		Output:     os.Stdout,
	}
}

func New(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = "2006-01-02 15:04:05"
	}

	return &Logger{
		out:        cfg.Output,
		level:      cfg.Level,
		prefix:     cfg.Prefix,
		colorize:   cfg.Colorize,
		showCaller: cfg.ShowCaller,
		showTime:   cfg.ShowTime,
		timeFormat: cfg.TimeFormat,
	}
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// GetLogger returns the process-wide logger, honoring the LOG_LEVEL
// environment variable on first use.
func GetLogger() *Logger {
	once.Do(func() {
		cfg := DefaultConfig()
		switch strings.ToUpper(os.Getenv("LOG_LEVEL")) {
		case "DEBUG":
			cfg.Level = DEBUG
		case "INFO":
			cfg.Level = INFO
		case "WARN":
			cfg.Level = WARN
		case "FATAL":
			cfg.Level = FATAL
		}
		defaultLogger = New(cfg)
	})
	return defaultLogger
}

func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = w
}

func (l *Logger) formatMessage(level LogLevel, msg string, args ...any) string {
	var parts []string

	if l.showTime {
		parts = append(parts, time.Now().Format(l.timeFormat))
	}

	levelStr := fmt.Sprintf("[%s]", level.String())
	if l.colorize {
		switch level {
		case DEBUG:
			levelStr = colorGray + levelStr + colorReset
		case INFO:
			levelStr = colorBlue + levelStr + colorReset
		case WARN:
			levelStr = colorYellow + levelStr + colorReset
		case FATAL:
			levelStr = colorRed + levelStr + colorReset
		}
	}
	parts = append(parts, levelStr)

	if l.showCaller {
		if _, file, line, ok := runtime.Caller(3); ok {
			if idx := strings.LastIndex(file, "/"); idx >= 0 {
				file = file[idx+1:]
			}
			parts = append(parts, fmt.Sprintf("%s:%d", file, line))
		}
	}

	if l.prefix != "" {
		parts = append(parts, l.prefix)
	}

	if len(args) > 0 {
		parts = append(parts, fmt.Sprintf(msg, args...))
	} else {
		parts = append(parts, msg)
	}

	return strings.Join(parts, " ")
}

func (l *Logger) log(level LogLevel, msg string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level {
		return
	}

	fmt.Fprintln(l.out, l.formatMessage(level, msg, args...))

	if level == FATAL {
		os.Exit(1)
	}
}

// Debugf logs a formatted message at DEBUG level.
func (l *Logger) Debugf(format string, args ...any) {
	l.log(DEBUG, format, args...)
}

// Infof logs a formatted message at INFO level.
func (l *Logger) Infof(format string, args ...any) {
	l.log(INFO, format, args...)
}

// Warnf logs a formatted message at WARN level.
func (l *Logger) Warnf(format string, args ...any) {
	l.log(WARN, format, args...)
}

// Errorf logs at WARN level; recoverable errors never tear the process down.
func (l *Logger) Errorf(format string, args ...any) {
	l.log(WARN, format, args...)
}

// Fatalf logs a formatted message at FATAL level and exits.
func (l *Logger) Fatalf(format string, args ...any) {
	l.log(FATAL, format, args...)
}

// Package-level convenience functions using the default logger.

func Debugf(format string, args ...any) { GetLogger().Debugf(format, args...) }
func Infof(format string, args ...any)  { GetLogger().Infof(format, args...) }
func Warnf(format string, args ...any)  { GetLogger().Warnf(format, args...) }
func Errorf(format string, args ...any) { GetLogger().Errorf(format, args...) }
func Fatalf(format string, args ...any) { GetLogger().Fatalf(format, args...) }
