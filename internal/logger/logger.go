// Package logger provides centralized logging for tracebench.
// It wraps a charmbracelet/log logger and hands out styled per-component loggers.
package logger

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

// LevelEnvVar is consulted when no log level flag is given.
const LevelEnvVar = "TRACEBENCH_LOG_LEVEL"

// Logger is the global logger instance used throughout tracebench.
var Logger *log.Logger

var (
	outputMu sync.RWMutex
	output   io.Writer = os.Stderr
)

func init() {
	Logger = log.New(os.Stderr)
	Logger.SetReportTimestamp(true)
	Logger.SetTimeFormat("15:04:05")
	Logger.SetLevel(log.InfoLevel)
}

// Configure sets up the logger from CLI flags and the environment.
// The flag takes precedence over TRACEBENCH_LOG_LEVEL.
func Configure(logLevel string, logFile string) error {
	level := logLevel
	if level == "" {
		level = strings.ToLower(os.Getenv(LevelEnvVar))
	}

	var out io.Writer = os.Stderr
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return err
		}
		out = file
	}

	SetOutput(out)
	Logger.SetLevel(parseLogLevel(level))
	return nil
}

// SetOutput redirects the global logger and every component logger created afterwards.
func SetOutput(w io.Writer) {
	outputMu.Lock()
	defer outputMu.Unlock()

	output = w
	level := Logger.GetLevel()
	Logger = log.New(w)
	Logger.SetReportTimestamp(true)
	Logger.SetTimeFormat("15:04:05")
	Logger.SetLevel(level)
}

// parseLogLevel converts string to log level
func parseLogLevel(level string) log.Level {
	switch strings.ToLower(level) {
	case "debug":
		return log.DebugLevel
	case "info":
		return log.InfoLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	case "fatal":
		return log.FatalLevel
	default:
		return log.InfoLevel
	}
}

// Debug logs a debug message with optional key-value pairs.
func Debug(msg interface{}, keyvals ...interface{}) {
	Logger.Debug(msg, keyvals...)
}

// Info logs an info message with optional key-value pairs.
func Info(msg interface{}, keyvals ...interface{}) {
	Logger.Info(msg, keyvals...)
}

// Warn logs a warning message with optional key-value pairs.
func Warn(msg interface{}, keyvals ...interface{}) {
	Logger.Warn(msg, keyvals...)
}

// Error logs an error message with optional key-value pairs.
func Error(msg interface{}, keyvals ...interface{}) {
	Logger.Error(msg, keyvals...)
}

// NewStyledLogger creates a component logger with a prefix, e.g. "trial" or "tracing".
// It shares the global logger's destination and level.
func NewStyledLogger(prefix string) *log.Logger {
	styles := log.DefaultStyles()

	styles.Levels[log.InfoLevel] = lipgloss.NewStyle().
		SetString("INFO").
		Padding(0, 1, 0, 1).
		Background(lipgloss.Color("33")).
		Foreground(lipgloss.Color("15"))

	styles.Levels[log.ErrorLevel] = lipgloss.NewStyle().
		SetString("ERROR").
		Padding(0, 1, 0, 1).
		Background(lipgloss.Color("196")).
		Foreground(lipgloss.Color("15"))

	styles.Levels[log.DebugLevel] = lipgloss.NewStyle().
		SetString("DEBUG").
		Padding(0, 1, 0, 1).
		Background(lipgloss.Color("240")).
		Foreground(lipgloss.Color("15"))

	styles.Levels[log.WarnLevel] = lipgloss.NewStyle().
		SetString("WARN").
		Padding(0, 1, 0, 1).
		Background(lipgloss.Color("214")).
		Foreground(lipgloss.Color("15"))

	// Keys that show up on every trial line
	styles.Keys["trial"] = lipgloss.NewStyle().Foreground(lipgloss.Color("99"))
	styles.Keys["mode"] = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	styles.Keys["session"] = lipgloss.NewStyle().Foreground(lipgloss.Color("51"))
	styles.Keys["role"] = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	styles.Keys["exit"] = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	styles.Keys["error"] = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	styles.Values["trial"] = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	styles.Values["error"] = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))

	outputMu.RLock()
	w := output
	outputMu.RUnlock()

	componentLogger := log.NewWithOptions(w, log.Options{
		Prefix:          prefix,
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
	})
	componentLogger.SetStyles(styles)
	componentLogger.SetLevel(Logger.GetLevel())

	return componentLogger
}
