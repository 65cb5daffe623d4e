// Package logging wraps github.com/sirupsen/logrus behind the teacher's
// own Config/New/Level-set shape, keeping the same field names and
// call sites while replacing the hand-rolled JSON encoder/writer with
// a real structured-logging library. Grounded on internal/logging/logger.go's
// Config{Level,Format,Output}/Level enum/RequestLog, generalized so the
// same Config selects between logrus's JSON and text formatters.
package logging

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// Level mirrors the teacher's named severities, narrowed to logrus's set.
type Level = logrus.Level

const (
	LevelDebug = logrus.DebugLevel
	LevelInfo  = logrus.InfoLevel
	LevelWarn  = logrus.WarnLevel
	LevelError = logrus.ErrorLevel
)

// ParseLevel parses a log level string, defaulting to info on failure
// — a new config only fails validation loudly, never silently panics.
func ParseLevel(s string) Level {
	lvl, err := logrus.ParseLevel(s)
	if err != nil {
		return LevelInfo
	}
	return lvl
}

// Config configures the logger: level, JSON vs. pretty/text output, and
// destination.
type Config struct {
	Level  string
	Format string // json or pretty
	Output string // stdout, stderr, or file path
}

// Logger is a thin façade over *logrus.Logger carrying the fields and
// methods call sites already expect (Debug/Info/Warn/Error/LogRequest).
type Logger struct {
	*logrus.Logger
}

// New builds a Logger per Config, matching the teacher's New(cfg)
// signature and output-selection logic.
func New(cfg Config) (*Logger, error) {
	l := logrus.New()

	switch cfg.Format {
	case "pretty", "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	}

	switch cfg.Output {
	case "", "stdout":
		l.SetOutput(os.Stdout)
	case "stderr":
		l.SetOutput(os.Stderr)
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		l.SetOutput(f)
	}

	l.SetLevel(ParseLevel(cfg.Level))
	return &Logger{Logger: l}, nil
}

// Debug logs a debug message with structured fields.
func (l *Logger) Debug(msg string, fields map[string]interface{}) {
	l.WithFields(fields).Debug(msg)
}

// Info logs an info message with structured fields.
func (l *Logger) Info(msg string, fields map[string]interface{}) {
	l.WithFields(fields).Info(msg)
}

// Warn logs a warning message with structured fields.
func (l *Logger) Warn(msg string, fields map[string]interface{}) {
	l.WithFields(fields).Warn(msg)
}

// Error logs an error message with structured fields.
func (l *Logger) Error(msg string, fields map[string]interface{}) {
	l.WithFields(fields).Error(msg)
}

// RequestLog is one forwarded (or rejected) connection's summary,
// generalized from the teacher's ACL-flavored RequestLog (ProfileID,
// Action, Reason, TLS/SNI) to the load balancer's frontend/backend
// proxy record.
type RequestLog struct {
	RequestID  string
	Frontend   string
	Backend    string
	ClientIP   string
	Method     string
	Path       string
	StatusCode int
	DurationMs float64
	Protocol   string // tcp or http
}

// LogRequest emits one structured line per proxied connection/request.
func (l *Logger) LogRequest(req RequestLog) {
	l.WithFields(logrus.Fields{
		"request_id":  req.RequestID,
		"frontend":    req.Frontend,
		"backend":     req.Backend,
		"client_ip":   req.ClientIP,
		"method":      req.Method,
		"path":        req.Path,
		"status_code": req.StatusCode,
		"duration_ms": req.DurationMs,
		"protocol":    req.Protocol,
	}).Info("request")
}
