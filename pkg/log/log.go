package log

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logger *logrus.Logger
	mu     sync.RWMutex
)

// Fields is an alias so callers do not need to import logrus
type Fields = logrus.Fields

// Config log configuration
type Config struct {
	Level      string `json:"level"`       // debug, info, warn, error
	Format     string `json:"format"`      // json, text
	Output     string `json:"output"`      // stdout, file, both
	Filename   string `json:"filename"`    // log file path
	MaxSize    int    `json:"max_size"`    // MB per file
	MaxAge     int    `json:"max_age"`     // days
	MaxBackups int    `json:"max_backups"` // rotated files kept
	Compress   bool   `json:"compress"`
}

// New builds a logger from cfg without touching the package logger
func New(cfg Config) (*logrus.Logger, error) {
	l := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if cfg.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05.000",
		})
	}

	var output io.Writer = os.Stdout
	if (cfg.Output == "file" || cfg.Output == "both") && cfg.Filename != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Filename), 0o755); err != nil {
			return nil, err
		}
		rotating := &lumberjack.Logger{
			Filename:   cfg.Filename,
			MaxSize:    cfg.MaxSize,
			MaxAge:     cfg.MaxAge,
			MaxBackups: cfg.MaxBackups,
			Compress:   cfg.Compress,
		}
		output = rotating
		if cfg.Output == "both" {
			output = io.MultiWriter(os.Stdout, rotating)
		}
	}
	l.SetOutput(output)

	return l, nil
}

// Init initialize the package logger
func Init(cfg Config) error {
	l, err := New(cfg)
	if err != nil {
		return err
	}
	SetLogger(l)
	return nil
}

// SetLogger replaces the package logger, mostly for tests
func SetLogger(l *logrus.Logger) {
	mu.Lock()
	logger = l
	mu.Unlock()
}

// SetLevel changes the level of the package logger in place
func SetLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	GetLogger().SetLevel(lvl)
	return nil
}

// GetLogger get logger instance
func GetLogger() *logrus.Logger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		logger = logrus.New()
	}
	return logger
}

func Debug(args ...interface{})                 { GetLogger().Debug(args...) }
func Debugf(format string, args ...interface{}) { GetLogger().Debugf(format, args...) }
func Info(args ...interface{})                  { GetLogger().Info(args...) }
func Infof(format string, args ...interface{})  { GetLogger().Infof(format, args...) }
func Warn(args ...interface{})                  { GetLogger().Warn(args...) }
func Warnf(format string, args ...interface{})  { GetLogger().Warnf(format, args...) }
func Error(args ...interface{})                 { GetLogger().Error(args...) }
func Errorf(format string, args ...interface{}) { GetLogger().Errorf(format, args...) }
func Fatal(args ...interface{})                 { GetLogger().Fatal(args...) }
func Fatalf(format string, args ...interface{}) { GetLogger().Fatalf(format, args...) }

// WithField add field
func WithField(key string, value interface{}) *logrus.Entry {
	return GetLogger().WithField(key, value)
}

// WithFields add multiple fields
func WithFields(fields Fields) *logrus.Entry {
	return GetLogger().WithFields(fields)
}

// WithError add error field
func WithError(err error) *logrus.Entry {
	return GetLogger().WithError(err)
}

// WithContext attaches the trace id of the active span, if any
func WithContext(ctx context.Context) *logrus.Entry {
	entry := GetLogger().WithContext(ctx)
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		entry = entry.WithField("trace_id", sc.TraceID().String())
	}
	return entry
}
