// Package logger provides structured logging for pipelinectl using zap.
package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dbsmedya/pipelinectl/internal/config"
)

// Logger wraps zap.SugaredLogger with context methods.
type Logger struct {
	*zap.SugaredLogger
	base *zap.Logger
}

// New creates a new Logger from configuration. With cfg.Dir empty, it logs
// to stdout only; with cfg.Dir set, it additionally appends the same
// console-format lines to {DIR}/{NAME}.log.
func New(cfg *config.LoggingConfig) (*Logger, error) {
	level := parseLevel(cfg.Level)
	encoder := buildEncoder()
	writer, err := buildWriter(cfg)
	if err != nil {
		return nil, err
	}

	core := zapcore.NewCore(encoder, writer, level)
	baseLogger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))

	return &Logger{
		SugaredLogger: baseLogger.Sugar(),
		base:          baseLogger,
	}, nil
}

// NewDefault creates a Logger with default settings (INFO level, stdout only).
func NewDefault() *Logger {
	logger, _ := New(&config.LoggingConfig{Name: "pipelinectl", Level: "INFO"})
	return logger
}

// parseLevel converts the spec's DEBUG/INFO/WARNING/ERROR/CRITICAL scale to
// zapcore.Level (zap has no CRITICAL level; it maps to DPanic).
func parseLevel(level string) zapcore.Level {
	switch level {
	case "DEBUG":
		return zapcore.DebugLevel
	case "INFO", "":
		return zapcore.InfoLevel
	case "WARNING":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	case "CRITICAL":
		return zapcore.DPanicLevel
	default:
		return zapcore.InfoLevel
	}
}

func buildEncoder() zapcore.Encoder {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalColorLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	return zapcore.NewConsoleEncoder(encoderConfig)
}

func buildWriter(cfg *config.LoggingConfig) (zapcore.WriteSyncer, error) {
	if cfg.Dir == "" {
		return zapcore.AddSync(os.Stdout), nil
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	name := cfg.Name
	if name == "" {
		name = "pipelinectl"
	}
	file, err := os.OpenFile(filepath.Join(cfg.Dir, name+".log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return zapcore.NewMultiWriteSyncer(zapcore.AddSync(file), zapcore.AddSync(os.Stdout)), nil
}

// WithProcBatch returns a Logger with proc_batch_id context.
func (l *Logger) WithProcBatch(procBatchID int64) *Logger {
	return &Logger{
		SugaredLogger: l.SugaredLogger.With("proc_batch_id", procBatchID),
		base:          l.base,
	}
}

// WithSourceBatch returns a Logger with source_batch_id context.
func (l *Logger) WithSourceBatch(sourceBatchID int64) *Logger {
	return &Logger{
		SugaredLogger: l.SugaredLogger.With("source_batch_id", sourceBatchID),
		base:          l.base,
	}
}

// WithFields returns a Logger with additional fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &Logger{
		SugaredLogger: l.SugaredLogger.With(args...),
		base:          l.base,
	}
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error {
	return l.base.Sync()
}
