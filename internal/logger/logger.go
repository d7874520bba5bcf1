package logger

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Field keys shared by every conversion log record.
const (
	FieldImage     = "image"
	FieldOutput    = "output"
	FieldOperation = "operation"
	FieldImages    = "images"
	FieldTarget    = "target"
)

// console is where non-file output goes. Stderr keeps stdout free for command results.
var console io.Writer = os.Stderr

// LoggerConfig defines the configuration for the logger.
type LoggerConfig struct {
	Level      string // debug, info, warn or error
	FilePath   string // empty disables the log file
	MaxSize    int    // megabytes before rotation
	MaxBackups int
	MaxAge     int // days
	Compress   bool
	Console    bool
}

// NewLogger returns a logrus.Logger writing JSON records to a rotated file,
// the console, or both. Without a file path the console is always used.
func NewLogger(config LoggerConfig) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		return nil, err
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime: "timestamp",
			logrus.FieldKeyMsg:  "message",
		},
	})

	var writers []io.Writer
	if config.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(config.FilePath), 0755); err != nil {
			return nil, err
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   config.FilePath,
			MaxSize:    config.MaxSize,
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAge,
			Compress:   config.Compress,
		})
	}
	if config.Console || config.FilePath == "" {
		writers = append(writers, console)
	}
	logger.SetOutput(io.MultiWriter(writers...))

	return logger, nil
}

// LevelFor applies the --verbose and --quiet switches to a configured level.
// Quiet wins when both are set.
func LevelFor(level string, verbose, quiet bool) string {
	switch {
	case quiet:
		return "error"
	case verbose:
		return "debug"
	default:
		return level
	}
}

// WithImage returns an entry scoped to one source image.
func WithImage(logger *logrus.Logger, imagePath string) *logrus.Entry {
	return logger.WithField(FieldImage, imagePath)
}

// WithOperation returns an entry scoped to an operation such as "serve" or "watch".
func WithOperation(logger *logrus.Logger, operation string) *logrus.Entry {
	return logger.WithField(FieldOperation, operation)
}

// WithConversion returns an entry for converting imagePath into outputPath.
func WithConversion(logger *logrus.Logger, imagePath, outputPath string) *logrus.Entry {
	return logger.WithFields(logrus.Fields{
		FieldImage:     imagePath,
		FieldOutput:    outputPath,
		FieldOperation: "convert",
	})
}

// WithBatch returns an entry for a batch of n images written into target.
func WithBatch(logger *logrus.Logger, n int, target string) *logrus.Entry {
	return logger.WithFields(logrus.Fields{
		FieldImages:    n,
		FieldTarget:    target,
		FieldOperation: "batch",
	})
}

// Discard returns a logger that drops everything, for tests and quiet front ends.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// DefaultConfig returns the default LoggerConfig.
func DefaultConfig() LoggerConfig {
	return LoggerConfig{
		Level:      "info",
		FilePath:   "ico-maker.log",
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     30,
		Compress:   true,
		Console:    true,
	}
}
