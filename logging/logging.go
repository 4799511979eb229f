// Package logging builds the logrus logger shared by every component and
// tags entries with the component that produced them.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Category values for the "component" field.
const (
	CategoryApp       = "app"
	CategoryCapture   = "capture"
	CategorySegment   = "segment"
	CategoryInference = "inference"
	CategoryAggregate = "aggregate"
	CategorySession   = "session"
	CategoryReport    = "report"
)

type Config struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic"`
	Format string `mapstructure:"format" yaml:"format" validate:"omitempty,oneof=text json"`
	// File, when set, receives the log in addition to stderr and is rotated
	// by size.
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups" validate:"gte=0"`
}

func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "text",
		MaxSizeMB:  10,
		MaxBackups: 3,
	}
}

// New returns a configured logger and a closer for the rotated file, if any.
func New(cfg Config) (*logrus.Logger, io.Closer, error) {
	logger := logrus.New()

	level := logrus.InfoLevel
	if cfg.Level != "" {
		l, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("log level: %w", err)
		}
		level = l
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		rotated := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}
		logger.SetOutput(io.MultiWriter(os.Stderr, rotated))
		closer = rotated
	} else {
		logger.SetOutput(os.Stderr)
	}

	return logger, closer, nil
}

// For tags log entries with a component name.
func For(l logrus.FieldLogger, category string) logrus.FieldLogger {
	if l == nil {
		l = Discard()
	}
	return l.WithField("component", category)
}

// Discard returns a logger that drops everything; handy in tests.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
