package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log output formats
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config controls the process logger
type Config struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// DefaultConfig returns info level text logging to stderr
func DefaultConfig() Config {
	return Config{
		Level:      logrus.InfoLevel.String(),
		Format:     FormatText,
		MaxSizeMB:  100,
		MaxBackups: 5,
		MaxAgeDays: 30,
		Compress:   true,
	}
}

// Validate checks the level and format names
func (c Config) Validate() error {
	if _, err := logrus.ParseLevel(c.Level); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	if c.Format != FormatText && c.Format != FormatJSON {
		return fmt.Errorf("invalid log format %q", c.Format)
	}
	return nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewLogger builds a logger writing to stderr and, when a file is configured,
// to a size rotated log file. The returned closer releases the file.
func NewLogger(cfg Config, stderr io.Writer) (*logrus.Logger, io.Closer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	logger := logrus.New()
	level, _ := logrus.ParseLevel(cfg.Level)
	logger.SetLevel(level)

	if cfg.Format == FormatJSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if cfg.File == "" {
		logger.SetOutput(stderr)
		return logger, nopCloser{}, nil
	}

	file := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	logger.SetOutput(io.MultiWriter(stderr, file))
	return logger, file, nil
}
