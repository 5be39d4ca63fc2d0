// Package logging builds the process logger from LogConfig.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/tdh8316/usernamescan/internal/config"
)

const timestampFormat = "2006-01-02 15:04:05.000"

// New returns a logger writing to cfg.Output. stdout and stderr are used for
// the console outputs so callers can redirect them.
func New(cfg config.LogConfig, stdout, stderr io.Writer) (*logrus.Logger, error) {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	log.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: timestampFormat,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime: "timestamp",
				logrus.FieldKeyMsg:  "message",
			},
		})
	case "text", "":
		log.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: timestampFormat,
			FullTimestamp:   true,
		})
	default:
		return nil, fmt.Errorf("unsupported log format %q", cfg.Format)
	}

	switch strings.ToLower(cfg.Output) {
	case "stdout":
		log.SetOutput(stdout)
	case "stderr", "":
		log.SetOutput(stderr)
	case "file":
		if cfg.FilePath == "" {
			return nil, fmt.Errorf("log file path is required when output is file")
		}
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		log.SetOutput(&lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		})
	default:
		return nil, fmt.Errorf("unsupported log output %q", cfg.Output)
	}

	return log, nil
}

// Close releases a rotating log file, if any.
func Close(log *logrus.Logger) error {
	if c, ok := log.Out.(io.Closer); ok {
		if c == os.Stdout || c == os.Stderr {
			return nil
		}
		return c.Close()
	}
	return nil
}
