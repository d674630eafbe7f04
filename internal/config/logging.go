package config

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// InitLogger configures l from cfg. Bad settings fall back to warn level and
// stderr with a warning instead of failing. The returned Closer releases a
// log file, if one was opened.
func InitLogger(l *logrus.Logger, cfg LoggingConfig) io.Closer {
	// Set log level
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		l.Warnf("Invalid log level '%s', using 'warn' instead. Error: %v", cfg.Level, err)
		level = logrus.WarnLevel
	}
	l.SetLevel(level)

	// Set log format
	switch strings.ToLower(cfg.Format) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	// Set log output
	var (
		output io.Writer
		closer io.Closer = nopCloser{}
	)
	switch strings.ToLower(cfg.Output) {
	case "", "stderr":
		output = os.Stderr
	case "stdout":
		output = os.Stdout
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			l.Warnf("Failed to open log file '%s', using 'stderr' instead. Error: %v", cfg.Output, err)
			output = os.Stderr
		} else {
			output = file
			closer = file
		}
	}
	l.SetOutput(output)

	l.Debug("Logger initialized")
	return closer
}
