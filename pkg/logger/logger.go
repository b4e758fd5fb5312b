package logger

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var log *logrus.Logger

// InitLogger initializes the structured logger. Level resolution order:
// explicit argument, LOG_LEVEL environment variable, then info (debug in
// development).
func InitLogger(logLevel string, isDevelopment bool) *logrus.Logger {
	l := logrus.New()

	if logLevel == "" {
		logLevel = os.Getenv("LOG_LEVEL")
		if logLevel == "" {
			if isDevelopment {
				logLevel = "debug"
			} else {
				logLevel = "info"
			}
		}
	}

	if level, err := logrus.ParseLevel(strings.ToLower(logLevel)); err == nil {
		l.SetLevel(level)
	} else {
		l.SetLevel(logrus.InfoLevel)
		l.WithField("invalid_level", logLevel).Warn("Invalid LOG_LEVEL, using INFO")
	}

	if !isDevelopment || strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	l.SetOutput(os.Stdout)
	log = l
	return l
}

// GetLogger returns the shared logger, initializing it with defaults when
// needed.
func GetLogger() *logrus.Logger {
	if log == nil {
		return InitLogger("info", false)
	}
	return log
}
