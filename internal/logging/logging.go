// Package logging provides the shared logrus logger for all ductor components.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu         sync.Mutex
	logger     = newDefault()
	components = make(map[string]*logrus.Entry)
)

func newDefault() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	if lvl, err := logrus.ParseLevel(os.Getenv("DUCTOR_LOG_LEVEL")); err == nil {
		l.SetLevel(lvl)
	} else {
		l.SetLevel(logrus.InfoLevel)
	}
	return l
}

// Setup configures the log level and, when logDir is non-empty, mirrors
// output to <logDir>/ductor.log. Safe to call more than once.
func Setup(level, logDir string) error {
	mu.Lock()
	defer mu.Unlock()

	if level != "" {
		lvl, err := logrus.ParseLevel(level)
		if err != nil {
			return err
		}
		logger.SetLevel(lvl)
	}

	if logDir != "" {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return err
		}
		f, err := os.OpenFile(
			filepath.Join(logDir, "ductor.log"),
			os.O_CREATE|os.O_WRONLY|os.O_APPEND,
			0o644,
		)
		if err != nil {
			return err
		}
		logger.SetOutput(io.MultiWriter(os.Stderr, f))
	}
	return nil
}

// Component returns a cached logger entry tagged with component=name.
func Component(name string) *logrus.Entry {
	mu.Lock()
	defer mu.Unlock()
	if e, ok := components[name]; ok {
		return e
	}
	e := logger.WithField("component", name)
	components[name] = e
	return e
}

// Printf-style helpers for call sites that don't carry a component tag.

func Debug(format string, args ...interface{}) { logger.Debugf(format, args...) }

func Info(format string, args ...interface{}) { logger.Infof(format, args...) }

func Warn(format string, args ...interface{}) { logger.Warnf(format, args...) }

func Error(format string, args ...interface{}) { logger.Errorf(format, args...) }
