// Package logging configures the logrus logger used for diagnostics.
// Diagnostics go to stderr so stdout stays clean for JSON output.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	discardOnce sync.Once
	discard     *logrus.Logger
)

// New returns a logger writing text lines to w at the named level. An unknown
// level falls back to info.
func New(w io.Writer, level string) *logrus.Logger {
	if w == nil {
		w = os.Stderr
	}
	logger := logrus.New()
	logger.Out = w
	logger.SetFormatter(&logrus.TextFormatter{
		DisableColors: true,
		FullTimestamp: true,
		PadLevelText:  true,
	})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}

// FileWriter returns a size-rotated log file. The caller closes it.
func FileWriter(path string) io.WriteCloser {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}
}

// Discard returns a shared logger that drops everything. Packages use it when
// the caller did not supply a logger.
func Discard() *logrus.Logger {
	discardOnce.Do(func() {
		discard = logrus.New()
		discard.Out = io.Discard
		discard.SetLevel(logrus.PanicLevel)
	})
	return discard
}
