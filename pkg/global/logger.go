package global

import (
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// NewLogger builds the process logger. Production emits JSON, everything else text.
func NewLogger(level, env string) *logrus.Logger {
	return newLogger(os.Stdout, level, env)
}

func newLogger(out io.Writer, level, env string) *logrus.Logger {
	log := logrus.New()
	log.Out = out

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.Level = lvl

	if env == "production" {
		log.Formatter = &logrus.JSONFormatter{
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "severity",
				logrus.FieldKeyMsg:   "message",
			},
			TimestampFormat: time.RFC3339Nano,
		}
	} else {
		log.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	}
	return log
}

// DiscardLogger is used where callers do not supply one.
func DiscardLogger() *logrus.Logger {
	log := logrus.New()
	log.Out = io.Discard
	return log
}
