package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds the process logger. Production emits JSON.
func New(level string, production bool) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	if production {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		l.WithError(err).Warn("invalid LOG_LEVEL, using info")
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	return l
}
