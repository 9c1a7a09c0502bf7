package common

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	logger     *logrus.Entry
	loggerOnce sync.Once
)

// GetLogger returns the process wide logger, tagged with the service name.
func GetLogger() *logrus.Entry {
	loggerOnce.Do(func() {
		l := logrus.New()
		l.SetOutput(os.Stdout)
		l.SetFormatter(&logrus.JSONFormatter{})
		l.SetLevel(logrus.InfoLevel)
		if os.Getenv("UTF_DEBUG") == "true" {
			l.SetLevel(logrus.DebugLevel)
		}
		logger = l.WithField("service", "utf")
	})
	return logger
}
