package logger

import (
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	// Logger is the process-wide logrus instance.
	Logger *logrus.Logger
	once   sync.Once
)

// Init configures the shared logger with full timestamps and the given level.
// Unknown levels fall back to info.
func Init(level string) {
	l := Get()
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		l.Warnf("unknown log level %q, using info", level)
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
}

// Get returns the shared logger, creating it on first use.
func Get() *logrus.Logger {
	once.Do(func() {
		Logger = logrus.New()
		Logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	})
	return Logger
}

// For returns an entry tagged with the component name.
func For(component string) *logrus.Entry {
	return Get().WithField("component", component)
}
