package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New creates the pipeline logger. Verbose enables debug-level output with
// timestamps; the default level keeps the console report readable on large
// ingests.
func New(verbose bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetLevel(logrus.InfoLevel)
		logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	}
	return logger
}

// NewSilent creates a logger that discards everything. Used by tests.
func NewSilent() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
