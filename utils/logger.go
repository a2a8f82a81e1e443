package utils

import (
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// NewLogger builds the process logger. format is "json" or "text".
func NewLogger(level, format string) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrap(err, "parse log level")
	}

	log := logrus.New()
	log.SetOutput(os.Stdout)
	log.SetLevel(lvl)
	if format == "text" {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	return log, nil
}
