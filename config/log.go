package config

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger returns a logger at the configured level, writing to stderr or
// to a size-rotated log file.
func NewLogger(c Log) (*logrus.Logger, io.Closer, error) {
	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("log level: %v", err)
	}
	log := logrus.New()
	log.SetLevel(level)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if c.File == "" {
		log.SetOutput(os.Stderr)
		return log, nopCloser{}, nil
	}
	lj := &lumberjack.Logger{
		Filename:   c.File,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}
	log.SetOutput(lj)
	return log, lj, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
