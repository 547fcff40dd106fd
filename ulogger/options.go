package ulogger

import (
	"io"
	"os"
)

// Options configure a Logger at construction time.
type Options struct {
	loggerType string
	logLevel   string
	writer     io.Writer
	skip       int
}

// Option mutates Options.
type Option func(*Options)

func DefaultOptions() *Options {
	return &Options{
		loggerType: "zerolog",
		logLevel:   "INFO",
		writer:     os.Stdout,
		skip:       0,
	}
}

// WithLevel sets the minimum log level (DEBUG, INFO, WARN, ERROR, FATAL).
func WithLevel(level string) Option {
	return func(o *Options) {
		o.logLevel = level
	}
}

// WithLoggerType selects the backend ("zerolog" or "gocore").
func WithLoggerType(loggerType string) Option {
	return func(o *Options) {
		o.loggerType = loggerType
	}
}

// WithWriter directs log output to w.
func WithWriter(w io.Writer) Option {
	return func(o *Options) {
		o.writer = w
	}
}

// WithSkipFrame adjusts the caller frame skip count.
func WithSkipFrame(skip int) Option {
	return func(o *Options) {
		o.skip = skip
	}
}
