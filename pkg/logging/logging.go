// Package logging provides the configurable root logger shared by all
// components.
//
// The root logger uses github.com/rs/zerolog with a console writer.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

var logger zerolog.Logger

func init() {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	logger = zerolog.New(output).With().Timestamp().Logger()

	if strings.HasSuffix(os.Args[0], ".test") {
		logger = zerolog.Nop()
	}
}

// Logger returns the root logger.
func Logger() zerolog.Logger {
	return logger
}

// Set overrides the root logger.
func Set(l zerolog.Logger) {
	logger = l
}

// SetVerbose lowers the level filter to debug output.
func SetVerbose(verbose bool) {
	if verbose {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}
}

// WithRunLog duplicates the root logger output into the run log file and
// returns the combined logger.
func WithRunLog(file io.Writer) zerolog.Logger {
	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	runLog := zerolog.ConsoleWriter{Out: file, TimeFormat: "15:04:05", NoColor: true}
	logger = zerolog.New(zerolog.MultiLevelWriter(console, runLog)).With().Timestamp().Logger()
	return logger
}
