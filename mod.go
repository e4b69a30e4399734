// Package statedb defines the global elements of the state database, like the
// logger and the list of metric collectors.
package statedb

import (
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// EnvLogLevel is the name of the environment variable to change the logging
// level.
const EnvLogLevel = "LLVL"

const defaultLevel = zerolog.InfoLevel

var logout = zerolog.ConsoleWriter{
	Out:        os.Stderr,
	TimeFormat: time.RFC3339,
}

// Logger is a globally available logger instance. By default, it only prints
// info level logs and above. It can be changed by setting the LLVL environment
// variable to one of the zerolog level names.
var Logger = zerolog.New(logout).Level(ParseLogLevel(os.Getenv(EnvLogLevel))).
	With().Timestamp().Logger().
	With().Caller().Logger()

// PromCollectors exposes the Prometheus collectors created by the packages of
// the module. They are registered by the command that serves the metrics.
var PromCollectors []prometheus.Collector

// ParseLogLevel returns the zerolog level of the given name, or the default
// level if the name is empty or unknown.
func ParseLogLevel(name string) zerolog.Level {
	if name == "" {
		return defaultLevel
	}

	lvl, err := zerolog.ParseLevel(name)
	if err != nil {
		return defaultLevel
	}

	return lvl
}
