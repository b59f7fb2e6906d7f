package logging

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	EnvLogLevel   = "DAO_LOG_LEVEL"
	EnvLogConsole = "DAO_LOG_CONSOLE"
)

type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

var configureOnce sync.Once

func ConfigureRuntime() {
	Configure(ProfileRuntime)
}

func ConfigureTests() {
	Configure(ProfileTest)
}

// Configure sets the process-wide logger once; later calls are no-ops.
func Configure(profile Profile) {
	configureOnce.Do(func() {
		zerolog.TimeFieldFormat = time.RFC3339
		zerolog.SetGlobalLevel(levelFor(profile, os.Getenv(EnvLogLevel)))

		if profile == ProfileTest || os.Getenv(EnvLogConsole) != "" {
			log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true}).With().Timestamp().Logger()
			return
		}
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	})
}

// levelFor is the profile's default level unless raw names a valid one.
// DAO_LOG_LEVEL is read here and nowhere else.
func levelFor(profile Profile, raw string) zerolog.Level {
	if lvl, ok := ParseLevel(raw); ok {
		return lvl
	}
	if profile == ProfileTest {
		return zerolog.WarnLevel
	}
	return zerolog.InfoLevel
}

// Component returns the process logger tagged with a component name.
func Component(name string) zerolog.Logger {
	return log.Logger.With().Str("component", name).Logger()
}

func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}
