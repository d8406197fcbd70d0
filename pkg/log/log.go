package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the package-wide logger; Init replaces it before first use.
var Logger zerolog.Logger

// Level mirrors the subset of zerolog levels the engine configures
// externally.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Config controls Init.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init builds the package-wide logger per cfg. A zero-value Config logs
// info-and-above, console-formatted, to stderr.
func Init(cfg Config) {
	lvl := zerolog.InfoLevel
	switch cfg.Level {
	case LevelDebug:
		lvl = zerolog.DebugLevel
	case LevelWarn:
		lvl = zerolog.WarnLevel
	case LevelError:
		lvl = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(lvl)

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(out).With().Timestamp().Logger()
		return
	}
	Logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
}

func init() {
	Init(Config{})
}

// WithComponent returns a child logger tagged with the originating package.
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithRole returns a child logger tagged with a role name.
func WithRole(role string) zerolog.Logger {
	return Logger.With().Str("role", role).Logger()
}

// WithContainer returns a child logger tagged with a container id.
func WithContainer(containerID string) zerolog.Logger {
	return Logger.With().Str("container_id", containerID).Logger()
}

func Info(msg string)           { Logger.Info().Msg(msg) }
func Debug(msg string)          { Logger.Debug().Msg(msg) }
func Warn(msg string)           { Logger.Warn().Msg(msg) }
func Error(err error, msg string) { Logger.Error().Err(err).Msg(msg) }

func Errorf(err error, format string, args ...interface{}) {
	Logger.Error().Err(err).Msgf(format, args...)
}

func Fatal(msg string) { Logger.Fatal().Msg(msg) }
