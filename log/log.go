/*
Package log is the leveled, structured logging handle the rest of the
relay calls through package-level functions (Debugf, Infof, Warnf,
Errorf) plus SetLevel, matching the call-site shape the rest of the
corpus uses. It is backed by github.com/rs/zerolog rather than a
hand-rolled formatter/handler pair.
*/
package log

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

const (
	DEBUG = iota
	INFO
	WARNING
	ERROR
	CRITICAL
)

var levelNames = map[int]string{
	DEBUG:    "debug",
	INFO:     "info",
	WARNING:  "warn",
	ERROR:    "error",
	CRITICAL: "fatal",
}

func GetLevelName(lev int) string {
	if name, ok := levelNames[lev]; ok {
		return name
	}
	return "unknown"
}

var zerologLevels = map[int]zerolog.Level{
	DEBUG:    zerolog.DebugLevel,
	INFO:     zerolog.InfoLevel,
	WARNING:  zerolog.WarnLevel,
	ERROR:    zerolog.ErrorLevel,
	CRITICAL: zerolog.FatalLevel,
}

var base zerolog.Logger

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
	base = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// SetLevel sets the minimum level emitted by the package-level logging
// functions.
func SetLevel(lev int) {
	if zl, ok := zerologLevels[lev]; ok {
		zerolog.SetGlobalLevel(zl)
	}
}

// SetFormat switches the sink between human-readable console output
// ("console") and structured JSON (anything else, including "" and
// "@json"), matching the $lev*/"@json" distinction the old formatter
// made.
func SetFormat(format string) {
	if format == "console" {
		base = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().Timestamp().Logger()
	} else {
		base = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
}

// Logger is a named child of the package logger, carrying a "mod" field
// the way the old Message.Mod field tagged each line. It resolves the
// current package-level sink on every call rather than snapshotting one
// at construction time, so a package-level `var logger = log.GetLogger(...)`
// (the shape every package in this tree uses) still honors a later
// SetFormat/SetLevel call made during startup, after such vars have
// already run.
type Logger struct {
	mod string
}

// GetLogger returns a Logger tagged with the given module name.
func GetLogger(mod string) *Logger {
	return &Logger{mod: mod}
}

// GetLoggerDefault returns the untagged package logger.
func GetLoggerDefault() *Logger {
	return &Logger{}
}

func (l *Logger) event(ev *zerolog.Event) *zerolog.Event {
	if l.mod != "" {
		return ev.Str("mod", l.mod)
	}
	return ev
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.event(base.Debug()).Msgf(format, args...)
}
func (l *Logger) Infof(format string, args ...interface{}) {
	l.event(base.Info()).Msgf(format, args...)
}
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.event(base.Warn()).Msgf(format, args...)
}
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.event(base.Error()).Msgf(format, args...)
}

func Debugf(format string, args ...interface{}) { base.Debug().Msgf(format, args...) }
func Infof(format string, args ...interface{})  { base.Info().Msgf(format, args...) }
func Warnf(format string, args ...interface{})  { base.Warn().Msgf(format, args...) }
func Errorf(format string, args ...interface{}) { base.Error().Msgf(format, args...) }
