package logger

import (
	"github.com/sirupsen/logrus"
)

// Ctx is the structured context attached to a log entry.
type Ctx logrus.Fields

// Logger is the logging interface handed around the daemon.
type Logger interface {
	Panic(msg string, ctx ...Ctx)
	Fatal(msg string, ctx ...Ctx)
	Error(msg string, ctx ...Ctx)
	Warn(msg string, ctx ...Ctx)
	Info(msg string, ctx ...Ctx)
	Debug(msg string, ctx ...Ctx)
	Trace(msg string, ctx ...Ctx)

	AddContext(ctx Ctx) Logger
}

// targetLogger is the subset of logrus used by the wrapper, so entries and
// full loggers can both serve as targets.
type targetLogger interface {
	Panic(args ...any)
	Fatal(args ...any)
	Error(args ...any)
	Warn(args ...any)
	Info(args ...any)
	Debug(args ...any)
	Trace(args ...any)
	WithFields(fields logrus.Fields) *logrus.Entry
}
