package logger

// Trace logs a message (with optional context) at the TRACE log level.
func Trace(msg string, ctx ...Ctx) {
	Log.Trace(msg, ctx...)
}

// Debug logs a message (with optional context) at the DEBUG log level.
func Debug(msg string, ctx ...Ctx) {
	Log.Debug(msg, ctx...)
}

// Info logs a message (with optional context) at the INFO log level.
func Info(msg string, ctx ...Ctx) {
	Log.Info(msg, ctx...)
}

// Warn logs a message (with optional context) at the WARNING log level.
func Warn(msg string, ctx ...Ctx) {
	Log.Warn(msg, ctx...)
}

// Error logs a message (with optional context) at the ERROR log level.
func Error(msg string, ctx ...Ctx) {
	Log.Error(msg, ctx...)
}

// AddContext returns a logger target with the given context applied to
// every entry it emits.
func AddContext(ctx Ctx) Logger {
	return Log.AddContext(ctx)
}
