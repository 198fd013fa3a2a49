package logging

import (
	"os"

	"go.uber.org/zap/zapcore"
)

// DefaultTimeFormatStr is the default time format string for log appenders.
const DefaultTimeFormatStr = "2006-01-02T15:04:05.000Z0700"

// Appender is an output for log entries. This is a subset of the `zapcore.Core` interface.
type Appender interface {
	// Write submits a structured log entry to the appender for logging.
	Write(zapcore.Entry, []zapcore.Field) error
	// Sync is for signaling that any buffered logs to `Write` should be flushed. E.g: at shutdown.
	Sync() error
}

// ConsoleAppender will create human readable logs in the same format as zap's console encoder.
type ConsoleAppender struct {
	zapcore.Core
}

// NewStdoutAppender creates a new appender that writes to stdout.
func NewStdoutAppender() ConsoleAppender {
	return NewWriterAppender(os.Stdout)
}

// NewWriterAppender creates a new appender that writes to the input writer.
func NewWriterAppender(writer zapcore.WriteSyncer) ConsoleAppender {
	encoder := zapcore.NewConsoleEncoder(NewZapLoggerConfig().EncoderConfig)
	// Level filtering happens in the logger. The appender accepts everything it is handed.
	core := zapcore.NewCore(encoder, writer, zapcore.DebugLevel)
	return ConsoleAppender{core}
}

// Write outputs the log entry through the console encoder.
func (appender ConsoleAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	return appender.Core.Write(entry, fields)
}

// Sync flushes the underlying writer.
func (appender ConsoleAppender) Sync() error {
	return appender.Core.Sync()
}

func callerToString(caller *zapcore.EntryCaller) string {
	return caller.TrimmedPath()
}
