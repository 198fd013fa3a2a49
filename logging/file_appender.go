package logging

import (
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileAppender writes console formatted entries to a size rotated log file.
type FileAppender struct {
	zapcore.Core
	file *lumberjack.Logger
}

// NewFileAppender creates an appender writing to path. The file rolls over at maxSizeMB and keeps
// maxBackups compressed old files.
func NewFileAppender(path string, maxSizeMB, maxBackups int) *FileAppender {
	file := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		Compress:   true,
	}
	encoderConfig := NewZapLoggerConfig().EncoderConfig
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(file), zapcore.DebugLevel)
	return &FileAppender{Core: core, file: file}
}

// Write outputs the log entry to the file.
func (appender *FileAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	return appender.Core.Write(entry, fields)
}

// Sync flushes the encoder.
func (appender *FileAppender) Sync() error {
	return appender.Core.Sync()
}

// Close flushes and closes the log file.
func (appender *FileAppender) Close() error {
	return multierr.Combine(appender.Sync(), appender.file.Close())
}
