// Package logging builds the zap loggers used by the lab programs and bridges
// them to log/slog, which is what the FTP library accepts.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

// TimeLayout is the timestamp layout used in console lines and log records.
const TimeLayout = "2006-01-02 15:04:05"

// FileName returns the per-run log file name for the server, derived from its
// start time.
func FileName(start time.Time) string {
	return fmt.Sprintf("ftp_server_%s.log", start.Format("20060102_150405"))
}

// FileLogger is a zap logger writing to a timestamped file.
type FileLogger struct {
	*zap.Logger
	Path  string
	close func()
}

// Close flushes and closes the underlying file.
func (l *FileLogger) Close() error {
	err := l.Sync()
	l.close()
	return err
}

// NewFileLogger creates dir if needed and opens a log file named after start.
// When console is non-nil a second, debug-level core mirrors every record to
// it.
func NewFileLogger(dir string, start time.Time, console io.Writer) (*FileLogger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	path := filepath.Join(dir, FileName(start))

	sink, closeFn, err := zap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig()), sink, zapcore.InfoLevel),
	}
	if console != nil {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderConfig()),
			zapcore.Lock(zapcore.AddSync(console)),
			zapcore.DebugLevel,
		))
	}

	return &FileLogger{
		Logger: zap.New(zapcore.NewTee(cores...)),
		Path:   path,
		close:  closeFn,
	}, nil
}

// NewConsole returns a debug logger writing to w, or a no-op logger when
// verbose is false.
func NewConsole(w io.Writer, verbose bool) *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig()),
		zapcore.Lock(zapcore.AddSync(w)),
		zapcore.DebugLevel,
	)
	return zap.New(core)
}

// Slog exposes a zap logger as a *slog.Logger.
func Slog(logger *zap.Logger, name string) *slog.Logger {
	return slog.New(zapslog.NewHandler(logger.Core(), zapslog.WithName(name)))
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout(TimeLayout)
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.CallerKey = ""
	cfg.ConsoleSeparator = " - "
	return cfg
}
