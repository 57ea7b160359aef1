package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultName is the logger name written on every line.
const DefaultName = "data_ingestion"

// Options configures the process-wide logger.
type Options struct {
	Name    string
	Level   string // debug, info, warn, error
	File    string // appended to; empty disables the file sink
	Console io.Writer
}

// New builds a logger that writes plain-text lines of the form
// "time - name - LEVEL - message" to the console and to opts.File.
// The returned close func syncs the logger and closes the file.
func New(opts Options) (*zap.Logger, func() error, error) {
	if opts.Name == "" {
		opts.Name = DefaultName
	}
	if opts.Console == nil {
		opts.Console = os.Stdout
	}
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	enc := zapcore.NewConsoleEncoder(encoderConfig(opts.Name))
	cores := []zapcore.Core{
		zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(opts.Console)), level),
	}

	var file *os.File
	if opts.File != "" {
		if dir := filepath.Dir(opts.File); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
			}
		}
		file, err = os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file %s: %w", opts.File, err)
		}
		cores = append(cores, zapcore.NewCore(enc.Clone(), zapcore.Lock(file), level))
	}

	logger := zap.New(zapcore.NewTee(cores...))
	closeFn := func() error {
		_ = logger.Sync()
		if file != nil {
			return file.Close()
		}
		return nil
	}
	return logger, closeFn, nil
}

// ParseLevel maps a level name to a zap level. Empty means debug.
func ParseLevel(s string) (zapcore.Level, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return zapcore.DebugLevel, nil
	}
	level, err := zapcore.ParseLevel(strings.ToLower(s))
	if err != nil {
		return level, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

func encoderConfig(name string) zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:    "time",
		LevelKey:   "level",
		MessageKey: "msg",
		LineEnding: zapcore.DefaultLineEnding,
		EncodeTime: zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05,000"),
		// The console encoder joins everything appended here with
		// ConsoleSeparator, so the name lands between time and level.
		EncodeLevel: func(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(name)
			enc.AppendString(l.CapitalString())
		},
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " - ",
	}
}
