package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"signalwatch/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New creates a zap.Logger writing to stdout and, when configured, to a rotated file.
func New(env string, opts config.LogConfig) (*zap.Logger, error) {
	return build(env, opts, os.Stdout)
}

func build(env string, opts config.LogConfig, stdout io.Writer) (*zap.Logger, error) {
	level := opts.Level
	if level == "" {
		level = "info"
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	// dev always gets the human readable encoder
	encoding := "json"
	if env == "dev" || opts.Format == "console" {
		encoding = "console"
	}

	stdoutCore := zapcore.NewCore(
		newEncoder(encoding),
		zapcore.Lock(zapcore.AddSync(stdout)),
		lvl,
	)
	cores := []zapcore.Core{stdoutCore}

	if opts.OutputFile != "" {
		if err := os.MkdirAll(filepath.Dir(opts.OutputFile), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.OutputFile,
			MaxSize:    orDefault(opts.MaxSizeMB, 10), // MB before rotation
			MaxBackups: orDefault(opts.MaxBackups, 5),
			MaxAge:     orDefault(opts.MaxAgeDays, 7), // days
			Compress:   opts.Compress,
		})

		// files are always JSON so they can be shipped as-is
		cores = append(cores, zapcore.NewCore(newEncoder("json"), fileWriter, lvl))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return logger.With(zap.String("service", "signalwatch"), zap.String("env", env)), nil
}

func newEncoder(format string) zapcore.Encoder {
	if format == "console" {
		return zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	}
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapcore.NewJSONEncoder(cfg)
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
