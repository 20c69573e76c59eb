package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var log *zap.Logger

// Config 日志配置
type Config struct {
	Level      string `yaml:"level"`       // debug, info, warn, error
	Format     string `yaml:"format"`      // console, json
	File       string `yaml:"file"`        // optional log file, rotated by size
	MaxSizeMB  int    `yaml:"max_size_mb"` // rotate threshold, default 100
	MaxBackups int    `yaml:"max_backups"` // rotated files to keep
}

// Init configures the global logger. Safe to call again to reconfigure.
func Init(cfg Config) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var enc zapcore.Encoder
	if cfg.Format == "json" {
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	sink := zapcore.AddSync(os.Stdout)
	if cfg.File != "" {
		maxSize := cfg.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 100
		}
		fileSink := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    maxSize,
			MaxBackups: cfg.MaxBackups,
		})
		sink = zapcore.NewMultiWriteSyncer(sink, fileSink)
	}

	log = zap.New(zapcore.NewCore(enc, sink, level))
}

// L returns the global logger, initializing a default one if needed.
func L() *zap.Logger {
	if log == nil {
		Init(Config{Level: "info"})
	}
	return log
}

// S returns the global sugared logger.
func S() *zap.SugaredLogger {
	return L().Sugar()
}

// With returns a sugared logger tagged with a component name.
func With(component string) *zap.SugaredLogger {
	return S().With("component", component)
}

// Sync flushes buffered log entries. Call before exit.
func Sync() {
	if log != nil {
		_ = log.Sync()
	}
}
