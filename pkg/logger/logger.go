package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	EMPTY   = ""
	DEBUG   = "debug"
	INFO    = "info"
	WARN    = "warn"
	ERROR   = "error"
	JSON    = "json"
	CONSOLE = "console"
	SERVICE = "service"
)

// Logger keeps key/value call sites (log.Info("msg", "k", v)) on top of zap.
type Logger struct {
	base  *zap.Logger
	sugar *zap.SugaredLogger
}

type Config struct {
	Level     string
	Format    string
	Output    io.Writer
	AddSource bool
	Service   string
}

func New(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	if cfg.Format == EMPTY {
		cfg.Format = JSON
	}
	if cfg.Level == EMPTY {
		cfg.Level = INFO
	}

	var level zapcore.Level
	switch cfg.Level {
	case DEBUG:
		level = zapcore.DebugLevel
	case INFO:
		level = zapcore.InfoLevel
	case WARN:
		level = zapcore.WarnLevel
	case ERROR:
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "time"
	encoderCfg.MessageKey = "msg"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if cfg.Format == JSON {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	} else {
		encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(cfg.Output), zap.NewAtomicLevelAt(level))

	opts := []zap.Option{zap.AddCallerSkip(1)}
	if cfg.AddSource {
		opts = append(opts, zap.AddCaller())
	}

	base := zap.New(core, opts...)
	if cfg.Service != EMPTY {
		base = base.With(zap.String(SERVICE, cfg.Service))
	}

	return &Logger{base: base, sugar: base.Sugar()}
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	base := zap.NewNop()
	return &Logger{base: base, sugar: base.Sugar()}
}

func (l *Logger) Debug(msg string, args ...any) {
	l.sugar.Debugw(msg, args...)
}

func (l *Logger) Info(msg string, args ...any) {
	l.sugar.Infow(msg, args...)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.sugar.Warnw(msg, args...)
}

func (l *Logger) Error(msg string, args ...any) {
	l.sugar.Errorw(msg, args...)
}

// Fatal logs a critical error and exits the application with status code 1
// Use this for unrecoverable errors that prevent the application from starting or continuing
func (l *Logger) Fatal(msg string, args ...any) {
	l.sugar.Errorw(msg, args...)
	_ = l.base.Sync()
	os.Exit(1)
}

// With returns a child logger that adds args to every entry.
func (l *Logger) With(args ...any) *Logger {
	sugar := l.sugar.With(args...)
	return &Logger{base: sugar.Desugar(), sugar: sugar}
}

// Zap exposes the underlying logger for libraries that take *zap.Logger.
func (l *Logger) Zap() *zap.Logger {
	return l.base
}

func (l *Logger) Sync() error {
	return l.base.Sync()
}
