package logging

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a zap logger that keeps the level handle it was built with, so
// the level can change while the server runs.
type Logger struct {
	*zap.Logger
	level zap.AtomicLevel
}

// Config defines logger configuration.
type Config struct {
	Level       string // debug, info, warn, error; empty means info
	Development bool
	Service     string
	Output      io.Writer // defaults to stdout
}

// New builds a logger. Production writes JSON lines with epoch-millisecond
// timestamps; development writes colored console lines with stack traces
// on errors.
func New(cfg Config) (*Logger, error) {
	lvl, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	atom := zap.NewAtomicLevelAt(lvl)
	opts := []zap.Option{zap.AddCaller(), zap.ErrorOutput(zapcore.Lock(os.Stderr))}

	var enc zapcore.Encoder
	if cfg.Development {
		ec := zap.NewDevelopmentEncoderConfig()
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(ec)
		opts = append(opts, zap.Development(), zap.AddStacktrace(zapcore.ErrorLevel))
	} else {
		ec := zap.NewProductionEncoderConfig()
		ec.TimeKey = "timestamp"
		ec.MessageKey = "message"
		ec.EncodeTime = zapcore.EpochMillisTimeEncoder
		ec.EncodeDuration = zapcore.MillisDurationEncoder
		enc = zapcore.NewJSONEncoder(ec)
	}

	core := zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(out)), atom)
	l := zap.New(core, opts...)
	if cfg.Service != "" {
		l = l.With(zap.String("service", cfg.Service))
	}
	return &Logger{Logger: l, level: atom}, nil
}

// For builds the server logger. An unknown level falls back to debug in
// development and info otherwise.
func For(level string, development bool) *Logger {
	cfg := Config{Level: level, Development: development, Service: "sidesnap"}
	if l, err := New(cfg); err == nil {
		return l
	}

	cfg.Level = "info"
	if development {
		cfg.Level = "debug"
	}
	l, _ := New(cfg)
	return l
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop(), level: zap.NewAtomicLevel()}
}

// Level returns the current minimum level.
func (l *Logger) Level() zapcore.Level {
	return l.level.Level()
}

// SetLevel changes the minimum level for this logger and every logger
// derived from it.
func (l *Logger) SetLevel(level string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return err
	}
	l.level.SetLevel(lvl)
	return nil
}

// Named returns a child logger sharing the same level.
func (l *Logger) Named(name string) *Logger {
	return &Logger{Logger: l.Logger.Named(name), level: l.level}
}
