package log

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var _ Log = (*Logger)(nil)

// Config selects the encoder and threshold of a Logger.
type Config struct {
	Level    string `koanf:"level" yaml:"level"`
	Encoding string `koanf:"encoding" yaml:"encoding" validate:"omitempty,oneof=json console"`
	Sampling bool   `koanf:"sampling" yaml:"sampling"`
}

// Logger is the zap backed Log.
type Logger struct {
	zapLogger *zap.Logger
	zapLevel  zap.AtomicLevel
}

var zapLevels = [...]zapcore.Level{
	LevelDebug: zap.DebugLevel,
	LevelInfo:  zap.InfoLevel,
	LevelWarn:  zap.WarnLevel,
	LevelError: zap.ErrorLevel,
}

func (l Level) zap() zapcore.Level {
	if int(l) < len(zapLevels) {
		return zapLevels[l]
	}
	// Above every level zap emits.
	return zapcore.FatalLevel + 1
}

// NewWithConfig builds a stderr logger. Encoding is "json" (default) or "console".
func NewWithConfig(cfg Config) (*Logger, error) {
	level, ok := ParseLevel(cfg.Level)
	if !ok {
		return nil, fmt.Errorf("unknown log level %q", cfg.Level)
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(level.zap())
	config.DisableCaller = true
	config.Sampling = nil
	switch cfg.Encoding {
	case "", "json":
		config.Encoding = "json"
	case "console":
		config.Encoding = "console"
		config.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	default:
		return nil, fmt.Errorf("unknown log encoding %q", cfg.Encoding)
	}
	if cfg.Sampling {
		config.Sampling = &zap.SamplingConfig{Initial: 100, Thereafter: 100}
	}

	zapLogger, err := config.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{zapLogger: zapLogger, zapLevel: config.Level}, nil
}

// Wrap adapts an existing zap logger, e.g. one produced by zaptest.
func Wrap(z *zap.Logger) *Logger {
	return &Logger{zapLogger: z, zapLevel: zap.NewAtomicLevelAt(zap.DebugLevel)}
}

func NewNop() *Logger {
	return Wrap(zap.NewNop())
}

// Provide is the injector entry point for a configured logger.
func Provide(cfg Config) (*Logger, error) {
	return NewWithConfig(cfg)
}

func (l *Logger) Log(level Level, msg string, fields ...Field) {
	if int(level) >= len(zapLevels) || !l.zapLevel.Enabled(level.zap()) {
		return
	}
	l.zapLogger.Log(level.zap(), msg, zapFields(fields)...)
}

func (l *Logger) Debug(msg string, fields ...Field) { l.Log(LevelDebug, msg, fields...) }
func (l *Logger) Info(msg string, fields ...Field)  { l.Log(LevelInfo, msg, fields...) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.Log(LevelWarn, msg, fields...) }
func (l *Logger) Error(msg string, fields ...Field) { l.Log(LevelError, msg, fields...) }

func (l *Logger) With(fields ...Field) Log {
	return &Logger{zapLogger: l.zapLogger.With(zapFields(fields)...), zapLevel: l.zapLevel}
}

func (l *Logger) Named(name string) Log {
	return &Logger{zapLogger: l.zapLogger.Named(name), zapLevel: l.zapLevel}
}

func (l *Logger) SetLevel(level Level) {
	l.zapLevel.SetLevel(level.zap())
}

func (l *Logger) GetLevel() Level {
	for level, z := range zapLevels {
		if z == l.zapLevel.Level() {
			return Level(level)
		}
	}
	return LevelSilent
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.zapLogger.Sync()
}

func zapFields(fields []Field) []zap.Field {
	out := make([]zap.Field, len(fields))
	for i, f := range fields {
		out[i] = f.zap()
	}
	return out
}

func (f Field) zap() zap.Field {
	switch f.Type {
	case BoolType:
		return zap.Bool(f.Key, f.Value.(bool))
	case DurationType:
		return zap.Duration(f.Key, f.Value.(time.Duration))
	case Float64Type:
		return zap.Float64(f.Key, f.Value.(float64))
	case IntType:
		return zap.Int(f.Key, f.Value.(int))
	case StringType:
		return zap.String(f.Key, f.Value.(string))
	case ErrorType:
		return zap.NamedError(f.Key, f.Value.(error))
	case StringerType:
		return zap.Stringer(f.Key, f.Value.(fmt.Stringer))
	default:
		return zap.Any(f.Key, f.Value)
	}
}
