package log

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	DebugLevel = iota
	InfoLevel
	ErrorLevel
	Disabled
)

var (
	mu     sync.RWMutex
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	logger = newLogger(level)
	sugar  = logger.Sugar()
)

func newLogger(lvl zap.AtomicLevel) *zap.Logger {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = lvl
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stdout"}
	cfg.DisableStacktrace = true
	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return zap.NewNop()
	}
	return l
}

func current() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

func Debug(args ...interface{})                 { current().Debug(args...) }
func Debugf(format string, args ...interface{}) { current().Debugf(format, args...) }
func Info(args ...interface{})                  { current().Info(args...) }
func Infof(format string, args ...interface{})  { current().Infof(format, args...) }
func Error(args ...interface{})                 { current().Error(args...) }
func Errorf(format string, args ...interface{}) { current().Errorf(format, args...) }

// Logger returns the structured logger behind the package functions.
func Logger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger.WithOptions(zap.AddCallerSkip(-1))
}

// SetLogger replaces the backing logger. The level set through SetLevel
// only applies to loggers built by this package.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	logger = l.WithOptions(zap.AddCallerSkip(1))
	sugar = logger.Sugar()
}

func SetLevel(lvl int) {
	if lvl > Disabled || lvl < DebugLevel {
		Error("invalid log level, falling back to info")
		lvl = InfoLevel
	}
	switch lvl {
	case DebugLevel:
		level.SetLevel(zapcore.DebugLevel)
	case InfoLevel:
		level.SetLevel(zapcore.InfoLevel)
	case ErrorLevel:
		level.SetLevel(zapcore.ErrorLevel)
	case Disabled:
		level.SetLevel(zapcore.FatalLevel + 1)
	}
}

// ParseLevel maps a configuration string onto a level constant.
func ParseLevel(s string) (int, bool) {
	switch s {
	case "debug":
		return DebugLevel, true
	case "", "info":
		return InfoLevel, true
	case "error":
		return ErrorLevel, true
	case "disabled", "off":
		return Disabled, true
	}
	return InfoLevel, false
}

// Enabled reports whether messages at lvl are currently emitted.
func Enabled(lvl int) bool {
	switch lvl {
	case DebugLevel:
		return level.Enabled(zapcore.DebugLevel)
	case InfoLevel:
		return level.Enabled(zapcore.InfoLevel)
	case ErrorLevel:
		return level.Enabled(zapcore.ErrorLevel)
	}
	return false
}
