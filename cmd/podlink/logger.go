package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/pion/logging"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// parseLevel maps a log level name to a zap level. "trace" is debug plus
// the trace output of the pion loggers. The empty string means "warn".
func parseLevel(s string) (zapcore.Level, bool, error) {
	switch strings.ToLower(s) {
	case "":
		return zapcore.WarnLevel, false, nil
	case "trace":
		return zapcore.DebugLevel, true, nil
	}
	level, err := zapcore.ParseLevel(s)
	if err != nil {
		return 0, false, fmt.Errorf("invalid log level %q", s)
	}
	return level, false, nil
}

// newZapLogger builds a console logger writing to w.
func newZapLogger(w io.Writer, level zapcore.Level) *zap.Logger {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:     "ts",
		LevelKey:    "level",
		NameKey:     "scope",
		MessageKey:  "msg",
		EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
		EncodeName:  zapcore.FullNameEncoder,
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(w),
		level,
	)
	return zap.New(core)
}

// zapLoggerFactory adapts zap to logging.LoggerFactory so library scopes
// end up as named zap loggers.
type zapLoggerFactory struct {
	base  *zap.Logger
	trace bool
}

func newLoggerFactory(w io.Writer, levelName string) (*zapLoggerFactory, error) {
	level, trace, err := parseLevel(levelName)
	if err != nil {
		return nil, err
	}
	return &zapLoggerFactory{base: newZapLogger(w, level), trace: trace}, nil
}

// NewLogger implements logging.LoggerFactory.
func (f *zapLoggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return &zapLeveledLogger{s: f.base.Named(scope).Sugar(), trace: f.trace}
}

// Sync flushes buffered output.
func (f *zapLoggerFactory) Sync() error {
	return f.base.Sync()
}

type zapLeveledLogger struct {
	s     *zap.SugaredLogger
	trace bool
}

func (l *zapLeveledLogger) Trace(msg string) {
	if l.trace {
		l.s.Debug(msg)
	}
}

func (l *zapLeveledLogger) Tracef(format string, args ...interface{}) {
	if l.trace {
		l.s.Debugf(format, args...)
	}
}

func (l *zapLeveledLogger) Debug(msg string)                          { l.s.Debug(msg) }
func (l *zapLeveledLogger) Debugf(format string, args ...interface{}) { l.s.Debugf(format, args...) }
func (l *zapLeveledLogger) Info(msg string)                           { l.s.Info(msg) }
func (l *zapLeveledLogger) Infof(format string, args ...interface{})  { l.s.Infof(format, args...) }
func (l *zapLeveledLogger) Warn(msg string)                           { l.s.Warn(msg) }
func (l *zapLeveledLogger) Warnf(format string, args ...interface{})  { l.s.Warnf(format, args...) }
func (l *zapLeveledLogger) Error(msg string)                          { l.s.Error(msg) }
func (l *zapLeveledLogger) Errorf(format string, args ...interface{}) { l.s.Errorf(format, args...) }

var _ logging.LoggerFactory = (*zapLoggerFactory)(nil)
