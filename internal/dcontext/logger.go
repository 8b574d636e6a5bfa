package dcontext

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Logger is the subset of *logrus.Entry the project logs through.
type Logger interface {
	Debug(args ...any)
	Debugf(format string, args ...any)
	Info(args ...any)
	Infof(format string, args ...any)
	Warn(args ...any)
	Warnf(format string, args ...any)
	Error(args ...any)
	Errorf(format string, args ...any)

	WithError(err error) *logrus.Entry
	WithField(key string, value any) *logrus.Entry
}

var baseLogger atomic.Pointer[logrus.Entry]

func init() {
	baseLogger.Store(logrus.StandardLogger().WithField("go.version", runtime.Version()))
}

type loggerKey struct{}

// WithLogger returns a context carrying logger. Loggers that are not
// logrus entries are ignored.
func WithLogger(ctx context.Context, logger Logger) context.Context {
	entry, ok := logger.(*logrus.Entry)
	if !ok {
		return ctx
	}
	return context.WithValue(ctx, loggerKey{}, entry)
}

// SetDefaultLogger replaces the logger used for contexts without one.
func SetDefaultLogger(logger Logger) {
	if entry, ok := logger.(*logrus.Entry); ok {
		baseLogger.Store(entry)
	}
}

// GetLogger returns the context's logger, or the default one tagged with
// the context's instance id. Each of keys found on ctx is added as a field.
func GetLogger(ctx context.Context, keys ...any) Logger {
	return entry(ctx, keys)
}

// GetLoggerWithField is GetLogger with one extra field.
func GetLoggerWithField(ctx context.Context, key string, value any) Logger {
	return entry(ctx, nil).WithField(key, value)
}

// GetLoggerWithFields is GetLogger with extra fields.
func GetLoggerWithFields(ctx context.Context, fields map[any]any) Logger {
	lf := make(logrus.Fields, len(fields))
	for k, v := range fields {
		lf[fmt.Sprint(k)] = v
	}
	return entry(ctx, nil).WithFields(lf)
}

func entry(ctx context.Context, keys []any) *logrus.Entry {
	logger, ok := ctx.Value(loggerKey{}).(*logrus.Entry)
	if !ok {
		logger = baseLogger.Load()
		if id := ctx.Value("instance.id"); id != nil {
			logger = logger.WithField("instance.id", id)
		}
	}
	if len(keys) == 0 {
		return logger
	}
	fields := make(logrus.Fields, len(keys))
	for _, k := range keys {
		if v := ctx.Value(k); v != nil {
			fields[fmt.Sprint(k)] = v
		}
	}
	return logger.WithFields(fields)
}
