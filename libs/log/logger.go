package log

import (
	"fmt"
	"io"

	kitlog "github.com/go-kit/log"
	kitlevel "github.com/go-kit/log/level"
)

const (
	msgKey   = "_msg" // "_" prefixed to avoid collisions
	levelKey = "level"
)

// Logger is what any logger used by this module must implement.
type Logger interface {
	Debug(msg string, keyvals ...interface{})
	Info(msg string, keyvals ...interface{})
	Error(msg string, keyvals ...interface{})

	With(keyvals ...interface{}) Logger
}

type logger struct {
	srcLogger kitlog.Logger
}

// Interface assertions
var _ Logger = (*logger)(nil)

// NewLogger returns a logger that encodes msg and keyvals to the Writer in
// logfmt using go-kit's log as the underlying logger.
func NewLogger(w io.Writer) Logger {
	return &logger{kitlog.NewSyncLogger(kitlog.NewLogfmtLogger(w))}
}

// Debug logs a message at level Debug.
func (l *logger) Debug(msg string, keyvals ...interface{}) {
	lWithLevel := kitlevel.Debug(l.srcLogger)

	if err := kitlog.With(lWithLevel, msgKey, msg).Log(keyvals...); err != nil {
		errLogger := kitlevel.Error(l.srcLogger)
		kitlog.With(errLogger, msgKey, msg).Log("err", err) //nolint:errcheck // no need to check error again
	}
}

// Info logs a message at level Info.
func (l *logger) Info(msg string, keyvals ...interface{}) {
	lWithLevel := kitlevel.Info(l.srcLogger)

	if err := kitlog.With(lWithLevel, msgKey, msg).Log(keyvals...); err != nil {
		errLogger := kitlevel.Error(l.srcLogger)
		kitlog.With(errLogger, msgKey, msg).Log("err", err) //nolint:errcheck // no need to check error again
	}
}

// Error logs a message at level Error.
func (l *logger) Error(msg string, keyvals ...interface{}) {
	lWithLevel := kitlevel.Error(l.srcLogger)

	lWithMsg := kitlog.With(lWithLevel, msgKey, msg)
	if err := lWithMsg.Log(keyvals...); err != nil {
		lWithMsg.Log("err", err) //nolint:errcheck // no need to check error again
	}
}

// With returns a new contextual logger with keyvals prepended to those passed
// to calls to Info, Debug or Error.
func (l *logger) With(keyvals ...interface{}) Logger {
	return &logger{kitlog.With(l.srcLogger, keyvals...)}
}

// AllowLevel returns an option for the filter logger that permits the given
// level and above. Level must be one of "debug", "info" or "error".
func AllowLevel(lvl string) (kitlevel.Option, error) {
	switch lvl {
	case "debug":
		return kitlevel.AllowDebug(), nil
	case "info":
		return kitlevel.AllowInfo(), nil
	case "error":
		return kitlevel.AllowError(), nil
	default:
		return nil, fmt.Errorf("expected either \"debug\", \"info\" or \"error\" level, given %s", lvl)
	}
}

// NewFilter wraps l and only emits records at the levels allowed by opt.
func NewFilter(l Logger, opt kitlevel.Option) Logger {
	src, ok := l.(*logger)
	if !ok {
		return l
	}
	return &logger{kitlevel.NewFilter(src.srcLogger, opt)}
}
