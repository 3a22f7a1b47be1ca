// Package fault annotates fatal hardware errors with their call site and
// implements the halt routine that ends a demo.
package fault

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"

	"go.uber.org/zap"
)

var (
	logger     *zap.Logger
	loggerOnce sync.Once
)

// Logger returns the fault package's logger instance.
// It uses a no-op logger by default.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			logger = zap.NewNop()
		}
	})
	return logger
}

// SetLogger configures the fault package's logger.
func SetLogger(l *zap.Logger) {
	logger = l
}

// Error is a fatal error tagged with the source location that observed it.
type Error struct {
	Err  error
	File string
	Line int
	Func string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s:%d: %v", filepath.Base(e.File), e.Line, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// At records the caller's location on err. A nil err yields nil and an error
// that already carries a location is returned unchanged.
func At(err error) error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return err
	}
	e := &Error{Err: err}
	if pc, file, line, ok := runtime.Caller(1); ok {
		e.File = file
		e.Line = line
		if fn := runtime.FuncForPC(pc); fn != nil {
			e.Func = fn.Name()
		}
	}
	return e
}

// Site returns the call site recorded on err, if any.
func Site(err error) (file string, line int, ok bool) {
	var e *Error
	if !errors.As(err, &e) {
		return "", 0, false
	}
	return e.File, e.Line, true
}

// Halt logs err once and blocks until ctx is done, like a core parked in an
// infinite loop with interrupts masked. It returns err.
func Halt(ctx context.Context, err error) error {
	fields := []zap.Field{zap.Error(err)}
	var e *Error
	if errors.As(err, &e) {
		fields = append(fields,
			zap.String("file", filepath.Base(e.File)),
			zap.Int("line", e.Line),
			zap.String("func", e.Func),
		)
	}
	Logger().Error("fatal hardware error, halting", fields...)
	<-ctx.Done()
	return err
}
