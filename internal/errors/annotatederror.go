// Package errors extends the standard library errors with slog annotations and the source location
// where the error was wrapped.
//
// Import it instead of the standard library package; the common helpers are re-exported.
package errors

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"strconv"
)

//nolint:gochecknoglobals // re-exports of the standard library.
var (
	Is   = stderrors.Is
	Join = stderrors.Join
	New  = stderrors.New
)

// annotatedError carries a message prefix, slog attributes and the call site of Wrap.
type annotatedError struct {
	err    error
	msg    string
	attrs  []slog.Attr
	source string
}

func (e *annotatedError) Error() string {
	if e.err == nil {
		return e.msg
	}
	return e.msg + ": " + e.err.Error()
}

func (e *annotatedError) Unwrap() error {
	return e.err
}

// NewSentinel creates an error meant to be compared with Is. Sentinels carry no source location.
func NewSentinel(msg string) error {
	return stderrors.New(msg)
}

// Wrap annotates err with msg and optional slog attributes and records the caller's location.
func Wrap(err error, msg string, attrs ...slog.Attr) error {
	return &annotatedError{
		err:    err,
		msg:    msg,
		attrs:  attrs,
		source: callerSource(2), //nolint:mnd // skip callerSource and Wrap.
	}
}

// DecoratePanic converts a recovered panic value into an annotated error. It returns nil for a nil value.
func DecoratePanic(recovered any) error {
	if recovered == nil {
		return nil
	}
	var err error
	if e, ok := recovered.(error); ok {
		err = fmt.Errorf("panic: %w", e)
	} else {
		err = fmt.Errorf("panic: %v", recovered)
	}
	return &annotatedError{
		err:    nil,
		msg:    err.Error(),
		attrs:  nil,
		source: callerSource(4), //nolint:mnd // skip runtime panic frames and the deferred function.
	}
}

// SlogError returns an "error" attribute group holding the message, the annotations collected through
// the whole chain and the innermost wrap location.
func SlogError(err error) slog.Attr {
	if err == nil {
		return slog.Group("error", slog.String("message", "<nil>"))
	}

	var (
		annotations []any
		source      string
	)
	walk(err, func(ae *annotatedError) {
		for _, a := range ae.attrs {
			annotations = append(annotations, a)
		}
		source = ae.source
	})

	args := []any{slog.String("message", err.Error())}
	if len(annotations) > 0 {
		args = append(args, slog.Group("annotations", annotations...))
	}
	if source != "" {
		args = append(args, slog.String("source", source))
	}
	return slog.Group("error", args...)
}

// walk visits every annotatedError in the chain, outermost first, following joined errors too.
func walk(err error, visit func(*annotatedError)) {
	if err == nil {
		return
	}
	if ae, ok := err.(*annotatedError); ok { //nolint:errorlint // we traverse the chain manually.
		visit(ae)
	}
	switch x := err.(type) { //nolint:errorlint // we traverse the chain manually.
	case interface{ Unwrap() []error }:
		for _, e := range x.Unwrap() {
			walk(e, visit)
		}
	case interface{ Unwrap() error }:
		walk(x.Unwrap(), visit)
	}
}

func callerSource(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return ""
	}
	return filepath.Base(file) + ":" + strconv.Itoa(line)
}
