package fleet

import (
	"context"
	"errors"
	"fmt"

	"github.com/srg/bleherd/internal/controller"
	"github.com/srg/bleherd/internal/gattdb"
	"github.com/srg/bleherd/internal/permitjoin"
	"github.com/srg/bleherd/internal/plugin"
	"github.com/srg/bleherd/internal/registry"
	"github.com/srg/bleherd/internal/store"
)

// Kind classifies a fleet error.
type Kind string

const (
	KindArgument      Kind = "argument"
	KindAlreadyExists Kind = "already_exists"
	KindConflict      Kind = "conflict"
	KindNotSupported  Kind = "not_supported"
	KindController    Kind = "controller"
	KindStore         Kind = "store"
	KindTimeout       Kind = "timeout"
)

// Error is any fleet-level failure.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch {
	case e.Op == "" && e.Err == nil:
		return string(e.Kind)
	case e.Err == nil:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	case e.Op == "":
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is allows errors.Is to compare Error values by Kind
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Predefined sentinel errors for matching with errors.Is
var (
	ErrArgument      = &Error{Kind: KindArgument}
	ErrAlreadyExists = &Error{Kind: KindAlreadyExists}
	ErrConflict      = &Error{Kind: KindConflict}
	ErrNotSupported  = &Error{Kind: KindNotSupported}
	ErrController    = &Error{Kind: KindController}
	ErrStore         = &Error{Kind: KindStore}
	ErrTimeout       = &Error{Kind: KindTimeout}
)

var (
	errAlreadyStarted     = errors.New("network already started")
	errReadyTimeout       = errors.New("controller never reported ready")
	errHostingUnsupported = errors.New("radio role cannot host local services")
)

func newErr(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func argErrf(op, format string, args ...any) *Error {
	return &Error{Kind: KindArgument, Op: op, Err: fmt.Errorf(format, args...)}
}

// wrapErr maps well-known failures from the leaf packages onto error kinds.
// Unrecognized errors count as controller failures.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return err
	}

	kind := KindController
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.Is(err, gattdb.ErrConflict):
		kind = KindConflict
	case errors.Is(err, gattdb.ErrInvalidKind),
		errors.Is(err, permitjoin.ErrNegativeDuration),
		errors.Is(err, plugin.ErrNoClassifier),
		errors.Is(err, controller.ErrInvalidService):
		kind = KindArgument
	case errors.Is(err, registry.ErrAlreadyExists),
		errors.Is(err, controller.ErrServiceExists):
		kind = KindAlreadyExists
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, registry.ErrNotRegistered):
		kind = KindStore
	}
	return newErr(kind, op, err)
}
