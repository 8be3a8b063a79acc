// Package tgerr defines the fatal error kinds the tensor-graph core can
// raise. Every kind is a distinct sentinel checkable with errors.Is, so a
// caller can distinguish "shape mismatch" from "cycle in graph" without
// parsing a message.
package tgerr

import "fmt"

// Kind identifies the category of a core failure.
type Kind int

const (
	ShapeMismatch Kind = iota
	InvalidPermute
	InvalidAxis
	RuntimeMismatch
	CycleInGraph
	UseAfterMaterialize
	DoubleFreeOrOverFree
	UnallocatedTensor
)

func (k Kind) String() string {
	switch k {
	case ShapeMismatch:
		return "ShapeMismatch"
	case InvalidPermute:
		return "InvalidPermute"
	case InvalidAxis:
		return "InvalidAxis"
	case RuntimeMismatch:
		return "RuntimeMismatch"
	case CycleInGraph:
		return "CycleInGraph"
	case UseAfterMaterialize:
		return "UseAfterMaterialize"
	case DoubleFreeOrOverFree:
		return "DoubleFreeOrOverFree"
	case UnallocatedTensor:
		return "UnallocatedTensor"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is a fatal, typed failure raised by the core. It wraps an
// optional underlying cause so errors.Is/errors.As chains still work.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is(err, tgerr.New(kind, "")) match on Kind alone,
// independent of Msg/Err, so callers can use a bare sentinel per kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New builds an *Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error of the given kind around an underlying cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Sentinel returns a bare value of the given kind, suitable for use as
// the target of errors.Is.
func Sentinel(kind Kind) error {
	return &Error{Kind: kind}
}
