// Package errors defines the error taxonomy used across the training stack.
//
// Three kinds of failures are distinguished:
//
//   - Value and dimension errors: invalid caller input, returned as plain
//     errors from constructors and entry points.
//   - Usage errors: precondition violations that indicate a programming bug
//     or corrupted upstream state. Components raise these with Raise (panic);
//     exported entry points convert them back to errors with Recover.
//   - Sentinel errors: comparable causes for errors.Is checks.
//
// All errors carry cockroachdb/errors stack traces, so %+v formatting yields
// the full origin of a failure.
package errors

import (
	"fmt"

	cerrors "github.com/cockroachdb/errors"
)

// Sentinel errors for errors.Is comparisons.
var (
	ErrEmptyData      = cerrors.New("empty data")
	ErrNotImplemented = cerrors.New("not implemented")
	ErrInvalidSplit   = cerrors.New("invalid split")
)

// ValueError reports an invalid input value.
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("catboost: %s: %s", e.Op, e.Message)
}

// NewValueError creates a ValueError for operation op.
func NewValueError(op, message string) error {
	return cerrors.WithStack(&ValueError{Op: op, Message: message})
}

// DimensionError reports a shape mismatch between expected and actual sizes.
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("catboost: %s: dimension mismatch on axis %d: expected %d, got %d",
		e.Op, e.Axis, e.Expected, e.Got)
}

// NewDimensionError creates a DimensionError for operation op.
func NewDimensionError(op string, expected, got, axis int) error {
	return cerrors.WithStack(&DimensionError{Op: op, Expected: expected, Got: got, Axis: axis})
}

// UsageError reports a violated precondition. It is raised by panicking,
// since it signals a bug rather than a recoverable condition.
type UsageError struct {
	Op      string
	Message string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("catboost: %s: usage error: %s", e.Op, e.Message)
}

// NewUsageError creates a UsageError for operation op.
func NewUsageError(op, message string) error {
	return cerrors.WithStack(&UsageError{Op: op, Message: message})
}

// Check panics with a UsageError unless cond holds. It is the assertion
// used inside depth iterations, where a failed precondition means corrupted
// upstream state and no partial result may be exposed.
func Check(cond bool, op, message string) {
	if !cond {
		panic(NewUsageError(op, message))
	}
}

// Checkf is Check with a formatted message.
func Checkf(cond bool, op, format string, args ...any) {
	if !cond {
		panic(NewUsageError(op, fmt.Sprintf(format, args...)))
	}
}

// Recover converts a panic raised through Check back into an error. Use it
// in a defer at exported entry points:
//
//	func (s *StructureSearcher) Fit() (_ ObliviousTreeStructure, err error) {
//		defer errors.Recover(&err, "StructureSearcher.Fit")
//		...
//	}
func Recover(err *error, op string) {
	if r := recover(); r != nil {
		switch v := r.(type) {
		case error:
			*err = cerrors.Wrapf(v, "%s", op)
		default:
			*err = NewUsageError(op, fmt.Sprintf("panic: %v", v))
		}
	}
}

// Wrapf annotates err with a formatted message, preserving the chain.
func Wrapf(err error, format string, args ...any) error {
	return cerrors.Wrapf(err, format, args...)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return cerrors.Is(err, target) }

// As finds the first error in err's chain matching target's type.
func As(err error, target any) bool { return cerrors.As(err, target) }
