package gigavector

import (
	"errors"
	"fmt"

	"github.com/gigavector/gigavector/internal/quantization"
	"github.com/gigavector/gigavector/internal/vstore"
)

// Kind classifies a Database error per §7's taxonomy, letting callers
// branch on failure category without string-matching messages.
type Kind int

const (
	// KindInvalidArgument covers dimension mismatches, out-of-range
	// parameters, and malformed pipeline/filter expressions.
	KindInvalidArgument Kind = iota
	// KindNotFound covers lookups against a row, migration, or index
	// that does not exist.
	KindNotFound
	// KindOutOfMemory covers allocation failures surfaced from the
	// Vector Store or an index during insert or training.
	KindOutOfMemory
	// KindIoError covers failures opening, reading, or writing the
	// on-disk database file, including a short header read, a wrong
	// magic, or an unsupported version on Load.
	KindIoError
	// KindTrainingFailed covers IVF/PQ training that could not
	// converge or was attempted with too few vectors.
	KindTrainingFailed
	// KindCorruption covers a vector-store, index, or full-text payload
	// that fails to read or decode on Load.
	KindCorruption
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindNotFound:
		return "not_found"
	case KindOutOfMemory:
		return "out_of_memory"
	case KindIoError:
		return "io_error"
	case KindTrainingFailed:
		return "training_failed"
	case KindCorruption:
		return "corruption"
	default:
		return "unknown"
	}
}

// Common sentinel errors returned by Database operations.
var (
	ErrDimensionMismatch = errors.New("gigavector: vector dimension mismatch")
	ErrRowNotFound       = errors.New("gigavector: row not found")
	ErrIndexNotTrained   = errors.New("gigavector: index not trained")
	ErrDatabaseClosed    = errors.New("gigavector: database is closed")
	ErrInvalidConfig     = errors.New("gigavector: invalid configuration")
	ErrEmptyQuery        = errors.New("gigavector: empty query vector")
	ErrTooManyPhases     = errors.New("gigavector: pipeline exceeds phase cap")
	ErrInvalidVector     = errors.New("gigavector: vector contains NaN or Inf")
)

// Error wraps a failure with the operation that produced it and its
// Kind, following the teacher's StoreError op-wrapping pattern.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("gigavector: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("gigavector: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return errors.Is(e.Err, target) }

// wrapError wraps err with op and the caller-supplied kind; callers that
// need a kind derived from sentinel errors pass classify(err).
func wrapError(op string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// classify maps this package's sentinel errors and those of the vstore
// and quantization packages onto a Kind, so callers at package
// boundaries don't need to know about internal error types. Any other
// error is classified as KindIoError.
func classify(err error) Kind {
	switch {
	case errors.Is(err, ErrDimensionMismatch), errors.Is(err, ErrEmptyQuery), errors.Is(err, ErrInvalidConfig),
		errors.Is(err, ErrTooManyPhases), errors.Is(err, ErrInvalidVector), errors.Is(err, vstore.ErrDimensionMismatch):
		return KindInvalidArgument
	case errors.Is(err, ErrRowNotFound), errors.Is(err, vstore.ErrRowOutOfRange):
		return KindNotFound
	case errors.Is(err, ErrIndexNotTrained), errors.Is(err, quantization.ErrNotTrained), errors.Is(err, quantization.ErrNotConverged):
		return KindTrainingFailed
	default:
		return KindIoError
	}
}
