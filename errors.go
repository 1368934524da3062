package mindgraph

import (
	"errors"
	"fmt"

	"github.com/mindflow-ai/mindgraph/graph"
)

// Error kinds categorize errors by their type.
const (
	// KindNotFound represents errors where a node or edge was not found.
	KindNotFound = "not_found"

	// KindValidation represents errors related to payload validation.
	KindValidation = "validation"

	// KindConflict represents errors that violate a graph invariant, such
	// as a duplicate edge or a second root.
	KindConflict = "conflict"

	// KindNetwork represents errors related to backend or channel I/O.
	KindNetwork = "network"

	// KindConfiguration represents errors related to configuration.
	KindConfiguration = "configuration"

	// KindInternal represents internal errors.
	KindInternal = "internal"
)

// Error is a structured error type that wraps underlying errors with
// additional context about the operation that failed and the category
// of error.
//
// Error implements the error interface and supports error unwrapping,
// making it compatible with errors.Is() and errors.As().
type Error struct {
	// Op is the operation that failed (e.g., "Editor.CreateChild").
	Op string

	// Kind categorizes the error (e.g., KindNotFound, KindValidation).
	Kind string

	// Err is the underlying error that caused this error.
	Err error

	// Context provides additional context about the error (optional).
	Context map[string]any
}

// Error implements the error interface, returning a formatted error
// message that includes the operation, kind, and underlying error.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("mindgraph: %s: %s", e.Op, e.Kind)
	}

	if len(e.Context) > 0 {
		return fmt.Sprintf("mindgraph: %s (%s): %v [context: %+v]", e.Op, e.Kind, e.Err, e.Context)
	}

	return fmt.Sprintf("mindgraph: %s (%s): %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error, allowing errors.Is() and
// errors.As() to work correctly with wrapped errors.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements error matching for Error, allowing comparison based on
// the underlying error or the Error itself.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}

	if t, ok := target.(*Error); ok {
		if t.Kind != "" && e.Kind == t.Kind {
			if t.Op == "" || e.Op == t.Op {
				return true
			}
		}
	}

	return errors.Is(e.Err, target)
}

// WithContext returns a new Error with the provided context added.
func (e *Error) WithContext(ctx map[string]any) *Error {
	newErr := *e
	if newErr.Context == nil {
		newErr.Context = make(map[string]any)
	}
	for k, v := range ctx {
		newErr.Context[k] = v
	}
	return &newErr
}

// NewNotFoundError creates a new Error with KindNotFound.
func NewNotFoundError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindNotFound, Err: err}
}

// NewValidationError creates a new Error with KindValidation.
func NewValidationError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindValidation, Err: err}
}

// NewConflictError creates a new Error with KindConflict.
func NewConflictError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindConflict, Err: err}
}

// NewNetworkError creates a new Error with KindNetwork.
func NewNetworkError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindNetwork, Err: err}
}

// NewConfigurationError creates a new Error with KindConfiguration.
func NewConfigurationError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindConfiguration, Err: err}
}

// NewInternalError creates a new Error with KindInternal.
func NewInternalError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindInternal, Err: err}
}

// wrapGraphError classifies a graph-layer error into the matching kind,
// so callers can switch on Kind without importing the graph package's
// sentinel list.
func wrapGraphError(op string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, graph.ErrNotFound):
		return NewNotFoundError(op, err)
	case errors.Is(err, graph.ErrInvalidPayload), errors.Is(err, graph.ErrNodeTypeNotRegistered):
		return NewValidationError(op, err)
	case errors.Is(err, graph.ErrDuplicateEdge), errors.Is(err, graph.ErrDanglingReference), errors.Is(err, graph.ErrRootConflict):
		return NewConflictError(op, err)
	default:
		return NewInternalError(op, err)
	}
}
