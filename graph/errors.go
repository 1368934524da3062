package graph

import "errors"

// Sentinel errors for graph operations.
// These errors can be used with errors.Is() for error checking.
var (
	// ErrNotFound indicates that an operation referenced a node id absent
	// from the store. Surfaced synchronously to the caller, never retried.
	//
	// Example:
	//	node, err := store.Get("missing")
	//	if errors.Is(err, graph.ErrNotFound) {
	//	    // handle the stale reference
	//	}
	ErrNotFound = errors.New("graph: node not found")

	// ErrInvalidPayload indicates that a node payload is missing fields
	// required by its node type. The returned error message carries the
	// missing-field list; use MissingFields to recover it programmatically.
	ErrInvalidPayload = errors.New("graph: invalid payload")

	// ErrDuplicateEdge indicates an attempt to add an edge whose derived id
	// already exists. A correctly behaving mutator never produces this; it
	// fails loudly rather than corrupt the graph.
	ErrDuplicateEdge = errors.New("graph: duplicate edge")

	// ErrDanglingReference indicates an attempt to add an edge whose source
	// or target node is absent from the store.
	ErrDanglingReference = errors.New("graph: dangling edge reference")

	// ErrNodeTypeNotRegistered indicates the requested node type is not in
	// the type registry.
	ErrNodeTypeNotRegistered = errors.New("graph: node type not registered")

	// ErrRootConflict indicates a violation of the root-singleton invariant:
	// a second root node, a root under a different id, or an edge pointing
	// into the root.
	ErrRootConflict = errors.New("graph: root node conflict")
)

// MissingFieldsError reports which payload fields a node type requires but
// the supplied data did not carry. It unwraps to ErrInvalidPayload.
type MissingFieldsError struct {
	NodeType NodeType
	Fields   []string
}

// Error implements the error interface.
func (e *MissingFieldsError) Error() string {
	msg := "graph: invalid payload for node type " + string(e.NodeType) + ": missing"
	for i, f := range e.Fields {
		if i > 0 {
			msg += ","
		}
		msg += " " + f
	}
	return msg
}

// Unwrap makes the error match ErrInvalidPayload under errors.Is.
func (e *MissingFieldsError) Unwrap() error {
	return ErrInvalidPayload
}

// MissingFields extracts the missing-field list from an error returned by
// payload validation. It returns nil when the error carries no field list.
func MissingFields(err error) []string {
	var mf *MissingFieldsError
	if errors.As(err, &mf) {
		return mf.Fields
	}
	return nil
}
