package graph

import (
	"fmt"
	"sort"
	"sync"
)

// TypeRegistry maps each node type to the payload fields it requires on
// creation. The registry is what parameterizes the editor by node-type
// vocabulary: the default registry covers the productivity-dashboard set,
// and callers with a different vocabulary register their own types.
type TypeRegistry interface {
	// RequiredFields returns the Data field names a node of the given type
	// must carry. Returns ErrNodeTypeNotRegistered for unknown types.
	RequiredFields(nodeType NodeType) ([]string, error)

	// IsRegistered reports whether the node type exists in the registry.
	IsRegistered(nodeType NodeType) bool

	// ValidateData checks that all required fields are present in the
	// payload. On failure it returns the missing field names together with
	// a *MissingFieldsError (matching ErrInvalidPayload under errors.Is).
	// Returns ErrNodeTypeNotRegistered for unknown types.
	ValidateData(nodeType NodeType, data Data) ([]string, error)

	// AllNodeTypes returns a sorted list of all registered node types.
	AllNodeTypes() []NodeType
}

// DefaultTypeRegistry is the in-memory TypeRegistry implementation.
// It is safe for concurrent use.
type DefaultTypeRegistry struct {
	mu       sync.RWMutex
	required map[NodeType][]string
}

// NewDefaultTypeRegistry creates a registry pre-populated with the
// canonical node types:
//
//   - project: [label]
//   - tasks:   [label, tasks]
//   - status:  [label, status]
//   - comment: [label, comment]
//   - task:    [label]
func NewDefaultTypeRegistry() *DefaultTypeRegistry {
	return &DefaultTypeRegistry{
		required: map[NodeType][]string{
			NodeTypeProject: {"label"},
			NodeTypeTasks:   {"label", "tasks"},
			NodeTypeStatus:  {"label", "status"},
			NodeTypeComment: {"label", "comment"},
			NodeTypeTask:    {"label"},
		},
	}
}

// Register adds or replaces a node type and its required fields.
func (r *DefaultTypeRegistry) Register(nodeType NodeType, fields []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.required[nodeType] = append([]string(nil), fields...)
}

// RequiredFields returns the required payload fields for the node type.
func (r *DefaultTypeRegistry) RequiredFields(nodeType NodeType) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fields, ok := r.required[nodeType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNodeTypeNotRegistered, nodeType)
	}
	return append([]string(nil), fields...), nil
}

// IsRegistered reports whether the node type exists in the registry.
func (r *DefaultTypeRegistry) IsRegistered(nodeType NodeType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.required[nodeType]
	return ok
}

// ValidateData checks that every required field is present in the payload.
func (r *DefaultTypeRegistry) ValidateData(nodeType NodeType, data Data) ([]string, error) {
	fields, err := r.RequiredFields(nodeType)
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, f := range fields {
		if !fieldPresent(data, f) {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return missing, &MissingFieldsError{NodeType: nodeType, Fields: missing}
	}
	return nil, nil
}

// AllNodeTypes returns all registered node types in sorted order.
func (r *DefaultTypeRegistry) AllNodeTypes() []NodeType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]NodeType, 0, len(r.required))
	for nt := range r.required {
		types = append(types, nt)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// fieldPresent reports whether the named Data field carries a value.
// An empty-but-non-nil task list counts as present: a fresh tasks node
// legitimately starts with zero entries.
func fieldPresent(data Data, field string) bool {
	switch field {
	case "label":
		return data.Label != ""
	case "description":
		return data.Description != ""
	case "tasks":
		return data.Tasks != nil
	case "status":
		return data.Status != ""
	case "comment":
		return data.Comment != ""
	case "deadline":
		return data.Deadline != ""
	case "assignedTo":
		return data.AssignedTo != nil
	default:
		return false
	}
}
