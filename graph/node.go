package graph

import "fmt"

// RootID is the well-known identifier of the singleton root node.
// Every graph has exactly one root and its id never changes.
const RootID = "root"

// Type is the structural role of a node in the mind map.
type Type string

const (
	// TypeRoot is the singleton top-level node. A graph has exactly one
	// root and it never has an incoming edge.
	TypeRoot Type = "root"

	// TypeBranch is a category or grouping node (e.g. a project or a person).
	TypeBranch Type = "branch"

	// TypeContent is a leaf node carrying a payload (tasks, status, comment).
	TypeContent Type = "content"
)

// NodeType is the semantic subtype of a node, orthogonal to Type.
// It determines which fields of Data are meaningful and which are
// required on creation (see TypeRegistry).
type NodeType string

const (
	NodeTypeProject NodeType = "project"
	NodeTypeTasks   NodeType = "tasks"
	NodeTypeStatus  NodeType = "status"
	NodeTypeComment NodeType = "comment"
	NodeTypeTask    NodeType = "task"
)

// Structural returns the structural role nodes of this subtype take on
// when created as children: projects group other nodes and render as
// branches, everything else is a content leaf.
func (nt NodeType) Structural() Type {
	if nt == NodeTypeProject {
		return TypeBranch
	}
	return TypeContent
}

// Position is a layout coordinate. It is mutated by drag and by automatic
// layout on creation and is never used as an identity.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// TaskItem is a single entry in a tasks node's checklist.
type TaskItem struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
	Status    string `json:"status,omitempty"`
	Comment   string `json:"comment,omitempty"`
}

// Data is the variant payload of a node. Which fields are meaningful is
// keyed by the node's NodeType:
//
//   - project: Label, Description
//   - tasks:   Label, Tasks
//   - status:  Label, Status, Comment
//   - comment: Label, Comment
//   - task:    Label, Description, Completed, Deadline, AssignedTo
type Data struct {
	Label       string     `json:"label"`
	Description string     `json:"description,omitempty"`
	Tasks       []TaskItem `json:"tasks,omitempty"`
	Status      string     `json:"status,omitempty"`
	Comment     string     `json:"comment,omitempty"`
	Completed   bool       `json:"completed,omitempty"`
	Deadline    string     `json:"deadline,omitempty"`
	AssignedTo  []string   `json:"assignedTo,omitempty"`
}

// Patch is a partial update to a node's Data. Nil fields are left
// untouched; non-nil fields overwrite, which allows clearing a value by
// pointing at its zero value.
type Patch struct {
	Label       *string     `json:"label,omitempty"`
	Description *string     `json:"description,omitempty"`
	Tasks       *[]TaskItem `json:"tasks,omitempty"`
	Status      *string     `json:"status,omitempty"`
	Comment     *string     `json:"comment,omitempty"`
	Completed   *bool       `json:"completed,omitempty"`
	Deadline    *string     `json:"deadline,omitempty"`
	AssignedTo  *[]string   `json:"assignedTo,omitempty"`
}

// Apply merges the patch into the data, field by field.
func (d *Data) Apply(p Patch) {
	if p.Label != nil {
		d.Label = *p.Label
	}
	if p.Description != nil {
		d.Description = *p.Description
	}
	if p.Tasks != nil {
		d.Tasks = cloneTasks(*p.Tasks)
	}
	if p.Status != nil {
		d.Status = *p.Status
	}
	if p.Comment != nil {
		d.Comment = *p.Comment
	}
	if p.Completed != nil {
		d.Completed = *p.Completed
	}
	if p.Deadline != nil {
		d.Deadline = *p.Deadline
	}
	if p.AssignedTo != nil {
		d.AssignedTo = append([]string(nil), *p.AssignedTo...)
	}
}

// Node is a single mind-map element.
type Node struct {
	// ID uniquely identifies the node and is stable for its lifetime.
	// Client-generated for new nodes (see the id package).
	ID string `json:"id"`

	// Type is the structural role (root, branch, content).
	Type Type `json:"type"`

	// NodeType is the semantic subtype keying the Data payload.
	NodeType NodeType `json:"nodeType"`

	// Position is the current layout coordinate.
	Position Position `json:"position"`

	// Data holds the subtype-specific payload.
	Data Data `json:"data"`

	// Expanded reports whether the node's children are currently visible.
	// Ephemeral UI state, not durable data.
	Expanded bool `json:"expanded"`

	// ParentID caches the source of the node's single incoming edge.
	// Empty for the root. The edge set remains authoritative.
	ParentID string `json:"parentId,omitempty"`
}

// NewNode creates a node of the given semantic subtype with its
// structural role derived and children visible by default.
func NewNode(nodeType NodeType) *Node {
	return &Node{
		Type:     nodeType.Structural(),
		NodeType: nodeType,
		Expanded: true,
	}
}

// NewRootNode creates the singleton root node with the well-known id.
func NewRootNode(label string) *Node {
	return &Node{
		ID:       RootID,
		Type:     TypeRoot,
		NodeType: NodeTypeProject,
		Data:     Data{Label: label},
		Expanded: true,
	}
}

// WithID sets the node id and returns the node for chaining.
func (n *Node) WithID(id string) *Node {
	n.ID = id
	return n
}

// WithPosition sets the layout coordinate and returns the node for chaining.
func (n *Node) WithPosition(pos Position) *Node {
	n.Position = pos
	return n
}

// WithData sets the payload and returns the node for chaining.
func (n *Node) WithData(data Data) *Node {
	n.Data = data
	return n
}

// WithParent sets the cached parent id and returns the node for chaining.
func (n *Node) WithParent(parentID string) *Node {
	n.ParentID = parentID
	return n
}

// Validate checks that the node has the fields every node requires.
func (n *Node) Validate() error {
	if n.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidPayload)
	}
	if n.Type == "" {
		return fmt.Errorf("%w: type is required", ErrInvalidPayload)
	}
	if n.NodeType == "" {
		return fmt.Errorf("%w: nodeType is required", ErrInvalidPayload)
	}
	if n.Type == TypeRoot && n.ID != RootID {
		return fmt.Errorf("%w: root node must use id %q", ErrRootConflict, RootID)
	}
	return nil
}

// Clone returns a deep copy of the node. Slices inside Data are copied so
// the clone can be mutated without aliasing the original.
func (n *Node) Clone() *Node {
	c := *n
	c.Data.Tasks = cloneTasks(n.Data.Tasks)
	if n.Data.AssignedTo != nil {
		c.Data.AssignedTo = append([]string(nil), n.Data.AssignedTo...)
	}
	return &c
}

func cloneTasks(tasks []TaskItem) []TaskItem {
	if tasks == nil {
		return nil
	}
	return append([]TaskItem(nil), tasks...)
}
