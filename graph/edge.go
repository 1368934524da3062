package graph

import "fmt"

// Edge is a directed parent→child relation between two nodes.
//
// Edge ids are deterministically derived from the endpoint pair, which
// makes duplicate-edge detection an O(1) map lookup.
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// EdgeID derives the deterministic id for the edge source→target.
func EdgeID(source, target string) string {
	return fmt.Sprintf("e-%s-%s", source, target)
}

// NewEdge creates the edge source→target with its derived id.
func NewEdge(source, target string) Edge {
	return Edge{
		ID:     EdgeID(source, target),
		Source: source,
		Target: target,
	}
}
