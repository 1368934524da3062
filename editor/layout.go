package editor

import "github.com/mindflow-ai/mindgraph/graph"

// Layout constants are visual tuning parameters, not a correctness
// contract: what matters is that children land strictly below their
// parent, siblings never share an X, and deeper siblings stagger down
// instead of stacking.
const (
	// HorizontalSpacing is the X fan-out per sibling index.
	HorizontalSpacing = 250.0

	// VerticalSpacing is the base Y offset from parent to child.
	VerticalSpacing = 180.0

	// VerticalStagger is the extra Y offset per sibling index, so
	// fanned-out children do not sit on one line.
	VerticalStagger = 120.0
)

// ChildPosition computes the layout coordinate for a new child given its
// parent's position and the number of existing siblings. Children fan out
// below the parent: each sibling shifts half a HorizontalSpacing to the
// right of the previous one and staggers further down.
func ChildPosition(parent graph.Position, siblingCount int) graph.Position {
	n := float64(siblingCount)
	return graph.Position{
		X: parent.X + n*HorizontalSpacing - n*HorizontalSpacing/2,
		Y: parent.Y + VerticalSpacing + n*VerticalStagger,
	}
}
