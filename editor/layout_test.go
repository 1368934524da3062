package editor

import (
	"testing"

	"github.com/mindflow-ai/mindgraph/graph"
)

func TestChildPosition_BelowParent(t *testing.T) {
	parent := graph.Position{X: 100, Y: 50}

	for i := 0; i < 8; i++ {
		pos := ChildPosition(parent, i)
		if pos.Y <= parent.Y {
			t.Errorf("sibling %d: expected Y below parent, got %v <= %v", i, pos.Y, parent.Y)
		}
	}
}

func TestChildPosition_MonotonicY(t *testing.T) {
	parent := graph.Position{}
	prev := ChildPosition(parent, 0)

	for i := 1; i < 8; i++ {
		pos := ChildPosition(parent, i)
		if pos.Y <= prev.Y {
			t.Errorf("sibling %d: expected Y to increase with index, got %v after %v", i, pos.Y, prev.Y)
		}
		prev = pos
	}
}

func TestChildPosition_SiblingsNeverOverlap(t *testing.T) {
	parent := graph.Position{X: -30, Y: 12}
	seen := make(map[graph.Position]int)

	for i := 0; i < 8; i++ {
		pos := ChildPosition(parent, i)
		if prev, dup := seen[pos]; dup {
			t.Errorf("siblings %d and %d share position %+v", prev, i, pos)
		}
		seen[pos] = i
	}
}

func TestChildPosition_DistinctX(t *testing.T) {
	parent := graph.Position{}
	a := ChildPosition(parent, 0)
	b := ChildPosition(parent, 1)

	if a.X == b.X {
		t.Errorf("successive siblings share X %v", a.X)
	}
}

func TestChildPosition_FirstChildDirectlyBelow(t *testing.T) {
	parent := graph.Position{X: 40, Y: 40}
	pos := ChildPosition(parent, 0)

	if pos.X != parent.X {
		t.Errorf("expected first child at parent X, got %v", pos.X)
	}
	if pos.Y != parent.Y+VerticalSpacing {
		t.Errorf("expected first child one VerticalSpacing below, got %v", pos.Y)
	}
}
