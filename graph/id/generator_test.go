package id

import (
	"regexp"
	"testing"
	"time"
)

func TestTimestampGenerator_Format(t *testing.T) {
	fixed := time.UnixMilli(1756710000123)
	gen := NewTestGenerator(
		func() time.Time { return fixed },
		func(n int) int { return 42 },
	)

	got := gen.NewID()
	want := "1756710000123-0042"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestTimestampGenerator_Shape(t *testing.T) {
	gen := NewGenerator()
	pattern := regexp.MustCompile(`^\d{13,}-\d{4}$`)

	for i := 0; i < 100; i++ {
		id := gen.NewID()
		if !pattern.MatchString(id) {
			t.Fatalf("id %q does not match {millis}-{suffix}", id)
		}
	}
}

func TestTimestampGenerator_SuffixDiverges(t *testing.T) {
	// Within one millisecond the suffix is the only source of divergence;
	// a burst of ids should still be mostly distinct.
	gen := NewGenerator()
	seen := make(map[string]int)
	const burst = 200

	for i := 0; i < burst; i++ {
		seen[gen.NewID()]++
	}
	// 200 draws from a 10000-value suffix space collide occasionally, but
	// near-total collapse would mean the random source is broken.
	if len(seen) < burst/2 {
		t.Errorf("expected mostly distinct ids, got %d unique of %d", len(seen), burst)
	}
}
