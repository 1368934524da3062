// Package id provides client-side id generation for mind-map nodes.
//
// New nodes are created optimistically before the backend has seen them,
// so ids must be generated on the client with a collision-resistant
// scheme. The format is a millisecond timestamp plus a random suffix:
//
//	1756710000123-4821
//
// Two clients creating nodes in the same millisecond still diverge on the
// suffix, and the timestamp prefix keeps ids roughly sortable by creation
// time. Ids are treated as final: the backend upserts by client id and
// never substitutes its own.
package id

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// suffixSpace is the size of the random suffix space per millisecond.
const suffixSpace = 10000

// Generator creates unique ids for new graph nodes.
type Generator interface {
	// NewID returns a fresh, collision-resistant node id.
	NewID() string
}

// TimestampGenerator implements Generator using the wall clock and a
// random suffix. The zero value is not usable; create one with
// NewGenerator.
type TimestampGenerator struct {
	now  func() time.Time
	intN func(int) int
}

// NewGenerator creates a TimestampGenerator backed by the system clock
// and the shared math/rand/v2 source.
func NewGenerator() *TimestampGenerator {
	return &TimestampGenerator{
		now:  time.Now,
		intN: rand.IntN,
	}
}

// NewTestGenerator creates a generator with an injected clock and random
// source, for deterministic tests.
func NewTestGenerator(now func() time.Time, intN func(int) int) *TimestampGenerator {
	return &TimestampGenerator{now: now, intN: intN}
}

// NewID returns an id of the form {unix_millis}-{suffix}.
func (g *TimestampGenerator) NewID() string {
	return fmt.Sprintf("%d-%04d", g.now().UnixMilli(), g.intN(suffixSpace))
}
