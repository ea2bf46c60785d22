package main

import (
	"github.com/samber/lo"
	"golang.org/x/exp/maps"
)

// gCounter is a grow-only counter holding one coordinate per node. Two
// replicas that have exchanged views agree on every coordinate, so they
// agree on the total.
type gCounter struct {
	counts map[string]uint64
}

func newGCounter() *gCounter {
	return &gCounter{counts: map[string]uint64{}}
}

// add bumps id's coordinate by delta.
func (c *gCounter) add(id string, delta uint64) {
	c.counts[id] += delta
}

// merge folds another view in, coordinate-wise max. No coordinate ever
// goes down.
func (c *gCounter) merge(counts map[string]uint64) {
	for id, v := range counts {
		if v > c.counts[id] {
			c.counts[id] = v
		}
	}
}

// value is the sum over every coordinate.
func (c *gCounter) value() uint64 {
	return lo.Sum(maps.Values(c.counts))
}

// size reports how many coordinates the counter carries.
func (c *gCounter) size() int {
	return len(c.counts)
}

// snapshot returns a copy of the vector safe to hand to the codec.
func (c *gCounter) snapshot() map[string]uint64 {
	return maps.Clone(c.counts)
}
