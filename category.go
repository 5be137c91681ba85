package audiomix

import "sync/atomic"

// Category is a named mixing group. Sounds created under a category share
// its gain and its streamed/static policy. The streamed flag is fixed at
// creation; later calls to CreateCategory for the same name are no-ops.
type Category struct {
	name     string
	streamed bool
	gain     atomic.Uint32 // float32 bits; read/written without the manager mutex
}

func newCategory(name string, streamed bool) *Category {
	c := &Category{name: name, streamed: streamed}
	c.gain.Store(float32bits(1.0))
	return c
}

// Name returns the category's unique identifier.
func (c *Category) Name() string { return c.name }

// Streamed reports whether sounds in this category are streaming assets.
func (c *Category) Streamed() bool { return c.streamed }

// Gain returns the category's current group gain.
func (c *Category) Gain() float32 { return float32frombits(c.gain.Load()) }

// setGain stores a new group gain. Pushing the recomputed value to live
// voices is the manager's responsibility (it must also multiply in global
// gain and each source's own gain).
func (c *Category) setGain(v float32) { c.gain.Store(float32bits(v)) }
