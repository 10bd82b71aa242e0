package forge

import "iter"

// Ensure Cursor implements iCursor interface
var _ iCursor = &Cursor{}

// iCursor defines the interface for iterating over entities matching a query
type iCursor interface {
	Entities() iter.Seq2[int, *Segment]
	Next() bool
}

// Cursor iterates the committed rows of every segment matching a query.
// Reserved rows are invisible until the next synchronization point commits
// them.
type Cursor struct {
	query          QueryNode
	world          *World
	currentSegment *Segment
	segmentIndex   int
	entityIndex    int
	remaining      int

	initialized     bool
	matchedSegments []*Segment
}

// newCursor creates a new cursor for the given query and world
func newCursor(query QueryNode, world *World) *Cursor {
	return &Cursor{
		query: query,
		world: world,
	}
}

// Next advances to the next entity and returns whether one exists
func (c *Cursor) Next() bool {
	if c.entityIndex < c.remaining {
		c.entityIndex++
		return true
	}
	return c.advance()
}

// advance moves to the next matched segment with committed rows
func (c *Cursor) advance() bool {
	if !c.initialized {
		c.Initialize()
	}

	for c.segmentIndex < len(c.matchedSegments) {
		c.currentSegment = c.matchedSegments[c.segmentIndex]
		c.remaining = c.currentSegment.Count()
		if c.entityIndex < c.remaining {
			c.entityIndex++
			return true
		}
		c.segmentIndex++
		c.entityIndex = 0
	}

	c.Reset()
	return false
}

// Entities returns an iterator sequence over (row, segment) pairs matching
// the query
func (c *Cursor) Entities() iter.Seq2[int, *Segment] {
	return func(yield func(int, *Segment) bool) {
		c.Initialize()

		for c.segmentIndex < len(c.matchedSegments) {
			c.currentSegment = c.matchedSegments[c.segmentIndex]
			c.remaining = c.currentSegment.Count()

			for c.entityIndex < c.remaining {
				if !yield(c.entityIndex, c.currentSegment) {
					c.Reset()
					return
				}
				c.entityIndex++
			}

			c.entityIndex = 0
			c.segmentIndex++
		}

		c.Reset()
	}
}

// Initialize sets up the cursor by finding matching segments
func (c *Cursor) Initialize() {
	if c.initialized {
		return
	}
	c.matchedSegments = matchingSegments(c.query, c.world)
	c.initialized = true
}

// Reset returns the cursor to its pre-iteration state
func (c *Cursor) Reset() {
	c.currentSegment = nil
	c.segmentIndex = 0
	c.entityIndex = 0
	c.remaining = 0
	c.initialized = false
	c.matchedSegments = nil
}

// Segment returns the segment the cursor currently points into.
func (c *Cursor) Segment() *Segment {
	return c.currentSegment
}

// Row returns the row the cursor currently points at.
func (c *Cursor) Row() int {
	return c.entityIndex - 1
}

// CurrentEntity returns the entity handle at the cursor position.
func (c *Cursor) CurrentEntity() Entity {
	return *StoreGet[Entity](c.currentSegment.EntityStore(), c.Row())
}
