package forge

import (
	"fmt"

	"github.com/TheBitDrifter/bark"
	"github.com/TheBitDrifter/mask"
)

// QueryNode evaluates whether a segment's archetype satisfies a component
// condition.
type QueryNode interface {
	Evaluate(segment *Segment) bool
}

// Query builds boolean component-set conditions over segment archetypes.
// Items passed to And/Or/Not may be *Meta, []*Meta, or nested QueryNodes.
type Query interface {
	QueryNode
	And(items ...any) QueryNode
	Or(items ...any) QueryNode
	Not(items ...any) QueryNode
}

type queryOp int

const (
	opAnd queryOp = iota
	opOr
	opNot
)

// query implements the Query interface
type query struct {
	root QueryNode
}

// compositeNode implements a compound query with child nodes
type compositeNode struct {
	op       queryOp
	metas    []*Meta
	children []QueryNode
}

func newQuery() Query {
	return &query{}
}

func newCompositeNode(op queryOp, metas []*Meta, children []QueryNode) *compositeNode {
	return &compositeNode{op: op, metas: metas, children: children}
}

// Evaluate implements the QueryNode interface for the whole query
func (q *query) Evaluate(segment *Segment) bool {
	if q.root == nil {
		return true
	}
	return q.root.Evaluate(segment)
}

// And creates a new AND node requiring every meta and child node to match
func (q *query) And(items ...any) QueryNode {
	metas, children := q.processItems(items...)
	node := newCompositeNode(opAnd, metas, children)
	if q.root == nil {
		q.root = node
	}
	return node
}

// Or creates a new OR node matching any meta or child node
func (q *query) Or(items ...any) QueryNode {
	metas, children := q.processItems(items...)
	node := newCompositeNode(opOr, metas, children)
	if q.root == nil {
		q.root = node
	}
	return node
}

// Not creates a new NOT node excluding segments matching any meta or child
// node
func (q *query) Not(items ...any) QueryNode {
	metas, children := q.processItems(items...)
	node := newCompositeNode(opNot, metas, children)
	if q.root == nil {
		q.root = node
	}
	return node
}

// validateQueryItems checks if all items are of valid types for queries
func (q *query) validateQueryItems(items ...any) error {
	for _, item := range items {
		switch item.(type) {
		case *Meta, []*Meta, QueryNode:
			continue
		default:
			return fmt.Errorf("invalid query item type: %T. Only *Meta, []*Meta, or QueryNode are allowed", item)
		}
	}
	return nil
}

// processItems converts the input items into metas and child query nodes
func (q *query) processItems(items ...any) ([]*Meta, []QueryNode) {
	if err := q.validateQueryItems(items...); err != nil {
		panic(bark.AddTrace(err))
	}
	metas := make([]*Meta, 0)
	children := make([]QueryNode, 0)
	for _, item := range items {
		switch v := item.(type) {
		case *Meta:
			metas = append(metas, v)
		case []*Meta:
			metas = append(metas, v...)
		case QueryNode:
			children = append(children, v)
		}
	}
	return metas, children
}

// Evaluate implements the QueryNode interface for composite nodes
func (n *compositeNode) Evaluate(segment *Segment) bool {
	var nodeMask mask.Mask
	for _, meta := range n.metas {
		nodeMask.Mark(meta.index)
	}
	segmentMask := segment.Mask()

	switch n.op {
	case opAnd:
		if !segmentMask.ContainsAll(nodeMask) {
			return false
		}
		for _, child := range n.children {
			if !child.Evaluate(segment) {
				return false
			}
		}
		return true
	case opOr:
		if segmentMask.ContainsAny(nodeMask) {
			return true
		}
		for _, child := range n.children {
			if child.Evaluate(segment) {
				return true
			}
		}
		return false
	case opNot:
		if len(n.children) == 0 {
			return segmentMask.ContainsNone(nodeMask)
		}
		if len(n.metas) > 0 && !segmentMask.ContainsNone(nodeMask) {
			return false
		}
		for _, child := range n.children {
			if child.Evaluate(segment) {
				return false
			}
		}
		return true
	}
	return false
}

// matchingSegments collects the world's segments satisfying the node.
func matchingSegments(node QueryNode, w *World) []*Segment {
	var matched []*Segment
	for _, segment := range w.Segments() {
		if node == nil || node.Evaluate(segment) {
			matched = append(matched, segment)
		}
	}
	return matched
}
