package forge

import "iter"

// Children iterates a parent's child list from both ends with an exact size.
type Children struct {
	front     uint32
	back      uint32
	remaining uint32
	entities  *Entities
}

// Len returns the number of children not yet consumed.
func (c *Children) Len() int {
	return int(c.remaining)
}

// Next consumes the front of the child list.
func (c *Children) Next() (Entity, bool) {
	if c.remaining == 0 {
		return Null(), false
	}
	datum, ok := c.entities.At(c.front)
	if !ok {
		return Null(), false
	}
	c.remaining--
	entity := datum.entity(c.front)
	c.front = datum.nextSibling
	return entity, true
}

// NextBack consumes the back of the child list.
func (c *Children) NextBack() (Entity, bool) {
	if c.remaining == 0 {
		return Null(), false
	}
	datum, ok := c.entities.At(c.back)
	if !ok {
		return Null(), false
	}
	c.remaining--
	entity := datum.entity(c.back)
	c.back = datum.previousSibling
	return entity, true
}

// Nth consumes up to the i-th remaining child and returns it.
func (c *Children) Nth(i int) (Entity, bool) {
	for ; i > 0; i-- {
		if _, ok := c.Next(); !ok {
			return Null(), false
		}
	}
	return c.Next()
}

// All returns the remaining children as a forward iterator sequence.
func (c *Children) All() iter.Seq[Entity] {
	return func(yield func(Entity) bool) {
		for {
			entity, ok := c.Next()
			if !ok || !yield(entity) {
				return
			}
		}
	}
}

// Root follows parent links to the top of the entity's family.
func (e *Entities) Root(entity Entity) Entity {
	// Only the entry entity needs validation; linked entities can be assumed
	// live while the table is not mid-resolution.
	datum, ok := e.Get(entity)
	if !ok {
		return entity
	}
	index := datum.parent
	for {
		datum, ok := e.At(index)
		if !ok {
			return entity
		}
		entity = datum.entity(index)
		index = datum.parent
	}
}

// Parent returns the entity's parent, if any.
func (e *Entities) Parent(entity Entity) (Entity, bool) {
	datum, ok := e.Get(entity)
	if !ok {
		return Null(), false
	}
	parent, ok := e.At(datum.parent)
	if !ok {
		return Null(), false
	}
	return parent.entity(datum.parent), true
}

// ChildrenOf returns a double-ended iterator over the entity's child list.
func (e *Entities) ChildrenOf(entity Entity) Children {
	var first, last uint32 = none, none
	var count uint32
	if datum, ok := e.Get(entity); ok {
		first, last, count = datum.firstChild, datum.lastChild, datum.children
	}
	return Children{front: first, back: last, remaining: count, entities: e}
}

// SiblingsOf iterates the entity's siblings, excluding the entity itself.
func (e *Entities) SiblingsOf(entity Entity) iter.Seq[Entity] {
	return func(yield func(Entity) bool) {
		parent, ok := e.Parent(entity)
		if !ok {
			return
		}
		children := e.ChildrenOf(parent)
		for {
			sibling, ok := children.Next()
			if !ok {
				return
			}
			if sibling == entity {
				continue
			}
			if !yield(sibling) {
				return
			}
		}
	}
}

// AncestorsOf returns the entity's ancestors, nearest first.
func (e *Entities) AncestorsOf(entity Entity) []Entity {
	var ancestors []Entity
	e.Ascend(entity, func(parent Entity) {
		ancestors = append(ancestors, parent)
	}, nil)
	return ancestors
}

// DescendantsOf returns the entity's descendants in depth-first order.
func (e *Entities) DescendantsOf(entity Entity) []Entity {
	var descendants []Entity
	e.Descend(entity, func(child Entity) {
		descendants = append(descendants, child)
	}, nil)
	return descendants
}

// Ascend walks from the entity to its root, calling up on the way up and
// down on the way back.
func (e *Entities) Ascend(entity Entity, up, down func(Entity)) {
	e.TryAscend(entity, func(parent Entity) error {
		if up != nil {
			up(parent)
		}
		return nil
	}, func(parent Entity) error {
		if down != nil {
			down(parent)
		}
		return nil
	})
}

// TryAscend is Ascend with fallible callbacks; the walk stops at the first
// error, which is returned.
func (e *Entities) TryAscend(entity Entity, up, down func(Entity) error) error {
	parent, ok := e.Parent(entity)
	if !ok {
		return nil
	}
	if up != nil {
		if err := up(parent); err != nil {
			return err
		}
	}
	if err := e.TryAscend(parent, up, down); err != nil {
		return err
	}
	if down != nil {
		return down(parent)
	}
	return nil
}

// Descend walks the entity's subtree depth first, calling down before a
// child's subtree and up after it.
func (e *Entities) Descend(entity Entity, down, up func(Entity)) {
	e.TryDescend(entity, func(child Entity) error {
		if down != nil {
			down(child)
		}
		return nil
	}, func(child Entity) error {
		if up != nil {
			up(child)
		}
		return nil
	})
}

// TryDescend is Descend with fallible callbacks; the walk stops at the first
// error, which is returned.
func (e *Entities) TryDescend(entity Entity, down, up func(Entity) error) error {
	if !e.Has(entity) {
		return nil
	}
	return e.tryDescend(entity, down, up)
}

func (e *Entities) tryDescend(entity Entity, down, up func(Entity) error) error {
	children := e.ChildrenOf(entity)
	for {
		child, ok := children.Next()
		if !ok {
			return nil
		}
		if down != nil {
			if err := down(child); err != nil {
				return err
			}
		}
		if err := e.tryDescend(child, down, up); err != nil {
			return err
		}
		if up != nil {
			if err := up(child); err != nil {
				return err
			}
		}
	}
}

// AdoptFirst prepends child to parent's child list. It reports false when
// the adoption is invalid: dead handles, self-adoption, or an adoption that
// would create a cycle.
func (e *Entities) AdoptFirst(parent, child Entity) bool {
	if !e.detachChecked(parent, child) {
		return false
	}

	parentDatum, _ := e.At(parent.index)
	parentDatum.children++
	firstChild := parentDatum.firstChild
	parentDatum.firstChild = child.index
	if parentDatum.lastChild == none {
		// Happens when the parent had no children.
		parentDatum.lastChild = child.index
	}

	if first, ok := e.At(firstChild); ok {
		first.previousSibling = child.index
	}

	childDatum, _ := e.At(child.index)
	childDatum.parent = parent.index
	childDatum.previousSibling = none
	childDatum.nextSibling = firstChild
	return true
}

// AdoptLast appends child to parent's child list.
func (e *Entities) AdoptLast(parent, child Entity) bool {
	if !e.detachChecked(parent, child) {
		return false
	}

	parentDatum, _ := e.At(parent.index)
	parentDatum.children++
	lastChild := parentDatum.lastChild
	parentDatum.lastChild = child.index
	if parentDatum.firstChild == none {
		// Happens when the parent had no children.
		parentDatum.firstChild = child.index
	}

	if last, ok := e.At(lastChild); ok {
		last.nextSibling = child.index
	}

	childDatum, _ := e.At(child.index)
	childDatum.parent = parent.index
	childDatum.previousSibling = lastChild
	childDatum.nextSibling = none
	return true
}

// AdoptBefore inserts child immediately before sibling in their parent's
// child list.
func (e *Entities) AdoptBefore(sibling, child Entity) bool {
	if sibling.index == child.index {
		return false
	}
	parent, ok := e.Parent(sibling)
	if !ok {
		return false
	}
	if !e.detachChecked(parent, child) {
		return false
	}

	parentDatum, _ := e.At(parent.index)
	parentDatum.children++
	// The parent has at least one child (the sibling), so lastChild needs no
	// sentinel check.
	if parentDatum.firstChild == sibling.index {
		parentDatum.firstChild = child.index
	}

	siblingDatum, _ := e.At(sibling.index)
	previousSibling := siblingDatum.previousSibling
	siblingDatum.previousSibling = child.index
	if previous, ok := e.At(previousSibling); ok {
		previous.nextSibling = child.index
	}

	childDatum, _ := e.At(child.index)
	childDatum.parent = parent.index
	childDatum.previousSibling = previousSibling
	childDatum.nextSibling = sibling.index
	return true
}

// AdoptAfter inserts child immediately after sibling in their parent's child
// list.
func (e *Entities) AdoptAfter(sibling, child Entity) bool {
	if sibling.index == child.index {
		return false
	}
	parent, ok := e.Parent(sibling)
	if !ok {
		return false
	}
	if !e.detachChecked(parent, child) {
		return false
	}

	parentDatum, _ := e.At(parent.index)
	parentDatum.children++
	if parentDatum.lastChild == sibling.index {
		parentDatum.lastChild = child.index
	}

	siblingDatum, _ := e.At(sibling.index)
	nextSibling := siblingDatum.nextSibling
	siblingDatum.nextSibling = child.index
	if next, ok := e.At(nextSibling); ok {
		next.previousSibling = child.index
	}

	childDatum, _ := e.At(child.index)
	childDatum.parent = parent.index
	childDatum.previousSibling = sibling.index
	childDatum.nextSibling = nextSibling
	return true
}

// AdoptAt inserts child at position i of parent's child list, clamping to
// the ends.
func (e *Entities) AdoptAt(parent, child Entity, i int) bool {
	if i == 0 {
		return e.AdoptFirst(parent, child)
	}
	children := e.ChildrenOf(parent)
	if i >= children.Len() {
		return e.AdoptLast(parent, child)
	}
	sibling, ok := children.Nth(i)
	if !ok {
		return false
	}
	return e.AdoptBefore(sibling, child)
}

// Reject detaches child from its parent, making it a root. It reports false
// for dead handles or entities that already are roots.
func (e *Entities) Reject(child Entity) bool {
	datum, ok := e.Get(child)
	if !ok {
		return false
	}
	parent := datum.parent
	previousSibling := datum.previousSibling
	nextSibling := datum.nextSibling
	datum.parent = none
	datum.previousSibling = none
	datum.nextSibling = none
	return e.detachUnchecked(parent, child.index, previousSibling, nextSibling)
}

// RejectAt detaches the i-th child of parent.
func (e *Entities) RejectAt(parent Entity, i int) (Entity, bool) {
	children := e.ChildrenOf(parent)
	child, ok := children.Nth(i)
	if !ok {
		return Null(), false
	}
	return child, e.Reject(child)
}

// RejectFirst detaches the first child of parent.
func (e *Entities) RejectFirst(parent Entity) (Entity, bool) {
	children := e.ChildrenOf(parent)
	child, ok := children.Next()
	if !ok {
		return Null(), false
	}
	return child, e.Reject(child)
}

// RejectLast detaches the last child of parent.
func (e *Entities) RejectLast(parent Entity) (Entity, bool) {
	children := e.ChildrenOf(parent)
	child, ok := children.NextBack()
	if !ok {
		return Null(), false
	}
	return child, e.Reject(child)
}

// RejectAll detaches every child of parent and returns how many there were.
func (e *Entities) RejectAll(parent Entity) (int, bool) {
	parentDatum, ok := e.Get(parent)
	if !ok {
		return 0, false
	}
	firstChild := parentDatum.firstChild
	parentDatum.children = 0
	parentDatum.firstChild = none
	parentDatum.lastChild = none

	count := 0
	index := firstChild
	for {
		datum, ok := e.At(index)
		if !ok {
			return count, true
		}
		next := datum.nextSibling
		datum.parent = none
		datum.previousSibling = none
		datum.nextSibling = none
		index = next
		count++
	}
}

// detachChecked validates an adoption and detaches the child from any
// current parent. A parent may re-adopt its own child, which simply moves
// it; self-adoption and ancestor-adoption are rejected to keep the family
// acyclic.
func (e *Entities) detachChecked(parent, child Entity) bool {
	if parent.index == child.index {
		return false
	}

	// An entity cannot adopt one of its ancestors.
	cyclic := e.TryAscend(parent, func(ancestor Entity) error {
		if ancestor == child {
			return InvalidEntityError{Entity: child}
		}
		return nil
	}, nil)
	if cyclic != nil {
		return false
	}

	if !e.Has(parent) {
		return false
	}
	datum, ok := e.Get(child)
	if !ok {
		return false
	}
	// Detaching fails when the child is a root, which is fine here.
	e.detachUnchecked(datum.parent, child.index, datum.previousSibling, datum.nextSibling)
	return true
}

func (e *Entities) detachUnchecked(parent, child, previousSibling, nextSibling uint32) bool {
	parentDatum, ok := e.At(parent)
	if !ok {
		return false
	}
	parentDatum.children--
	if parentDatum.firstChild == child {
		parentDatum.firstChild = nextSibling
	}
	if parentDatum.lastChild == child {
		parentDatum.lastChild = previousSibling
	}

	if previous, ok := e.At(previousSibling); ok {
		previous.nextSibling = nextSibling
	}
	if next, ok := e.At(nextSibling); ok {
		next.previousSibling = previousSibling
	}
	return true
}
