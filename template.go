package forge

// Template describes the creation of one or more entities: which components
// they carry, how many rows each target segment needs, and how parent-child
// structure wires together. A template type moves through four phases:
//
//  1. Declare (once): walk the template, producing one component-meta list
//     per prospective segment: the root plus one per spawned child.
//  2. Initialize (once): map every meta list to a real segment and resolve
//     store handles into a state tree.
//  3. Count (once for statically sized templates, per batch otherwise):
//     record how many rows each segment needs and how entity-local offsets
//     map to rows.
//  4. Apply (per created entity): write component values into reserved rows
//     and produce the entity-table datums, family links included.
//
// Declare and Initialize run against a prototype value; Count and Apply
// receive the per-batch instances, which must share the prototype's shape.
type Template interface {
	Declare(ctx *DeclareContext) any
	Initialize(declared any, ctx *InitializeContext) (TemplateState, error)
}

// TemplateState is the initialized form of a template: store handles and
// segment slots resolved, ready to count and apply instances.
//
// StaticCount reports whether the template's row counts are independent of
// the instance; while walking it also records the entity-local tree. A
// template must never drop a previously initialized value: every write in
// Apply targets a reserved, uninitialized row.
type TemplateState interface {
	StaticCount(ctx *CountContext) (bool, error)
	DynamicCount(template Template, ctx *CountContext) error
	Apply(template Template, ctx *ApplyContext) error
}

// SegmentIndices tracks one target segment of a template batch: which world
// segment it is, how many rows each instance contributes, and where the
// batch's claim starts.
type SegmentIndices struct {
	segment uint32 // world segment index
	count   int    // rows per instance (static) or accumulated rows (dynamic)
	index   int    // base offset into the batch's instance buffer
	store   int    // reserved start row within the segment
}

// EntityIndices is one node of the entity-local tree a count pass records:
// the segment slot it lands in, its offset among that segment's rows, and
// family links as node indices (-1 for none).
type EntityIndices struct {
	segment         int
	offset          int
	parent          int
	previousSibling int
	nextSibling     int

	// Derived once the tree is complete.
	children   int
	firstChild int
	lastChild  int
}

// DeclareContext accumulates the component-meta lists of a template's
// prospective segments.
type DeclareContext struct {
	metasIndex   int
	segmentMetas *[][]*Meta
	world        *World
}

func newDeclareContext(segmentMetas *[][]*Meta, world *World) *DeclareContext {
	return &DeclareContext{metasIndex: 0, segmentMetas: segmentMetas, world: world}
}

// World exposes the world so templates can register metas while declaring.
func (c *DeclareContext) World() *World {
	return c.world
}

// Component adds a meta to the current segment's list.
func (c *DeclareContext) Component(meta *Meta) {
	(*c.segmentMetas)[c.metasIndex] = append((*c.segmentMetas)[c.metasIndex], meta)
}

// Child opens a new prospective segment and runs the scope against it. The
// scope receives the new list's index, which Initialize must replay.
func (c *DeclareContext) Child(scope func(index int, ctx *DeclareContext) any) any {
	index := len(*c.segmentMetas)
	*c.segmentMetas = append(*c.segmentMetas, nil)
	return scope(index, &DeclareContext{metasIndex: index, segmentMetas: c.segmentMetas, world: c.world})
}

// InitializeContext maps declared meta lists onto real segments.
type InitializeContext struct {
	segmentSlot    int
	segmentIndices []SegmentIndices
	metasToSegment map[int]int
	world          *World
}

// Segment returns the world segment of the current slot.
func (c *InitializeContext) Segment() *Segment {
	return c.world.segments[c.segmentIndices[c.segmentSlot].segment]
}

// World exposes the world backing the initialization.
func (c *InitializeContext) World() *World {
	return c.world
}

// Child replays a Declare-phase child: it resolves the declared list index
// to its segment slot and runs the scope there.
func (c *InitializeContext) Child(declaredIndex int, scope func(slot int, ctx *InitializeContext) (TemplateState, error)) (TemplateState, error) {
	slot := c.metasToSegment[declaredIndex]
	return scope(slot, &InitializeContext{
		segmentSlot:    slot,
		segmentIndices: c.segmentIndices,
		metasToSegment: c.metasToSegment,
		world:          c.world,
	})
}

// CountContext records the entity-local tree while a count pass walks a
// template.
type CountContext struct {
	segmentSlot    int
	segmentIndices []SegmentIndices
	entityIndex    int
	entityParent   int
	entityPrevious *int
	entityIndices  *[]EntityIndices
}

func newCountContext(segmentIndices []SegmentIndices, entityIndices *[]EntityIndices) *CountContext {
	previous := -1
	return &CountContext{
		segmentSlot:    0,
		segmentIndices: segmentIndices,
		entityIndex:    -1,
		entityParent:   -1,
		entityPrevious: &previous,
		entityIndices:  entityIndices,
	}
}

// Child records one new entity in the given segment slot and runs the scope
// with the new entity as the current one. Sibling order follows call order.
func (c *CountContext) Child(slot int, scope func(ctx *CountContext) error) error {
	index := len(*c.entityIndices)
	indices := &c.segmentIndices[slot]
	*c.entityIndices = append(*c.entityIndices, EntityIndices{
		segment:         slot,
		offset:          indices.count,
		parent:          c.entityParent,
		previousSibling: *c.entityPrevious,
		nextSibling:     -1,
		firstChild:      -1,
		lastChild:       -1,
	})
	if previous := *c.entityPrevious; previous >= 0 {
		(*c.entityIndices)[previous].nextSibling = index
	}
	*c.entityPrevious = index
	indices.count++

	previous := -1
	return scope(&CountContext{
		segmentSlot:    slot,
		segmentIndices: c.segmentIndices,
		entityIndex:    index,
		entityParent:   index,
		entityPrevious: &previous,
		entityIndices:  c.entityIndices,
	})
}

// finalizeFamily derives child counts and first/last links once a tree is
// fully counted.
func finalizeFamily(entityIndices []EntityIndices) {
	for i := range entityIndices {
		entityIndices[i].children = 0
		entityIndices[i].firstChild = -1
		entityIndices[i].lastChild = -1
	}
	for i := range entityIndices {
		parent := entityIndices[i].parent
		if parent < 0 {
			continue
		}
		p := &entityIndices[parent]
		p.children++
		if p.firstChild < 0 {
			p.firstChild = i
		}
		p.lastChild = i
	}
}

// datumInit is one pending entity-table initialization produced by Apply.
type datumInit struct {
	index uint32
	datum Datum
}

// ApplyContext walks a template instance over its reserved rows, consuming
// the counted tree in the same order the count pass produced it.
type ApplyContext struct {
	root     int  // instance number within a static batch
	base     int  // first node of this root's tree
	consumed *int // nodes of this root's tree consumed so far

	entityIndex int // current node, absolute within entityIndices
	storeRow    int // current entity's reserved row in its segment

	instances      []Entity
	entityIndices  []EntityIndices
	segmentIndices []SegmentIndices
	inits          *[]datumInit
}

func newApplyContext(root, base int, instances []Entity, entityIndices []EntityIndices, segmentIndices []SegmentIndices, inits *[]datumInit) *ApplyContext {
	consumed := 0
	return &ApplyContext{
		root:           root,
		base:           base,
		consumed:       &consumed,
		entityIndex:    -1,
		instances:      instances,
		entityIndices:  entityIndices,
		segmentIndices: segmentIndices,
		inits:          inits,
	}
}

// Entity returns the instance the current node was assigned.
func (c *ApplyContext) Entity() Entity {
	return c.instances[c.instanceIndex(c.entityIndex)]
}

// StoreRow returns the reserved segment row of the current entity.
func (c *ApplyContext) StoreRow() int {
	return c.storeRow
}

// Family returns a navigable view over the batch's (possibly uncommitted)
// entities, rooted at the current one.
func (c *ApplyContext) Family() Family {
	return Family{
		root:           c.root,
		node:           c.entityIndex,
		instances:      c.instances,
		entityIndices:  c.entityIndices,
		segmentIndices: c.segmentIndices,
	}
}

// instanceIndex maps a tree node to its position in the instance buffer.
func (c *ApplyContext) instanceIndex(node int) int {
	indices := c.entityIndices[node]
	segment := c.segmentIndices[indices.segment]
	return segment.index + segment.count*c.root + indices.offset
}

// instanceLink resolves a node link to the entity-table index of its
// instance.
func (c *ApplyContext) instanceLink(node int) uint32 {
	if node < 0 {
		return none
	}
	return c.instances[c.instanceIndex(node)].index
}

// Child consumes the next node of the tree, records its datum (location,
// generation, and family links), and runs the scope with it as the current
// entity.
func (c *ApplyContext) Child(scope func(ctx *ApplyContext) error) error {
	node := c.base + *c.consumed
	if node >= len(c.entityIndices) {
		return StaticCountMustBeTrueError{}
	}
	*c.consumed++

	indices := c.entityIndices[node]
	segment := c.segmentIndices[indices.segment]
	offset := segment.count*c.root + indices.offset
	entity := c.instances[segment.index+offset]
	row := segment.store + offset

	child := &ApplyContext{
		root:           c.root,
		base:           c.base,
		consumed:       c.consumed,
		entityIndex:    node,
		storeRow:       row,
		instances:      c.instances,
		entityIndices:  c.entityIndices,
		segmentIndices: c.segmentIndices,
		inits:          c.inits,
	}

	*c.inits = append(*c.inits, datumInit{
		index: entity.index,
		datum: Datum{
			generation:      entity.generation,
			segment:         segment.segment,
			store:           uint32(row),
			parent:          child.instanceLink(indices.parent),
			children:        uint32(indices.children),
			firstChild:      child.instanceLink(indices.firstChild),
			lastChild:       child.instanceLink(indices.lastChild),
			previousSibling: child.instanceLink(indices.previousSibling),
			nextSibling:     child.instanceLink(indices.nextSibling),
		},
	})

	return scope(child)
}

// Family navigates the entities of one template batch before they commit,
// through entity-local indices rather than the entity table.
type Family struct {
	root           int
	node           int
	instances      []Entity
	entityIndices  []EntityIndices
	segmentIndices []SegmentIndices
}

// Entity returns the handle of the family's current node.
func (f Family) Entity() Entity {
	indices := f.entityIndices[f.node]
	segment := f.segmentIndices[indices.segment]
	return f.instances[segment.index+segment.count*f.root+indices.offset]
}

// Parent returns the node's parent, if it has one.
func (f Family) Parent() (Family, bool) {
	parent := f.entityIndices[f.node].parent
	if parent < 0 {
		return Family{}, false
	}
	return f.with(parent), true
}

// Root walks to the top of the batch-local tree. Index 0 is not assumed to
// be the root since a batch may have several roots.
func (f Family) Root() Family {
	if parent, ok := f.Parent(); ok {
		return parent.Root()
	}
	return f
}

// Children returns the node's children in sibling order.
func (f Family) Children() []Family {
	var children []Family
	next := f.entityIndices[f.node].firstChild
	for next >= 0 {
		children = append(children, f.with(next))
		next = f.entityIndices[next].nextSibling
	}
	return children
}

func (f Family) with(node int) Family {
	f.node = node
	return f
}

// Families is the set of root families created by one template batch.
type Families struct {
	roots          [][2]int // (instance number, base node)
	instances      []Entity
	entityIndices  []EntityIndices
	segmentIndices []SegmentIndices
}

// Len returns the number of roots.
func (f Families) Len() int {
	return len(f.roots)
}

// Get returns the i-th root family.
func (f Families) Get(i int) (Family, bool) {
	if i >= len(f.roots) {
		return Family{}, false
	}
	return Family{
		root:           f.roots[i][0],
		node:           f.roots[i][1],
		instances:      f.instances,
		entityIndices:  f.entityIndices,
		segmentIndices: f.segmentIndices,
	}, true
}

// Entities collects the root entities of the batch.
func (f Families) Entities() []Entity {
	entities := make([]Entity, 0, len(f.roots))
	for i := range f.roots {
		family, _ := f.Get(i)
		entities = append(entities, family.Entity())
	}
	return entities
}
