package forge

import "reflect"

// entitiesType tags dependencies that touch the entity table itself.
var entitiesType = reflect.TypeOf((*Entities)(nil))

type familyOpKind uint8

const (
	opAdoptFirst familyOpKind = iota
	opAdoptLast
	opAdoptBefore
	opAdoptAfter
	opReject
	opRejectAll
)

type familyOp struct {
	kind   familyOpKind
	anchor Entity // parent or sibling, depending on kind
	child  Entity
}

// Mutator queues structural changes for one system (creation, destruction,
// duplication, and family mutation) and drains them, one queue per
// operation kind, at the next synchronization point. Enqueueing is cheap and
// never touches the world's structure; resolution is single-threaded.
type Mutator struct {
	world       *World
	touched     map[*Segment]struct{}
	creates     []*deferredCreate
	duplicates  []*deferredDuplicate
	destroys    []Entity
	destroyAlls []QueryNode
	familyOps   []familyOp
}

var _ Inject = &Mutator{}

// NewMutator builds a mutator over the world.
func NewMutator(world *World) *Mutator {
	return &Mutator{
		world:   world,
		touched: make(map[*Segment]struct{}),
	}
}

func (m *Mutator) touch(segment *Segment) {
	m.touched[segment] = struct{}{}
}

// Destroy queues an entity for destruction at the next synchronization
// point. The entity's children become roots; its slot returns to the free
// list, and the next reuse of the index carries a bumped generation.
func (m *Mutator) Destroy(entity Entity) {
	m.destroys = append(m.destroys, entity)
}

// DestroyAll queues the destruction of every entity in every segment
// matching the query. A nil query matches every segment.
func (m *Mutator) DestroyAll(query QueryNode) {
	m.destroyAlls = append(m.destroyAlls, query)
}

// Adopt queues child's adoption as the last child of parent.
func (m *Mutator) Adopt(parent, child Entity) {
	m.familyOps = append(m.familyOps, familyOp{kind: opAdoptLast, anchor: parent, child: child})
}

// AdoptFirst queues child's adoption as the first child of parent.
func (m *Mutator) AdoptFirst(parent, child Entity) {
	m.familyOps = append(m.familyOps, familyOp{kind: opAdoptFirst, anchor: parent, child: child})
}

// AdoptBefore queues child's adoption immediately before sibling.
func (m *Mutator) AdoptBefore(sibling, child Entity) {
	m.familyOps = append(m.familyOps, familyOp{kind: opAdoptBefore, anchor: sibling, child: child})
}

// AdoptAfter queues child's adoption immediately after sibling.
func (m *Mutator) AdoptAfter(sibling, child Entity) {
	m.familyOps = append(m.familyOps, familyOp{kind: opAdoptAfter, anchor: sibling, child: child})
}

// Reject queues child's detachment from its parent.
func (m *Mutator) Reject(child Entity) {
	m.familyOps = append(m.familyOps, familyOp{kind: opReject, child: child})
}

// RejectAll queues the detachment of every child of parent.
func (m *Mutator) RejectAll(parent Entity) {
	m.familyOps = append(m.familyOps, familyOp{kind: opRejectAll, anchor: parent})
}

// Update implements Inject; the mutator needs no refresh.
func (m *Mutator) Update(w *World) error {
	return nil
}

// Depend implements Inject: everything the mutator does lands at resolution
// time, so it only defers on the entity table.
func (m *Mutator) Depend() []Dependency {
	return []Dependency{DeferOf(TypeIdentifier(entitiesType), "Entities")}
}

// Resolve drains every queue in one synchronization point, in the fixed
// order the storage invariants require:
//
//  1. commit the entity table's append cursor and free list,
//  2. resolve every touched segment, growing stores and committing rows,
//  3. drain deferred creations, writing values into the committed rows,
//  4. drain deferred duplications,
//  5. apply destructions,
//  6. apply family mutations.
func (m *Mutator) Resolve(w *World) error {
	entities := w.entities
	entities.Resolve()

	for segment := range m.touched {
		segment.Resolve()
	}
	clear(m.touched)

	var err error
	for _, record := range m.creates {
		err = mergeErrors(err, record.resolve(w))
	}
	m.creates = m.creates[:0]

	for _, record := range m.duplicates {
		err = mergeErrors(err, m.resolveDuplicate(record))
	}
	m.duplicates = m.duplicates[:0]

	for _, entity := range m.destroys {
		err = mergeErrors(err, m.destroyOne(entity))
	}
	m.destroys = m.destroys[:0]

	for _, query := range m.destroyAlls {
		for _, segment := range matchingSegments(query, w) {
			// Walk backwards so removals never swap a pending row away.
			for row := segment.Count() - 1; row >= 0; row-- {
				err = mergeErrors(err, m.destroyOne(*StoreGet[Entity](segment.EntityStore(), row)))
			}
		}
	}
	m.destroyAlls = m.destroyAlls[:0]

	for _, op := range m.familyOps {
		switch op.kind {
		case opAdoptFirst:
			entities.AdoptFirst(op.anchor, op.child)
		case opAdoptLast:
			entities.AdoptLast(op.anchor, op.child)
		case opAdoptBefore:
			entities.AdoptBefore(op.anchor, op.child)
		case opAdoptAfter:
			entities.AdoptAfter(op.anchor, op.child)
		case opReject:
			entities.Reject(op.child)
		case opRejectAll:
			entities.RejectAll(op.anchor)
		}
	}
	m.familyOps = m.familyOps[:0]

	return flattenError(err)
}

func (m *Mutator) initializeRoot(entity Entity, segment uint32, row int) {
	m.world.entities.Initialize(entity.index, Datum{
		generation:      entity.generation,
		segment:         segment,
		store:           uint32(row),
		parent:          none,
		firstChild:      none,
		lastChild:       none,
		previousSibling: none,
		nextSibling:     none,
	})
}
