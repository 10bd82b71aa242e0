package forge

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/TheBitDrifter/bark"
)

// none is the sentinel for absent entity-table links.
const none = math.MaxUint32

// Datum is one entity table row: where the entity lives (segment, store row),
// which generation owns the slot, and the family links. A slot whose segment
// and store are both sentinels is released and free for reuse.
type Datum struct {
	generation uint32
	segment    uint32
	store      uint32

	parent          uint32
	children        uint32
	firstChild      uint32
	lastChild       uint32
	previousSibling uint32
	nextSibling     uint32
}

// releasedDatum is the state of a slot between lifetimes.
var releasedDatum = Datum{
	generation:      0,
	segment:         none,
	store:           none,
	parent:          none,
	children:        0,
	firstChild:      none,
	lastChild:       none,
	previousSibling: none,
	nextSibling:     none,
}

// Generation returns the generation currently owning the slot.
func (d *Datum) Generation() uint32 { return d.generation }

// Segment returns the index of the segment holding the entity.
func (d *Datum) Segment() uint32 { return d.segment }

// Store returns the entity's row within its segment.
func (d *Datum) Store() uint32 { return d.store }

// Parent returns the parent link, or the sentinel when the entity is a root.
func (d *Datum) Parent() uint32 { return d.parent }

// ChildrenCount returns the length of the child list.
func (d *Datum) ChildrenCount() uint32 { return d.children }

// Initialized reports whether the slot holds a live entity.
func (d *Datum) Initialized() bool {
	return d.segment != none && d.store != none
}

// Released reports whether the slot is free.
func (d *Datum) Released() bool {
	return d.segment == none && d.store == none
}

func (d *Datum) valid(generation uint32) bool {
	return d.generation == generation && d.Initialized()
}

func (d *Datum) entity(index uint32) Entity {
	return Entity{index: index, generation: d.generation}
}

// Entities is the world's entity table: a dense array of datums indexed by
// entity index, plus a free list of released slots. Index allocation is
// lock-free; both the data array and the free list change shape only during
// Resolve, at synchronization points.
type Entities struct {
	data         []Datum
	dataReserved atomic.Uint64
	free         []Entity
	freeCount    atomic.Int64
}

func newEntities(capacity int) *Entities {
	return &Entities{
		data: make([]Datum, 0, capacity),
		free: make([]Entity, 0, capacity),
	}
}

// Count returns the committed size of the table.
func (e *Entities) Count() int {
	return len(e.data)
}

// Reserve fills buf with allocated entities: released slots first (with the
// generation bumped; slots whose generation saturated are abandoned), then
// brand-new indices from the append cursor. It returns how many positions of
// buf refer to slots that already exist in the committed table; the rest
// become addressable only after Resolve. Safe from any thread.
func (e *Entities) Reserve(buf []Entity) int {
	if len(buf) == 0 {
		return 0
	}

	done := 0
	count := int64(len(buf))
	last := e.freeCount.Add(-count) + count
	if last > 0 {
		take := count
		if last < take {
			take = last
		}
		for _, entity := range e.free[last-take : last] {
			// An index whose generation reached the maximum is abandoned
			// rather than recycled with a wrapped generation.
			if entity.generation < math.MaxUint32 {
				buf[done] = Entity{index: entity.index, generation: entity.generation + 1}
				done++
			}
		}
	}

	committed := done
	remain := len(buf) - done
	if remain == 0 {
		return committed
	}

	index := e.dataReserved.Add(uint64(remain)) - uint64(remain)
	// Index math.MaxUint32 is the link sentinel, so it must never become a
	// real entity index.
	if index+uint64(remain) >= math.MaxUint32 {
		panic(bark.AddTrace(fmt.Errorf("entity index space exhausted at %d", index)))
	}
	for done < len(buf) {
		if index < uint64(len(e.data)) {
			committed++
		}
		buf[done] = Entity{index: uint32(index), generation: 0}
		done++
		index++
	}
	return committed
}

// Resolve commits the append cursor, growing the data array with released
// slots, and drops free-list entries popped since the last resolution.
// Single-threaded.
func (e *Entities) Resolve() {
	reserved := e.dataReserved.Load()
	for uint64(len(e.data)) < reserved {
		e.data = append(e.data, releasedDatum)
	}

	remaining := e.freeCount.Load()
	if remaining < 0 {
		remaining = 0
	}
	e.free = e.free[:remaining]
	e.freeCount.Store(int64(len(e.free)))
}

// Release returns entities to the free list and marks their slots released.
// The released slot keeps its generation so the next reuse can bump it.
func (e *Entities) Release(entities []Entity) {
	remaining := e.freeCount.Load()
	if remaining < 0 {
		remaining = 0
	}
	e.free = e.free[:remaining]

	for _, entity := range entities {
		datum := &e.data[entity.index]
		datum.segment = none
		datum.store = none
		e.free = append(e.free, entity)
	}
	e.freeCount.Store(int64(len(e.free)))
}

// Initialize writes a full datum into a released slot. It reports false when
// the slot is already initialized, leaving it untouched.
func (e *Entities) Initialize(index uint32, datum Datum) bool {
	if int(index) >= len(e.data) {
		return false
	}
	target := &e.data[index]
	if !target.Released() {
		return false
	}
	*target = datum
	return true
}

// Update repoints a live slot at a new (segment, row) location, as swap
// removal requires. It reports false for released slots.
func (e *Entities) Update(index, segment, store uint32) bool {
	datum, ok := e.At(index)
	if !ok || !datum.Initialized() {
		return false
	}
	datum.segment = segment
	datum.store = store
	return true
}

// Get returns the datum for a live entity, validating its generation.
func (e *Entities) Get(entity Entity) (*Datum, bool) {
	datum, ok := e.At(entity.index)
	if !ok || !datum.valid(entity.generation) {
		return nil, false
	}
	return datum, true
}

// At returns the datum at an index with no generation check.
func (e *Entities) At(index uint32) (*Datum, bool) {
	if int(index) >= len(e.data) {
		return nil, false
	}
	return &e.data[index], true
}

// Has reports whether the entity is alive.
func (e *Entities) Has(entity Entity) bool {
	_, ok := e.Get(entity)
	return ok
}
