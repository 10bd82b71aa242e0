package forge

import (
	"sync/atomic"

	"github.com/TheBitDrifter/mask"
)

// Segment owns the ordered row space for every entity sharing one exact
// component-type set. Its identity, the set of component metas encoded as a
// bitmask of meta indices, never changes after creation. One store per
// component type plus a store of Entity handles all share the same count and
// capacity.
//
// Rows are added in two phases: Reserve hands out row indices lock-free from
// any thread, and Resolve (single-threaded, at a synchronization point) grows
// the stores and commits the reserved rows into count.
type Segment struct {
	identifier uint64
	index      uint32
	key        mask.Mask
	count      int
	capacity   int
	reserved   atomic.Int64
	canClone   bool

	entityStore *Store
	stores      []*Store // ordered by meta index
	storeSlots  map[uint32]int
}

func newSegment(index uint32, key mask.Mask, entityMeta *Meta, metas []*Meta) *Segment {
	seg := &Segment{
		identifier:  identify(),
		index:       index,
		key:         key,
		entityStore: newStore(entityMeta, 0),
		storeSlots:  make(map[uint32]int, len(metas)),
		canClone:    true,
	}
	// Component stores follow the world's metadata order so that identical
	// type sets always produce identical store layouts.
	for _, meta := range metas {
		seg.storeSlots[meta.index] = len(seg.stores)
		seg.stores = append(seg.stores, newStore(meta, 0))
		if !meta.CanClone() {
			seg.canClone = false
		}
	}
	return seg
}

// Identifier returns the segment's world-unique instance identifier.
func (s *Segment) Identifier() uint64 {
	return s.identifier
}

// Index returns the segment's position in the world's segment list.
func (s *Segment) Index() uint32 {
	return s.index
}

// Mask returns the archetype key: one bit per component meta index.
func (s *Segment) Mask() mask.Mask {
	return s.key
}

// Count returns the number of committed rows.
func (s *Segment) Count() int {
	return s.count
}

// Capacity returns the allocated row capacity of every store.
func (s *Segment) Capacity() int {
	return s.capacity
}

// CanClone reports whether every component store in the segment can clone,
// which duplication requires.
func (s *Segment) CanClone() bool {
	return s.canClone
}

// EntityStore returns the column of entity handles.
func (s *Segment) EntityStore() *Store {
	return s.entityStore
}

// Stores returns the component stores in metadata order.
func (s *Segment) Stores() []*Store {
	return s.stores
}

// StoreFor returns the component store holding values of the given meta.
func (s *Segment) StoreFor(meta *Meta) (*Store, error) {
	slot, ok := s.storeSlots[meta.index]
	if !ok {
		return nil, MissingStoreError{Name: meta.name, Segment: s.index}
	}
	return s.stores[slot], nil
}

// Has reports whether the segment stores the given meta.
func (s *Segment) Has(meta *Meta) bool {
	_, ok := s.storeSlots[meta.index]
	return ok
}

// Reserve claims n rows after the committed row space. It returns the row at
// which the claim starts and how many of the claimed rows fall within the
// current capacity; the remainder only becomes writable after Resolve grows
// the stores. Safe to call from any thread without locks.
func (s *Segment) Reserve(n int) (start, granted int) {
	start = s.count + int(s.reserved.Add(int64(n))) - n
	if start+n > s.capacity {
		within := s.capacity - start
		if within < 0 {
			within = 0
		}
		return start, within
	}
	return start, n
}

// Resolve commits all reserved rows, growing every store to the next power
// of two that fits them. Single-threaded; runs at synchronization points.
// The entity-store slots of rows that were granted within capacity must have
// been written by the reserving caller before resolution.
func (s *Segment) Resolve() {
	reserved := int(s.reserved.Swap(0))
	count := s.count + reserved
	s.count = count

	if s.capacity < count {
		capacity := nextPowerOfTwo(count)
		s.entityStore.Resize(s.capacity, capacity)
		for _, store := range s.stores {
			store.Resize(s.capacity, capacity)
		}
		s.capacity = capacity
	}
}

// RemoveAt swap-removes one committed row. It reports whether another row
// was moved into the hole; if so, the moved row's entity now lives at `row`
// and the caller must repoint its entity-table datum.
func (s *Segment) RemoveAt(row int) bool {
	if row >= s.count {
		return false
	}
	s.count--
	if row == s.count {
		s.entityStore.Drop(row, 1)
		for _, store := range s.stores {
			store.Drop(row, 1)
		}
		return false
	}
	s.entityStore.Squash(s.count, row, 1)
	for _, store := range s.stores {
		store.Squash(s.count, row, 1)
	}
	return true
}

// Clear drops every committed row.
func (s *Segment) Clear() {
	s.entityStore.Drop(0, s.count)
	for _, store := range s.stores {
		store.Drop(0, s.count)
	}
	s.count = 0
}

// EntityAt returns the entity committed at the given row.
func (s *Segment) EntityAt(row int) (Entity, error) {
	if row >= s.count {
		return Null(), SegmentIndexOutOfRangeError{Index: row, Segment: s.index}
	}
	return *StoreGet[Entity](s.entityStore, row), nil
}

func nextPowerOfTwo(n int) int {
	power := 1
	for power < n {
		power <<= 1
	}
	return power
}
