package forge

// deferredDuplicate carries the snapshot of a source row whose copies could
// not be written synchronously.
type deferredDuplicate struct {
	segment   *Segment
	start     int
	entities  []Entity
	snapshots []*Store
}

// Duplicate reserves count copies of an entity within its segment, cloning
// the source row. When the reservation fits the committed table and the
// segment's capacity the clones are written immediately; otherwise the
// source row is snapshotted and cloning happens at resolution. The returned
// handles are valid either way, but the copies' components are observable
// only after the next synchronization point.
func (m *Mutator) Duplicate(entity Entity, count int) ([]Entity, error) {
	if count == 0 {
		return nil, nil
	}
	datum, ok := m.world.entities.Get(entity)
	if !ok {
		return nil, InvalidEntityError{Entity: entity}
	}
	segment := m.world.segments[datum.segment]
	if !segment.CanClone() {
		var err error
		for _, store := range segment.Stores() {
			if !store.meta.CanClone() {
				err = mergeErrors(err, MissingCloneError{Name: store.meta.name})
			}
		}
		if err == nil {
			err = SegmentMustBeClonableError{Segment: segment.index}
		}
		return nil, flattenError(err)
	}

	m.touch(segment)
	buf := make([]Entity, count)
	ready := m.world.entities.Reserve(buf)
	start, granted := segment.Reserve(count)

	if ready < count || granted < count {
		snapshots := make([]*Store, len(segment.Stores()))
		for i, store := range segment.Stores() {
			chunk, err := store.Chunk(int(datum.store), 1)
			if err != nil {
				return nil, err
			}
			snapshots[i] = chunk
		}
		m.duplicates = append(m.duplicates, &deferredDuplicate{
			segment:   segment,
			start:     start,
			entities:  buf,
			snapshots: snapshots,
		})
		return buf, nil
	}

	StoreSetAll(segment.EntityStore(), start, buf)
	row := int(datum.store)
	for _, store := range segment.Stores() {
		if err := store.FillFrom(store, row, start, count); err != nil {
			return nil, err
		}
	}
	for i, clone := range buf {
		m.initializeRoot(clone, segment.index, start+i)
	}
	return buf, nil
}

func (m *Mutator) resolveDuplicate(record *deferredDuplicate) error {
	segment := record.segment
	StoreSetAll(segment.EntityStore(), record.start, record.entities)
	for i, store := range segment.Stores() {
		if err := store.FillFrom(record.snapshots[i], 0, record.start, len(record.entities)); err != nil {
			return err
		}
		record.snapshots[i].Drop(0, 1)
	}
	for i, clone := range record.entities {
		m.initializeRoot(clone, segment.index, record.start+i)
	}
	return nil
}
