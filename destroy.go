package forge

// destroyOne removes an entity from its segment, repoints whatever row the
// swap moved, detaches the family on both sides, and frees the slot. Stale
// handles are ignored.
func (m *Mutator) destroyOne(entity Entity) error {
	entities := m.world.entities
	datum, ok := entities.Get(entity)
	if !ok {
		return nil
	}
	segment := m.world.segments[datum.segment]
	row := int(datum.store)

	entities.Reject(entity)
	entities.RejectAll(entity)

	if segment.RemoveAt(row) {
		moved := *StoreGet[Entity](segment.EntityStore(), row)
		if !entities.Update(moved.index, segment.index, uint32(row)) {
			return FailedToUpdateError{Entity: moved.index, Store: uint32(row), Segment: segment.index}
		}
	}
	entities.Release([]Entity{entity})
	return nil
}
