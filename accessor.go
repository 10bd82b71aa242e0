package forge

// Accessor is a typed handle to one component type's columns. It resolves a
// segment's store for T and reads or writes rows directly; the scheduler's
// dependency analysis keeps concurrent access disciplined.
type Accessor[T any] struct {
	meta *Meta
}

// FactoryNewAccessor registers T with the world and returns its accessor.
func FactoryNewAccessor[T any](w *World) Accessor[T] {
	return Accessor[T]{meta: MetaOf[T](w)}
}

// Meta returns the accessed component's metadata.
func (a Accessor[T]) Meta() *Meta {
	return a.meta
}

// Check reports whether the segment stores T.
func (a Accessor[T]) Check(segment *Segment) bool {
	return segment.Has(a.meta)
}

// Slice returns the committed rows of T in the segment.
func (a Accessor[T]) Slice(segment *Segment) ([]T, error) {
	store, err := segment.StoreFor(a.meta)
	if err != nil {
		return nil, err
	}
	return StoreSlice[T](store, 0, segment.Count()), nil
}

// Get returns a pointer to the value at one committed row of the segment.
func (a Accessor[T]) Get(segment *Segment, row int) (*T, error) {
	store, err := segment.StoreFor(a.meta)
	if err != nil {
		return nil, err
	}
	if row >= segment.Count() {
		return nil, SegmentIndexOutOfRangeError{Index: row, Segment: segment.Index()}
	}
	return StoreGet[T](store, row), nil
}

// GetFromCursor retrieves the component value at the cursor position.
func (a Accessor[T]) GetFromCursor(cursor *Cursor) *T {
	store, err := cursor.currentSegment.StoreFor(a.meta)
	if err != nil {
		return nil
	}
	return StoreGet[T](store, cursor.Row())
}

// GetFromCursorSafe retrieves the component value at the cursor position,
// checking that the component exists in the cursor's segment.
func (a Accessor[T]) GetFromCursorSafe(cursor *Cursor) (bool, *T) {
	if cursor.currentSegment == nil || !a.Check(cursor.currentSegment) {
		return false, nil
	}
	return true, a.GetFromCursor(cursor)
}

// GetFromEntity retrieves the component value for a live entity.
func (a Accessor[T]) GetFromEntity(w *World, entity Entity) (*T, error) {
	datum, ok := w.Entities().Get(entity)
	if !ok {
		return nil, InvalidEntityError{Entity: entity}
	}
	segment, err := w.SegmentAt(datum.segment)
	if err != nil {
		return nil, err
	}
	return a.Get(segment, int(datum.store))
}
