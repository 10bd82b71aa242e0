package forge

// Store is one growable column of component values inside a segment (or a
// capacity-one column backing a resource). The column is boxed as a []T and
// manipulated through the meta's function table, so a Store can be handled
// without knowing T. Rows below the owning segment's count are live; rows
// above it are reserved scratch that must be written before they commit.
type Store struct {
	identifier uint64
	meta       *Meta
	data       any
}

func newStore(meta *Meta, capacity int) *Store {
	return &Store{
		identifier: identify(),
		meta:       meta,
		data:       meta.allocate(capacity),
	}
}

// Identifier returns the store's world-unique instance identifier, used to
// tag dependencies on instance-scoped resources.
func (s *Store) Identifier() uint64 {
	return s.identifier
}

// Meta returns the metadata of the stored type.
func (s *Store) Meta() *Meta {
	return s.meta
}

// Data exposes the boxed column for typed access through StoreSlice and
// friends.
func (s *Store) Data() any {
	return s.data
}

// Resize swaps the column for one of newCapacity slots, carrying over the
// first min(oldCapacity, newCapacity) values. Must not run concurrently with
// any reader of this store; the runtime only calls it during resolution.
func (s *Store) Resize(oldCapacity, newCapacity int) {
	next := s.meta.allocate(newCapacity)
	carry := oldCapacity
	if newCapacity < carry {
		carry = newCapacity
	}
	s.meta.copy(s.data, 0, next, 0, carry)
	s.data = next
}

// CopyTo bitwise-moves n initialized rows into dst, which must hold the same
// type. Destination rows are overwritten without running drops; callers
// squash or target fresh rows.
func (s *Store) CopyTo(srcRow int, dst *Store, dstRow, n int) {
	s.meta.copy(s.data, srcRow, dst.data, dstRow, n)
}

// CloneTo clones n rows into uninitialized destination rows, failing when
// the type has no cloner.
func (s *Store) CloneTo(srcRow int, dst *Store, dstRow, n int) error {
	if s.meta.cloner == nil {
		return MissingCloneError{Name: s.meta.name}
	}
	s.meta.cloner(s.data, srcRow, dst.data, dstRow, n)
	return nil
}

// FillFrom clones the single row src[srcRow] into n destination rows.
func (s *Store) FillFrom(src *Store, srcRow, dstRow, n int) error {
	if src.meta.filler == nil {
		return MissingCloneError{Name: src.meta.name}
	}
	src.meta.filler(src.data, srcRow, s.data, dstRow, n)
	return nil
}

// Squash drops row `to` and moves row `from` into its place. Used by
// swap-removal; `from` is left logically uninitialized.
func (s *Store) Squash(from, to, n int) {
	s.meta.drop(s.data, to, n)
	s.meta.copy(s.data, from, s.data, to, n)
}

// Drop releases n rows starting at row, returning them to the uninitialized
// state so the garbage collector can reclaim what they referenced.
func (s *Store) Drop(row, n int) {
	s.meta.drop(s.data, row, n)
}

// Default writes the type's zero value into n rows starting at row.
func (s *Store) Default(row, n int) {
	s.meta.defaulter(s.data, row, n)
}

// Chunk clones n rows starting at row into a fresh store of exactly that
// capacity. Used to snapshot rows for deferred duplication.
func (s *Store) Chunk(row, n int) (*Store, error) {
	chunk := newStore(s.meta, n)
	if err := s.CloneTo(row, chunk, 0, n); err != nil {
		return nil, err
	}
	return chunk, nil
}

// Format renders the value at row for debug output.
func (s *Store) Format(row int) string {
	return s.meta.Format(s.data, row)
}

// StoreSlice returns rows [row, row+n) of the column as a typed slice. The
// caller is responsible for bounds and for observing the scheduler's
// read/write discipline.
func StoreSlice[T any](s *Store, row, n int) []T {
	return s.data.([]T)[row : row+n]
}

// StoreGet returns a pointer to one row of the column.
func StoreGet[T any](s *Store, row int) *T {
	return &s.data.([]T)[row]
}

// StoreSet writes one value into a row that holds no live value.
func StoreSet[T any](s *Store, row int, value T) {
	s.data.([]T)[row] = value
}

// StoreSetAll writes values into consecutive rows starting at row.
func StoreSetAll[T any](s *Store, row int, values []T) {
	copy(s.data.([]T)[row:row+len(values)], values)
}
