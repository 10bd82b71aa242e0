package forge

// factory implements the factory pattern for the runtime's entry points.
type factory struct{}

// Factory is the global factory instance.
var Factory factory

// NewWorld creates an empty world.
func (f factory) NewWorld() *World {
	return NewWorld()
}

// NewQuery creates a new Query over the world's segments.
func (f factory) NewQuery(w *World) Query {
	return newQuery()
}

// NewCursor creates a cursor over the segments matching the query.
func (f factory) NewCursor(query QueryNode, w *World) *Cursor {
	return newCursor(query, w)
}

// NewMutator creates a deferred-mutation queue over the world.
func (f factory) NewMutator(w *World) *Mutator {
	return NewMutator(w)
}
