package forge

// Shared test component and resource types.

type Position struct {
	X, Y float64
}

type Velocity struct {
	DX, DY float64
}

type Health struct {
	Current, Max int
}

type Tag struct{}

type Time struct {
	Elapsed float64
}

// Handle is registered without a cloner in tests that exercise duplication
// failures.
type Handle struct {
	ID int
}

// Counter clones with a side effect so deep cloning is observable.
type Counter struct {
	Value  int
	Cloned bool
}

func (c Counter) Clone() Counter {
	c.Cloned = true
	return c
}

// checkWorldInvariants asserts the storage invariants that must hold at
// every synchronization point.
func checkWorldInvariants(w *World) []string {
	var violations []string
	for _, segment := range w.Segments() {
		if segment.Count() > segment.Capacity() {
			violations = append(violations, "segment count exceeds capacity")
		}
		for row := 0; row < segment.Count(); row++ {
			entity := *StoreGet[Entity](segment.EntityStore(), row)
			datum, ok := w.Entities().Get(entity)
			if !ok {
				violations = append(violations, "segment row holds a dead entity")
				continue
			}
			if datum.Segment() != segment.Index() || datum.Store() != uint32(row) {
				violations = append(violations, "entity table does not point back at its segment row")
			}
		}
	}
	for index := 0; index < w.Entities().Count(); index++ {
		datum, _ := w.Entities().At(uint32(index))
		if datum.Released() {
			continue
		}
		entity := datum.entity(uint32(index))

		// No entity is its own ancestor.
		for _, ancestor := range w.Entities().AncestorsOf(entity) {
			if ancestor.Index() == entity.Index() {
				violations = append(violations, "entity is its own ancestor")
			}
		}

		// The child list is a chain of exactly children entries, each
		// pointing back at the parent.
		children := w.Entities().ChildrenOf(entity)
		seen := 0
		for child := range children.All() {
			childDatum, ok := w.Entities().Get(child)
			if !ok {
				violations = append(violations, "child list holds a dead entity")
				continue
			}
			if childDatum.Parent() != entity.Index() {
				violations = append(violations, "child does not point back at its parent")
			}
			seen++
		}
		if seen != int(datum.ChildrenCount()) {
			violations = append(violations, "child list length disagrees with the child counter")
		}
	}
	return violations
}
