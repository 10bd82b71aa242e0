package forge

import (
	"fmt"
	"reflect"
)

// Scope distinguishes where a conflict matters: within one system's own
// accessors (inner) or across two concurrently scheduled systems (outer).
type Scope uint8

const (
	ScopeNone Scope = iota
	ScopeAll
	ScopeInner
	ScopeOuter
)

func (s Scope) String() string {
	switch s {
	case ScopeAll:
		return "all"
	case ScopeInner:
		return "inner"
	case ScopeOuter:
		return "outer"
	default:
		return "none"
	}
}

// Identifier names the resource a dependency touches: either a type (for
// process-global singletons like component columns) or an opaque instance
// value (for things like resource stores). Two dependencies relate only when
// their identifiers are equal.
type Identifier struct {
	typ   reflect.Type
	value uint64
}

// TypeIdentifier tags a dependency with a type identity.
func TypeIdentifier(typ reflect.Type) Identifier {
	return Identifier{typ: typ}
}

// ValueIdentifier tags a dependency with an instance identity.
func ValueIdentifier(value uint64) Identifier {
	return Identifier{value: value}
}

// DependencyKind is the access class a dependency declares.
type DependencyKind uint8

const (
	DependUnknown DependencyKind = iota
	DependRead
	DependWrite
	DependDefer
)

// Dependency is one declared access: a kind, the identifier it touches, an
// optional segment restriction, and an optional scope under which it is
// ignored.
type Dependency struct {
	kind       DependencyKind
	identifier Identifier
	name       string
	at         int   // -1 when the dependency covers every index
	ignored    Scope // ScopeNone when active everywhere
}

// ReadOf declares a shared read of the identified resource.
func ReadOf(identifier Identifier, name string) Dependency {
	return Dependency{kind: DependRead, identifier: identifier, name: name, at: -1}
}

// WriteOf declares an exclusive write of the identified resource.
func WriteOf(identifier Identifier, name string) Dependency {
	return Dependency{kind: DependWrite, identifier: identifier, name: name, at: -1}
}

// DeferOf declares that the system will enqueue deferred work that touches
// the identified resource at resolution time. Defers coexist with reads and
// writes inside one system. In the outer scope a read or write detected after
// a recorded defer conflicts with it; a defer itself never reports a conflict.
func DeferOf(identifier Identifier, name string) Dependency {
	return Dependency{kind: DependDefer, identifier: identifier, name: name, at: -1}
}

// UnknownDependency declares an opaque access that always conflicts across
// systems.
func UnknownDependency() Dependency {
	return Dependency{kind: DependUnknown, at: -1}
}

// At narrows the dependency to one segment index.
func (d Dependency) At(index int) Dependency {
	d.at = index
	return d
}

// Ignore suppresses the dependency under the given scope.
func (d Dependency) Ignore(scope Scope) Dependency {
	d.ignored = scope
	return d
}

// Kind returns the dependency's access class.
func (d Dependency) Kind() DependencyKind {
	return d.kind
}

// Name returns the display name of the touched resource.
func (d Dependency) Name() string {
	return d.name
}

// ConflictKind classifies a detected conflict.
type ConflictKind uint8

const (
	UnknownConflict ConflictKind = iota
	ReadWriteConflict
	WriteWriteConflict
	ReadDeferConflict
	WriteDeferConflict
)

func (k ConflictKind) String() string {
	switch k {
	case ReadWriteConflict:
		return "read/write"
	case WriteWriteConflict:
		return "write/write"
	case ReadDeferConflict:
		return "read/defer"
	case WriteDeferConflict:
		return "write/defer"
	default:
		return "unknown"
	}
}

// ConflictError reports two dependencies that cannot coexist in the scope
// they were detected under.
type ConflictError struct {
	Kind    ConflictKind
	Scope   Scope
	Name    string
	Segment int // -1 when the conflict is not segment-scoped
}

func (e ConflictError) Error() string {
	if e.Kind == UnknownConflict {
		return fmt.Sprintf("unknown conflict in %s scope", e.Scope)
	}
	if e.Segment >= 0 {
		return fmt.Sprintf("%s conflict on %s at segment %d in %s scope", e.Kind, e.Name, e.Segment, e.Scope)
	}
	return fmt.Sprintf("%s conflict on %s in %s scope", e.Kind, e.Name, e.Scope)
}

// has tracks which indices of one identifier a prior dependency covered:
// nothing, everything, or a specific index set.
type has struct {
	all     bool
	indices map[int]struct{}
}

func (h *has) add(index int) {
	if h.all {
		return
	}
	if h.indices == nil {
		h.indices = make(map[int]struct{})
	}
	h.indices[index] = struct{}{}
}

func (h *has) addAll() {
	h.all = true
	h.indices = nil
}

func (h *has) at(index int) bool {
	if h.all {
		return true
	}
	_, ok := h.indices[index]
	return ok
}

// Conflict accumulates dependencies and detects collisions among them. One
// detector is reused across pairwise comparisons; Clear resets it.
type Conflict struct {
	unknown bool
	reads   map[Identifier]*has
	writes  map[Identifier]*has
	defers  map[Identifier]*has
}

// NewConflict builds an empty detector.
func NewConflict() *Conflict {
	return &Conflict{
		reads:  make(map[Identifier]*has),
		writes: make(map[Identifier]*has),
		defers: make(map[Identifier]*has),
	}
}

// Clear forgets every accumulated dependency.
func (c *Conflict) Clear() {
	c.unknown = false
	clear(c.reads)
	clear(c.writes)
	clear(c.defers)
}

// Detect walks the dependencies under the given scope, accumulating them and
// returning the first collision with anything seen before.
func (c *Conflict) Detect(scope Scope, dependencies []Dependency) error {
	if scope == ScopeOuter && c.unknown {
		return ConflictError{Kind: UnknownConflict, Scope: scope, Segment: -1}
	}
	for _, dependency := range dependencies {
		if err := c.conflict(scope, dependency); err != nil {
			return err
		}
	}
	return nil
}

func (c *Conflict) conflict(scope Scope, d Dependency) error {
	if d.ignored != ScopeNone && (d.ignored == scope || d.ignored == ScopeAll) {
		return nil
	}

	if d.kind == DependUnknown {
		c.unknown = true
		if scope == ScopeOuter {
			return ConflictError{Kind: UnknownConflict, Scope: scope, Segment: -1}
		}
		return nil
	}

	if d.at >= 0 {
		switch d.kind {
		case DependRead:
			if hasAt(c.writes, d.identifier, d.at) {
				return ConflictError{Kind: ReadWriteConflict, Scope: scope, Name: d.name, Segment: d.at}
			}
			if scope == ScopeOuter && hasAt(c.defers, d.identifier, d.at) {
				return ConflictError{Kind: ReadDeferConflict, Scope: scope, Name: d.name, Segment: d.at}
			}
			addAt(c.reads, d.identifier, d.at)
		case DependWrite:
			if hasAt(c.reads, d.identifier, d.at) {
				return ConflictError{Kind: ReadWriteConflict, Scope: scope, Name: d.name, Segment: d.at}
			}
			if hasAt(c.writes, d.identifier, d.at) {
				return ConflictError{Kind: WriteWriteConflict, Scope: scope, Name: d.name, Segment: d.at}
			}
			if scope == ScopeOuter && hasAt(c.defers, d.identifier, d.at) {
				return ConflictError{Kind: WriteDeferConflict, Scope: scope, Name: d.name, Segment: d.at}
			}
			addAt(c.writes, d.identifier, d.at)
		case DependDefer:
			addAt(c.defers, d.identifier, d.at)
		}
		return nil
	}

	switch d.kind {
	case DependRead:
		if hasAny(c.writes, d.identifier) {
			return ConflictError{Kind: ReadWriteConflict, Scope: scope, Name: d.name, Segment: -1}
		}
		if scope == ScopeOuter && hasAny(c.defers, d.identifier) {
			return ConflictError{Kind: ReadDeferConflict, Scope: scope, Name: d.name, Segment: -1}
		}
		addAll(c.reads, d.identifier)
	case DependWrite:
		if hasAny(c.reads, d.identifier) {
			return ConflictError{Kind: ReadWriteConflict, Scope: scope, Name: d.name, Segment: -1}
		}
		if hasAny(c.writes, d.identifier) {
			return ConflictError{Kind: WriteWriteConflict, Scope: scope, Name: d.name, Segment: -1}
		}
		if scope == ScopeOuter && hasAny(c.defers, d.identifier) {
			return ConflictError{Kind: WriteDeferConflict, Scope: scope, Name: d.name, Segment: -1}
		}
		addAll(c.writes, d.identifier)
	case DependDefer:
		addAll(c.defers, d.identifier)
	}
	return nil
}

func addAt(m map[Identifier]*has, identifier Identifier, index int) {
	h, ok := m[identifier]
	if !ok {
		h = &has{}
		m[identifier] = h
	}
	h.add(index)
}

func addAll(m map[Identifier]*has, identifier Identifier) {
	h, ok := m[identifier]
	if !ok {
		h = &has{}
		m[identifier] = h
	}
	h.addAll()
}

func hasAt(m map[Identifier]*has, identifier Identifier, index int) bool {
	h, ok := m[identifier]
	return ok && h.at(index)
}

// hasAny matches only records that cover every index. An unscoped probe does
// not collide with purely index-scoped records; the indexed side of the pair
// performs that comparison instead.
func hasAny(m map[Identifier]*has, identifier Identifier) bool {
	h, ok := m[identifier]
	return ok && h.all
}
