package forge

// Injector gives ad-hoc code the same scheduled access systems get: it wraps
// injected state in a single-system schedule, so each Run performs a full
// tick: update on version changes, inner conflict analysis, the body, then
// resolution of deferred work.
type Injector struct {
	runner *Runner
	system *injectSystem
}

// NewInjector builds an injector over the given injected state.
func NewInjector(w *World, injects ...Inject) (*Injector, error) {
	system := &injectSystem{injects: injects}
	runner, err := w.Scheduler().Add(system).Schedule()
	if err != nil {
		return nil, err
	}
	return &Injector{runner: runner, system: system}, nil
}

// Run executes fn as the system body of one tick.
func (inj *Injector) Run(w *World, fn func() error) error {
	inj.system.run = func(*World) error { return fn() }
	defer func() { inj.system.run = nil }()
	return inj.runner.Run(w)
}

// Read is shared access to the resource T, backed by its capacity-one store.
type Read[T any] struct {
	store *Store
}

var _ Inject = &Read[int]{}

// NewRead initializes (if needed) and binds the resource T for reading. A
// nil init falls back to the zero value.
func NewRead[T any](w *World, init func(*World) (T, error)) (*Read[T], error) {
	store, err := ResourceOf[T](w, init)
	if err != nil {
		return nil, err
	}
	return &Read[T]{store: store}, nil
}

// Get returns the resource value.
func (r *Read[T]) Get() *T {
	return StoreGet[T](r.store, 0)
}

func (r *Read[T]) Update(w *World) error {
	return nil
}

func (r *Read[T]) Depend() []Dependency {
	return []Dependency{ReadOf(ValueIdentifier(r.store.identifier), r.store.meta.name)}
}

func (r *Read[T]) Resolve(w *World) error {
	return nil
}

// Write is exclusive access to the resource T.
type Write[T any] struct {
	store *Store
}

var _ Inject = &Write[int]{}

// NewWrite initializes (if needed) and binds the resource T for writing.
func NewWrite[T any](w *World, init func(*World) (T, error)) (*Write[T], error) {
	store, err := ResourceOf[T](w, init)
	if err != nil {
		return nil, err
	}
	return &Write[T]{store: store}, nil
}

// Get returns the resource value for mutation.
func (w *Write[T]) Get() *T {
	return StoreGet[T](w.store, 0)
}

func (w *Write[T]) Update(world *World) error {
	return nil
}

func (w *Write[T]) Depend() []Dependency {
	return []Dependency{WriteOf(ValueIdentifier(w.store.identifier), w.store.meta.name)}
}

func (w *Write[T]) Resolve(world *World) error {
	return nil
}

// View declares component access across every segment matching its metas:
// shared for reads, exclusive for writes, tagged per segment so disjoint
// archetypes never serialize against each other. The matched segment list
// refreshes whenever the world's version moves.
type View struct {
	world   *World
	reads   []*Meta
	writes  []*Meta
	node    QueryNode
	version uint64

	matched      []*Segment
	dependencies []Dependency
}

var _ Inject = &View{}

// NewView builds a view over segments containing all of the given metas.
func NewView(w *World, reads []*Meta, writes []*Meta) *View {
	query := newQuery()
	all := make([]*Meta, 0, len(reads)+len(writes))
	all = append(all, reads...)
	all = append(all, writes...)
	v := &View{reads: reads, writes: writes, node: query.And(all)}
	_ = v.Update(w)
	return v
}

// Update rematches segments and rebuilds dependencies after structural
// changes.
func (v *View) Update(w *World) error {
	v.world = w
	if v.version == w.version && v.dependencies != nil {
		return nil
	}
	v.matched = matchingSegments(v.node, w)
	v.dependencies = v.dependencies[:0]
	for _, segment := range v.matched {
		at := int(segment.index)
		for _, meta := range v.reads {
			v.dependencies = append(v.dependencies, ReadOf(TypeIdentifier(meta.typ), meta.name).At(at))
		}
		for _, meta := range v.writes {
			v.dependencies = append(v.dependencies, WriteOf(TypeIdentifier(meta.typ), meta.name).At(at))
		}
	}
	v.version = w.version
	return nil
}

func (v *View) Depend() []Dependency {
	return v.dependencies
}

func (v *View) Resolve(w *World) error {
	return nil
}

// Segments returns the matched segments.
func (v *View) Segments() []*Segment {
	return v.matched
}

// Cursor iterates the matched segments' committed rows.
func (v *View) Cursor() *Cursor {
	return &Cursor{query: v.node, world: v.world, matchedSegments: v.matched, initialized: true}
}

// EntitiesRead declares shared access to the entity table, for systems that
// navigate families during their run.
type EntitiesRead struct{}

var _ Inject = EntitiesRead{}

func (EntitiesRead) Update(w *World) error {
	return nil
}

func (EntitiesRead) Depend() []Dependency {
	return []Dependency{ReadOf(TypeIdentifier(entitiesType), "Entities")}
}

func (EntitiesRead) Resolve(w *World) error {
	return nil
}
