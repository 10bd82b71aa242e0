package forge

import "reflect"

// Create reserves and writes the entities a template describes. The
// prototype passed at construction fixes the template's shape: its
// segments, stores, and (for statically sized templates) row counts. Each
// batch then applies instance values.
//
// Creation is optimistic: when the entity-table reservation lands within the
// committed table and every segment reservation fits its capacity, component
// values and datums are written synchronously during the system's run.
// Otherwise the batch is recorded and replayed at the next synchronization
// point, after the table and segments have grown. Either way the returned
// handles are valid immediately; the rows become queryable after the next
// synchronization point commits them.
type Create struct {
	world     *World
	mutator   *Mutator
	prototype Template

	state          TemplateState
	segmentIndices []SegmentIndices
	entityIndices  []EntityIndices
	staticNodes    int // -1 when the template is dynamically sized
	dependencies   []Dependency
}

var _ Inject = &Create{}

// deferredCreate is one batch that could not complete synchronously.
type deferredCreate struct {
	create         *Create
	templates      []Template
	roots          [][2]int
	multiplier     int
	instances      []Entity
	entityIndices  []EntityIndices
	segmentIndices []SegmentIndices
	deferFrom      int // first segment slot whose entity rows are unwritten
}

// NewCreate declares and initializes the prototype against the world,
// creating any segments the template needs, and binds the creator to the
// mutator whose resolution will commit its batches.
func NewCreate(w *World, mutator *Mutator, prototype Template) (*Create, error) {
	c := &Create{
		world:     w,
		mutator:   mutator,
		prototype: prototype,
	}

	var segmentMetas [][]*Meta
	root := spawnTemplate{child: prototype}
	declared := root.Declare(newDeclareContext(&segmentMetas, w))

	segmentToSlot := make(map[uint32]int)
	metasToSegment := make(map[int]int, len(segmentMetas))
	for i, metas := range segmentMetas {
		segment := w.GetOrAddSegment(metas...)
		slot, ok := segmentToSlot[segment.index]
		if !ok {
			slot = len(c.segmentIndices)
			segmentToSlot[segment.index] = slot
			c.segmentIndices = append(c.segmentIndices, SegmentIndices{segment: segment.index})
		}
		metasToSegment[i] = slot
	}

	state, err := root.Initialize(declared, &InitializeContext{
		segmentSlot:    0,
		segmentIndices: c.segmentIndices,
		metasToSegment: metasToSegment,
		world:          w,
	})
	if err != nil {
		return nil, err
	}
	c.state = state

	static, err := state.StaticCount(newCountContext(c.segmentIndices, &c.entityIndices))
	if err != nil {
		return nil, err
	}
	if static {
		c.staticNodes = len(c.entityIndices)
		finalizeFamily(c.entityIndices)
	} else {
		c.staticNodes = -1
		c.entityIndices = c.entityIndices[:0]
		for i := range c.segmentIndices {
			c.segmentIndices[i].count = 0
		}
	}

	c.dependencies = append(c.dependencies, DeferOf(TypeIdentifier(entitiesType), "Entities"))
	for _, indices := range c.segmentIndices {
		segment := w.segments[indices.segment]
		at := int(segment.index)
		c.dependencies = append(c.dependencies,
			DeferOf(TypeIdentifier(reflect.TypeOf(Entity{})), "Entity").At(at))
		for _, store := range segment.Stores() {
			c.dependencies = append(c.dependencies,
				DeferOf(TypeIdentifier(store.meta.typ), store.meta.name).At(at))
		}
	}
	return c, nil
}

// Update implements Inject; the template's shape is settled at construction.
func (c *Create) Update(w *World) error {
	return nil
}

// Depend implements Inject: deferred writes against the entity table and
// every store of every target segment.
func (c *Create) Depend() []Dependency {
	return c.dependencies
}

// Resolve implements Inject. The bound mutator owns the queues, so the
// creator itself has nothing to drain.
func (c *Create) Resolve(w *World) error {
	return nil
}

// One creates a single root from one template instance.
func (c *Create) One(template Template) (Family, error) {
	families, err := c.All(template)
	if err != nil {
		return Family{}, err
	}
	family, _ := families.Get(0)
	return family, nil
}

// Clones creates count roots from the same template value.
func (c *Create) Clones(count int, template Template) (Families, error) {
	templates := make([]Template, count)
	for i := range templates {
		templates[i] = template
	}
	return c.All(templates...)
}

// Defaults creates count roots from the zero value of the prototype's type.
func (c *Create) Defaults(count int) (Families, error) {
	zero := reflect.New(reflect.TypeOf(c.prototype)).Elem().Interface().(Template)
	return c.Clones(count, zero)
}

// All creates one root per template instance. Instances must share the
// prototype's shape.
func (c *Create) All(templates ...Template) (Families, error) {
	if len(templates) == 0 {
		return Families{}, nil
	}

	roots := make([][2]int, 0, len(templates))
	if c.staticNodes >= 0 {
		for i := range templates {
			roots = append(roots, [2]int{i, 0})
		}
		total := c.staticNodes * len(templates)
		if total == 0 {
			return Families{}, nil
		}
		return c.reserve(templates, roots, len(templates), total)
	}

	for i := range c.segmentIndices {
		c.segmentIndices[i].count = 0
	}
	c.entityIndices = c.entityIndices[:0]
	for _, template := range templates {
		roots = append(roots, [2]int{0, len(c.entityIndices)})
		err := c.state.DynamicCount(spawnTemplate{child: template}, newCountContext(c.segmentIndices, &c.entityIndices))
		if err != nil {
			return Families{}, err
		}
	}
	finalizeFamily(c.entityIndices)
	total := len(c.entityIndices)
	if total == 0 {
		return Families{}, nil
	}
	return c.reserve(templates, roots, 1, total)
}

// reserve claims entity indices and segment rows for one batch, then either
// applies it synchronously or queues it for resolution.
func (c *Create) reserve(templates []Template, roots [][2]int, multiplier, total int) (Families, error) {
	instances := make([]Entity, total)
	ready := c.world.entities.Reserve(instances)

	running := 0
	for i := range c.segmentIndices {
		c.segmentIndices[i].index = running
		running += c.segmentIndices[i].count * multiplier
	}

	success := ready == total
	deferFrom := len(c.segmentIndices)
	for i := range c.segmentIndices {
		indices := &c.segmentIndices[i]
		segmentCount := indices.count * multiplier
		if segmentCount == 0 {
			continue
		}
		segment := c.world.segments[indices.segment]
		c.mutator.touch(segment)
		start, granted := segment.Reserve(segmentCount)
		indices.store = start

		if success && granted == segmentCount {
			StoreSetAll(segment.EntityStore(), start, instances[indices.index:indices.index+segmentCount])
			continue
		}
		if i < deferFrom {
			deferFrom = i
		}
		success = false
	}
	if ready < total {
		// Some instances point past the committed table; their datums can
		// only be written after resolution grows it, so the whole batch
		// defers and the entity rows are rewritten then.
		deferFrom = 0
	}

	entityIndices := append([]EntityIndices(nil), c.entityIndices...)
	segmentIndices := append([]SegmentIndices(nil), c.segmentIndices...)
	families := Families{
		roots:          roots,
		instances:      instances,
		entityIndices:  entityIndices,
		segmentIndices: segmentIndices,
	}

	if success {
		err := c.apply(templates, roots, multiplier, instances, entityIndices, segmentIndices)
		return families, err
	}

	c.mutator.creates = append(c.mutator.creates, &deferredCreate{
		create:         c,
		templates:      append([]Template(nil), templates...),
		roots:          roots,
		multiplier:     multiplier,
		instances:      instances,
		entityIndices:  entityIndices,
		segmentIndices: segmentIndices,
		deferFrom:      deferFrom,
	})
	return families, nil
}

// apply writes component values and datums for every root of a batch.
func (c *Create) apply(templates []Template, roots [][2]int, multiplier int, instances []Entity, entityIndices []EntityIndices, segmentIndices []SegmentIndices) error {
	var inits []datumInit
	for i, template := range templates {
		before := len(inits)
		ctx := newApplyContext(roots[i][0], roots[i][1], instances, entityIndices, segmentIndices, &inits)
		if err := c.state.Apply(spawnTemplate{child: template}, ctx); err != nil {
			return err
		}
		if expected := c.expectedNodes(roots, i, len(entityIndices)); len(inits)-before != expected {
			return StaticCountMustBeTrueError{}
		}
	}

	var err error
	for _, init := range inits {
		if !c.world.entities.Initialize(init.index, init.datum) {
			err = mergeErrors(err, FailedToInitializeError{
				Entity:  init.index,
				Store:   init.datum.store,
				Segment: init.datum.segment,
			})
		}
	}
	return flattenError(err)
}

// expectedNodes returns how many tree nodes the i-th root must consume.
func (c *Create) expectedNodes(roots [][2]int, i, totalNodes int) int {
	if c.staticNodes >= 0 {
		return c.staticNodes
	}
	base := roots[i][1]
	if i+1 < len(roots) {
		return roots[i+1][1] - base
	}
	return totalNodes - base
}

// resolve replays a deferred batch once the entity table and segments have
// grown: entity rows from the first unwritten slot are written, then the
// batch applies as usual.
func (d *deferredCreate) resolve(w *World) error {
	for i := d.deferFrom; i < len(d.segmentIndices); i++ {
		indices := d.segmentIndices[i]
		segmentCount := indices.count * d.multiplier
		if segmentCount == 0 {
			continue
		}
		segment := w.segments[indices.segment]
		StoreSetAll(segment.EntityStore(), indices.store, d.instances[indices.index:indices.index+segmentCount])
	}
	return d.create.apply(d.templates, d.roots, d.multiplier, d.instances, d.entityIndices, d.segmentIndices)
}
