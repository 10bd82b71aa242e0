package forge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// creator wires a Create and its mutator into an injector for direct use.
func creator(t *testing.T, w *World, prototype Template) (*Create, *Injector) {
	t.Helper()
	mutator := NewMutator(w)
	create, err := NewCreate(w, mutator, prototype)
	require.NoError(t, err)
	injector, err := NewInjector(w, create, mutator)
	require.NoError(t, err)
	return create, injector
}

func TestCreateOne(t *testing.T) {
	w := NewWorld()
	position := FactoryNewAccessor[Position](w)
	create, injector := creator(t, w, Add(Position{}))

	var entity Entity
	require.NoError(t, injector.Run(w, func() error {
		family, err := create.One(Add(Position{X: 3, Y: 4}))
		entity = family.Entity()
		return err
	}))

	value, err := position.GetFromEntity(w, entity)
	require.NoError(t, err)
	assert.Equal(t, Position{X: 3, Y: 4}, *value)

	segment, ok := w.GetSegment(position.Meta())
	require.True(t, ok)
	assert.Equal(t, 1, segment.Count())
	assert.Empty(t, checkWorldInvariants(w))
}

func TestCreateAllStatic(t *testing.T) {
	w := NewWorld()
	position := FactoryNewAccessor[Position](w)
	velocity := FactoryNewAccessor[Velocity](w)
	prototype := List(Add(Position{}), Add(Velocity{}))
	create, injector := creator(t, w, prototype)

	require.NoError(t, injector.Run(w, func() error {
		_, err := create.All(
			List(Add(Position{X: 1}), Add(Velocity{DX: 10})),
			List(Add(Position{X: 2}), Add(Velocity{DX: 20})),
			List(Add(Position{X: 3}), Add(Velocity{DX: 30})),
		)
		return err
	}))

	segment, ok := w.GetSegment(position.Meta(), velocity.Meta())
	require.True(t, ok)
	require.Equal(t, 3, segment.Count())

	positions, err := position.Slice(segment)
	require.NoError(t, err)
	velocities, err := velocity.Slice(segment)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		assert.Equal(t, float64(i+1), positions[i].X)
		assert.Equal(t, float64((i+1)*10), velocities[i].DX)
	}
	assert.Empty(t, checkWorldInvariants(w))
}

func TestCreateSpawnWiresFamily(t *testing.T) {
	w := NewWorld()
	position := FactoryNewAccessor[Position](w)
	health := FactoryNewAccessor[Health](w)
	prototype := List(
		Add(Position{}),
		Spawn(Add(Health{})),
		Spawn(Add(Health{})),
	)
	create, injector := creator(t, w, prototype)

	var root Entity
	var children []Entity
	require.NoError(t, injector.Run(w, func() error {
		family, err := create.One(List(
			Add(Position{X: 1}),
			Spawn(Add(Health{Current: 10})),
			Spawn(Add(Health{Current: 20})),
		))
		if err != nil {
			return err
		}
		root = family.Entity()
		for _, child := range family.Children() {
			children = append(children, child.Entity())
		}
		return nil
	}))

	require.Len(t, children, 2)

	// The committed entity table mirrors the batch-local view.
	entities := w.Entities()
	assert.Equal(t, children, collect(entities.ChildrenOf(root)))
	parent, ok := entities.Parent(children[0])
	require.True(t, ok)
	assert.Equal(t, root, parent)

	first, err := health.GetFromEntity(w, children[0])
	require.NoError(t, err)
	assert.Equal(t, 10, first.Current)
	second, err := health.GetFromEntity(w, children[1])
	require.NoError(t, err)
	assert.Equal(t, 20, second.Current)

	_, err = position.GetFromEntity(w, root)
	assert.NoError(t, err)
	assert.Empty(t, checkWorldInvariants(w))
}

func TestCreateNestedSpawn(t *testing.T) {
	w := NewWorld()
	prototype := Spawn(Spawn(Add(Health{})))
	create, injector := creator(t, w, prototype)

	require.NoError(t, injector.Run(w, func() error {
		_, err := create.One(Spawn(Spawn(Add(Health{Current: 5}))))
		return err
	}))

	entities := w.Entities()
	// root -> child -> grandchild
	var depth int
	for index := 0; index < entities.Count(); index++ {
		datum, _ := entities.At(uint32(index))
		if datum.Released() {
			continue
		}
		depth++
	}
	assert.Equal(t, 3, depth)

	// The grandchild, the only entity with Health, sits below the child and
	// the root.
	segment, ok := w.GetSegment(MetaOf[Health](w))
	require.True(t, ok)
	grandchild, err := segment.EntityAt(0)
	require.NoError(t, err)
	assert.Len(t, entities.AncestorsOf(grandchild), 2)
	assert.Empty(t, checkWorldInvariants(w))
}

func TestCreateDeferredGrowth(t *testing.T) {
	w := NewWorld()
	position := FactoryNewAccessor[Position](w)
	create, injector := creator(t, w, Add(Position{}))

	// Seed the segment at count == capacity == 4.
	require.NoError(t, injector.Run(w, func() error {
		_, err := create.Clones(4, Add(Position{X: 1}))
		return err
	}))
	segment, ok := w.GetSegment(position.Meta())
	require.True(t, ok)
	require.Equal(t, 4, segment.Count())
	require.Equal(t, 4, segment.Capacity())

	// Every one of the next 8 reservations overflows; all must defer and
	// land at the synchronization point.
	require.NoError(t, injector.Run(w, func() error {
		families, err := create.Clones(8, Add(Position{X: 2}))
		if err != nil {
			return err
		}
		if families.Len() != 8 {
			t.Errorf("expected 8 roots, got %d", families.Len())
		}
		if segment.Count() != 4 {
			t.Errorf("deferred rows must not commit mid-run, count is %d", segment.Count())
		}
		return nil
	}))

	assert.Equal(t, 12, segment.Count())
	assert.Equal(t, 16, segment.Capacity())

	positions, err := position.Slice(segment)
	require.NoError(t, err)
	grown := 0
	for _, value := range positions {
		if value.X == 2 {
			grown++
		}
	}
	assert.Equal(t, 8, grown)
	assert.Empty(t, checkWorldInvariants(w))
}

func TestCreateDynamicTemplate(t *testing.T) {
	w := NewWorld()
	health := FactoryNewAccessor[Health](w)
	prototype := Many(Add(Health{}))
	create, injector := creator(t, w, prototype)

	require.NoError(t, injector.Run(w, func() error {
		_, err := create.All(
			Many(Add(Health{}), Add(Health{Current: 1}), Add(Health{Current: 2})),
			Many(Add(Health{}), Add(Health{Current: 3})),
		)
		return err
	}))

	segment, ok := w.GetSegment(health.Meta())
	require.True(t, ok)
	// Two batch roots plus 3 spawned children; the roots are empty entities.
	assert.Equal(t, 3, segment.Count())

	empty, ok := w.GetSegment()
	require.True(t, ok)
	assert.Equal(t, 2, empty.Count())
	assert.Empty(t, checkWorldInvariants(w))
}

func TestCreateWithFamilyClosure(t *testing.T) {
	w := NewWorld()
	health := FactoryNewAccessor[Health](w)
	prototype := With(Add(Health{}), nil)
	create, injector := creator(t, w, prototype)

	require.NoError(t, injector.Run(w, func() error {
		_, err := create.One(With(Add(Health{}), func(family Family) Template {
			// The handle exists before the batch commits.
			return Add(Health{Current: int(family.Entity().Index()) + 100})
		}))
		return err
	}))

	segment, ok := w.GetSegment(health.Meta())
	require.True(t, ok)
	values, err := health.Slice(segment)
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.GreaterOrEqual(t, values[0].Current, 100)
}

func TestCreateDefaults(t *testing.T) {
	w := NewWorld()
	position := FactoryNewAccessor[Position](w)
	create, injector := creator(t, w, Add(Position{}))

	require.NoError(t, injector.Run(w, func() error {
		families, err := create.Defaults(3)
		assert.Equal(t, 3, families.Len())
		return err
	}))

	segment, ok := w.GetSegment(position.Meta())
	require.True(t, ok)
	assert.Equal(t, 3, segment.Count())
}

func TestCreateWrongShape(t *testing.T) {
	w := NewWorld()
	create, injector := creator(t, w, Add(Position{}))

	err := injector.Run(w, func() error {
		_, err := create.All(Add(Velocity{}))
		return err
	})
	assert.ErrorAs(t, err, &WrongTemplateError{})
}

func TestCreateEmptyBatch(t *testing.T) {
	w := NewWorld()
	create, injector := creator(t, w, Add(Position{}))

	require.NoError(t, injector.Run(w, func() error {
		families, err := create.All()
		assert.Equal(t, 0, families.Len())
		return err
	}))
}
