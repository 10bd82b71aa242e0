/*
Package forge provides an archetype Entity-Component-System (ECS) runtime with
deferred structural mutation and a dependency-driven parallel scheduler.

Forge stores entities with identical component sets together in segments
(archetypes) for cache-friendly columnar access. Systems declare the data they
read and write; the scheduler groups compatible systems into blocks and runs
each block concurrently on a worker pool. Structural changes (creating,
destroying, duplicating, adopting entities) are queued during a block and
applied between blocks, so the storage invariants the scheduler relies on hold
for the whole parallel phase.

Core Concepts:

  - Entity: A lightweight (index, generation) handle to a world entity.
  - Meta: Registered metadata for one component or resource type.
  - Segment: A collection of entities sharing the same component types.
  - Store: One typed column inside a segment.
  - Template: A declarative description of entities to create.
  - Mutator: A per-system queue of deferred structural changes.
  - Runner: Executes scheduled systems in parallel blocks.

Basic Usage:

	world := forge.Factory.NewWorld()

	// Register component accessors
	position := forge.FactoryNewAccessor[Position](world)
	velocity := forge.FactoryNewAccessor[Velocity](world)

	// Create entities through a mutator
	mutator := forge.NewMutator(world)
	create, _ := forge.NewCreate(world, mutator, forge.List(
		forge.Add(Position{}),
		forge.Add(Velocity{}),
	))

	move := forge.NewSystem(func(w *forge.World) error {
		cursor := forge.Factory.NewCursor(forge.Factory.NewQuery(w).And(position.Meta(), velocity.Meta()), w)
		for cursor.Next() {
			pos := position.GetFromCursor(cursor)
			vel := velocity.GetFromCursor(cursor)
			pos.X += vel.X
			pos.Y += vel.Y
		}
		return nil
	}, create)

	runner, _ := world.Scheduler().Add(move).Schedule()
	_ = runner.Run(world)

Forge is standalone but follows the storage conventions of the Bappa Framework
libraries it grew out of.
*/
package forge
