package forge

import (
	"golang.org/x/sync/errgroup"
)

// Runner executes scheduled systems tick by tick. Each tick runs the blocks
// in order: the systems of one block execute concurrently on the worker
// pool, then the block's systems resolve in declaration order, landing their
// deferred structural changes before the next block observes the world.
//
// The runner records the world version its schedule was built against. When
// the version moves, because a new meta or segment appeared, the next tick
// re-runs every system's update and rebuilds the blocks before executing.
type Runner struct {
	identifier   uint64
	world        uint64
	version      uint64
	systems      []System
	dependencies [][]Dependency
	blocks       [][]int
	workers      int
}

// Identifier returns the runner's process-unique identifier.
func (r *Runner) Identifier() uint64 {
	return r.identifier
}

// Blocks returns the scheduled block structure as system indices in
// declaration order.
func (r *Runner) Blocks() [][]int {
	return r.blocks
}

// Run executes one tick. Schedule-time failures (update errors, dependency
// conflicts, an unstable world version) abort the tick before any system
// runs and leave the world untouched. Run-time failures are aggregated; the
// failing block's systems still resolve, because deferred operations are the
// safe structural changes, and the runner stays usable for the next call.
func (r *Runner) Run(w *World) error {
	if r.world != w.identifier {
		return WrongWorldError{Expected: r.world, Actual: w.identifier}
	}
	if err := r.update(w); err != nil {
		return err
	}

	built := r.version
	for _, block := range r.blocks {
		var err error
		if w.version != built {
			// Structure changed mid-tick; fall back to sequential execution
			// until the next rebuild revalidates the blocks.
			err = r.runSequential(w, block)
		} else {
			err = r.runParallel(w, block)
		}

		for _, index := range block {
			err = mergeErrors(err, r.systems[index].Resolve(w))
		}
		if err = flattenError(err); err != nil {
			return mergeErrors(FailedToRunError{}, err)
		}
	}
	return nil
}

func (r *Runner) runSequential(w *World, block []int) error {
	var err error
	for _, index := range block {
		err = mergeErrors(err, r.systems[index].Run(w))
	}
	return err
}

func (r *Runner) runParallel(w *World, block []int) error {
	if len(block) == 1 {
		return r.systems[block[0]].Run(w)
	}

	errors := make([]error, len(block))
	var group errgroup.Group
	group.SetLimit(r.workers)
	for i, index := range block {
		group.Go(func() error {
			errors[i] = r.systems[index].Run(w)
			return nil
		})
	}
	// Failed systems don't interrupt the rest of the block; everything is
	// already in flight. The join collects every error.
	_ = group.Wait()

	var err error
	for _, runErr := range errors {
		err = mergeErrors(err, runErr)
	}
	return err
}

// update re-runs every system's update until the world version stabilizes,
// then re-checks inner-scope conflicts and rebuilds the blocks. The recorded
// version moves only when all of that succeeds.
func (r *Runner) update(w *World) error {
	if r.version == w.version && r.dependencies != nil {
		return nil
	}

	version := r.version
	for range Config.ScheduleRetries() {
		if version == w.version {
			break
		}
		version = w.version
		for _, system := range r.systems {
			if err := system.Update(w); err != nil {
				return err
			}
		}
	}
	if version != w.version {
		return UnstableWorldVersionError{}
	}

	dependencies := make([][]Dependency, len(r.systems))
	conflict := NewConflict()
	for i, system := range r.systems {
		dependencies[i] = system.Depend()
		conflict.Clear()
		if err := conflict.Detect(ScopeInner, dependencies[i]); err != nil {
			return err
		}
	}

	r.dependencies = dependencies
	r.blocks = blocksOf(dependencies)
	r.version = version
	return nil
}
