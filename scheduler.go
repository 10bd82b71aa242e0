package forge

// Scheduler accumulates systems in declaration order and builds a Runner for
// them.
type Scheduler struct {
	world   *World
	systems []System
}

// Scheduler starts a schedule over this world.
func (w *World) Scheduler() *Scheduler {
	return &Scheduler{world: w}
}

// Add appends systems; declaration order is preserved across scheduling.
func (s *Scheduler) Add(systems ...System) *Scheduler {
	s.systems = append(s.systems, systems...)
	return s
}

// Schedule builds a Runner, running every system's first update and conflict
// analysis eagerly so declaration problems surface before the first tick.
func (s *Scheduler) Schedule() (*Runner, error) {
	runner := &Runner{
		identifier: identify(),
		world:      s.world.identifier,
		systems:    s.systems,
		workers:    Config.Workers(),
	}
	if err := runner.update(s.world); err != nil {
		return nil, mergeErrors(FailedToScheduleError{}, err)
	}
	return runner, nil
}

// blocksOf groups systems into parallel blocks. Every system starts as its
// own block; walking right to left, each block repeatedly absorbs its
// following block while no pair of systems across the two conflicts in the
// outer scope. Declaration order is preserved.
func blocksOf(dependencies [][]Dependency) [][]int {
	blocks := make([][]int, 0, len(dependencies))
	for i := range dependencies {
		blocks = append(blocks, []int{i})
	}

	conflict := NewConflict()
	compatible := func(left, right []int) bool {
		for _, l := range left {
			for _, r := range right {
				// Seed with the left system's dependencies under the inner
				// scope, since a system is always compatible with itself,
				// then probe the right system's under the outer scope.
				conflict.Clear()
				if conflict.Detect(ScopeInner, dependencies[l]) != nil {
					return false
				}
				if conflict.Detect(ScopeOuter, dependencies[r]) != nil {
					return false
				}
			}
		}
		return true
	}

	for i := len(blocks) - 2; i >= 0; i-- {
		for i+1 < len(blocks) && compatible(blocks[i], blocks[i+1]) {
			blocks[i] = append(blocks[i], blocks[i+1]...)
			blocks = append(blocks[:i+1], blocks[i+2:]...)
		}
	}

	filtered := blocks[:0]
	for _, block := range blocks {
		if len(block) > 0 {
			filtered = append(filtered, block)
		}
	}
	return filtered
}
