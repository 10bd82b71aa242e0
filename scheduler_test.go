package forge

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompatibleReadsShareABlock(t *testing.T) {
	defer leaktest.Check(t)()

	Config.SetWorkers(2)
	defer Config.SetWorkers(0)

	w := NewWorld()
	pos := MetaOf[Position](w)
	vel := MetaOf[Velocity](w)
	segment := w.GetOrAddSegment(pos, vel)
	_, _ = segment.Reserve(4)
	segment.Resolve()

	var both sync.WaitGroup
	both.Add(2)
	overlapped := make(chan bool, 2)
	reader := func() System {
		view := NewView(w, []*Meta{pos}, nil)
		return NewSystem(func(*World) error {
			// Both readers must be in flight at once for either to finish.
			both.Done()
			done := make(chan struct{})
			go func() {
				both.Wait()
				close(done)
			}()
			select {
			case <-done:
				overlapped <- true
			case <-time.After(5 * time.Second):
				overlapped <- false
			}
			return nil
		}, view)
	}

	runner, err := w.Scheduler().Add(reader(), reader()).Schedule()
	require.NoError(t, err)
	require.Len(t, runner.Blocks(), 1, "compatible readers schedule together")

	require.NoError(t, runner.Run(w))
	assert.True(t, <-overlapped)
	assert.True(t, <-overlapped)
}

func TestConflictingWriteSplitsBlocks(t *testing.T) {
	w := NewWorld()
	pos := MetaOf[Position](w)
	vel := MetaOf[Velocity](w)
	w.GetOrAddSegment(pos, vel)

	writer := NewSystem(nil, NewView(w, nil, []*Meta{pos}))
	reader := NewSystem(nil, NewView(w, []*Meta{pos}, nil))

	timeWrite, err := NewWrite[Time](w, nil)
	require.NoError(t, err)
	clock := NewSystem(nil, timeWrite)

	runner, err := w.Scheduler().Add(writer, reader, clock).Schedule()
	require.NoError(t, err)

	// The reader and the clock touch disjoint identifiers, so they share the
	// second block; the writer runs alone before them.
	assert.Equal(t, [][]int{{0}, {1, 2}}, runner.Blocks())
}

func TestWriteWriteSplitsBlocks(t *testing.T) {
	w := NewWorld()
	pos := MetaOf[Position](w)
	w.GetOrAddSegment(pos)

	a := NewSystem(nil, NewView(w, nil, []*Meta{pos}))
	b := NewSystem(nil, NewView(w, nil, []*Meta{pos}))

	runner, err := w.Scheduler().Add(a, b).Schedule()
	require.NoError(t, err)
	assert.Equal(t, [][]int{{0}, {1}}, runner.Blocks())
}

func TestDisjointSegmentWritesShareABlock(t *testing.T) {
	w := NewWorld()
	pos := MetaOf[Position](w)
	vel := MetaOf[Velocity](w)
	w.GetOrAddSegment(pos)
	w.GetOrAddSegment(vel)

	a := NewSystem(nil, NewView(w, nil, []*Meta{pos}))
	b := NewSystem(nil, NewView(w, nil, []*Meta{vel}))

	runner, err := w.Scheduler().Add(a, b).Schedule()
	require.NoError(t, err)
	assert.Len(t, runner.Blocks(), 1, "segment-tagged writes to different archetypes coexist")
}

func TestRunnerWrongWorld(t *testing.T) {
	w := NewWorld()
	runner, err := w.Scheduler().Add(NewSystem(nil)).Schedule()
	require.NoError(t, err)

	other := NewWorld()
	err = runner.Run(other)
	assert.ErrorAs(t, err, &WrongWorldError{})
	assert.NoError(t, runner.Run(w), "the runner stays usable")
}

func TestRunnerAggregatesRunErrors(t *testing.T) {
	w := NewWorld()

	boom := NewSystem(func(*World) error { return InvalidEntityError{} })
	bang := NewSystem(func(*World) error { return MissingResourceError{Name: "Time"} })
	var ran atomic.Bool
	calm := NewSystem(func(*World) error { ran.Store(true); return nil })

	runner, err := w.Scheduler().Add(boom, bang, calm).Schedule()
	require.NoError(t, err)
	require.Len(t, runner.Blocks(), 1)

	err = runner.Run(w)
	require.Error(t, err)
	assert.ErrorAs(t, err, &InvalidEntityError{})
	assert.ErrorAs(t, err, &MissingResourceError{})
	assert.True(t, ran.Load(), "in-flight systems complete despite failures")

	assert.NoError(t, func() error {
		// A fresh schedule of well-behaved systems on the same world runs
		// cleanly.
		calm2 := NewSystem(nil)
		runner2, err := w.Scheduler().Add(calm2).Schedule()
		if err != nil {
			return err
		}
		return runner2.Run(w)
	}())
}

func TestRunnerUpdateFailureIsFatalToTheTick(t *testing.T) {
	w := NewWorld()

	failing := SystemFuncs{
		UpdateFunc: func(*World) error { return MissingMetaError{Name: "nope"} },
	}
	_, err := w.Scheduler().Add(failing).Schedule()
	assert.ErrorAs(t, err, &MissingMetaError{})
}

func TestRunnerInnerConflictIsFatal(t *testing.T) {
	w := NewWorld()
	pos := MetaOf[Position](w)
	w.GetOrAddSegment(pos)

	// One system writing the same identifier twice cannot be scheduled.
	doubled := NewSystem(nil, NewView(w, nil, []*Meta{pos}), NewView(w, nil, []*Meta{pos}))
	_, err := w.Scheduler().Add(doubled).Schedule()
	var conflictErr ConflictError
	require.ErrorAs(t, err, &conflictErr)
	assert.Equal(t, WriteWriteConflict, conflictErr.Kind)
}

func TestVersionTriggeredReschedule(t *testing.T) {
	w := NewWorld()
	pos := MetaOf[Position](w)
	w.GetOrAddSegment(pos)

	mutator := NewMutator(w)
	create, err := NewCreate(w, mutator, Add(Position{}))
	require.NoError(t, err)

	var updates atomic.Int32
	spawner := NewSystem(func(*World) error {
		_, err := create.All(Add(Position{X: 1}))
		return err
	}, create, mutator)
	watcher := SystemFuncs{
		UpdateFunc: func(*World) error { updates.Add(1); return nil },
	}

	runner, err := w.Scheduler().Add(spawner, watcher).Schedule()
	require.NoError(t, err)
	afterBuild := updates.Load()

	// First tick: no structural novelty, no re-update.
	require.NoError(t, runner.Run(w))
	assert.Equal(t, afterBuild, updates.Load())

	// A new archetype appears between ticks...
	health := MetaOf[Health](w)
	w.GetOrAddSegment(health)

	// ...so the next tick rebuilds the schedule, updating every system.
	require.NoError(t, runner.Run(w))
	assert.Equal(t, afterBuild+1, updates.Load())
}

func TestRunnerFallsBackToSequentialMidTick(t *testing.T) {
	w := NewWorld()
	pos := MetaOf[Position](w)
	w.GetOrAddSegment(pos)

	var order []int
	var mu sync.Mutex
	writer := func(i int, resolve func(*World) error) SystemFuncs {
		return SystemFuncs{
			RunFunc: func(*World) error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			},
			DependFunc:  func() []Dependency { return []Dependency{WriteOf(positionID, "Position").At(0)} },
			ResolveFunc: resolve,
		}
	}

	// The first block's resolve registers a new meta, bumping the version
	// mid-tick; the remaining blocks must fall back to sequential execution
	// but still run in order.
	first := writer(1, func(w *World) error { MetaOf[Tag](w); return nil })
	second := writer(2, nil)
	third := writer(3, nil)

	runner, err := w.Scheduler().Add(first, second, third).Schedule()
	require.NoError(t, err)
	require.Len(t, runner.Blocks(), 3, "same-identifier writers never share a block")
	require.NoError(t, runner.Run(w))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestUnstableWorldVersion(t *testing.T) {
	w := NewWorld()

	restless := SystemFuncs{
		UpdateFunc: func(w *World) error { w.modify(); return nil },
	}
	_, err := w.Scheduler().Add(restless).Schedule()
	assert.ErrorAs(t, err, &UnstableWorldVersionError{})
}

func TestRunnerNoLeaks(t *testing.T) {
	defer leaktest.Check(t)()

	w := NewWorld()
	busy := NewSystem(func(*World) error {
		time.Sleep(time.Millisecond)
		return nil
	})
	quiet := NewSystem(func(*World) error { return nil })

	runner, err := w.Scheduler().Add(busy, quiet).Schedule()
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		require.NoError(t, runner.Run(w))
	}
}
