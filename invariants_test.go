package forge

import (
	"testing"

	"pgregory.net/rapid"
)

// TestFamilyInvariantsHold drives random family mutations and checks the
// link structure after every operation.
func TestFamilyInvariantsHold(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		entities := newEntities(32)
		buf := make([]Entity, 12)
		entities.Reserve(buf)
		entities.Resolve()
		for i, entity := range buf {
			entities.Initialize(entity.Index(), Datum{
				generation:      entity.Generation(),
				segment:         0,
				store:           uint32(i),
				parent:          none,
				firstChild:      none,
				lastChild:       none,
				previousSibling: none,
				nextSibling:     none,
			})
		}

		pick := rapid.SampledFrom(buf)
		steps := rapid.IntRange(1, 40).Draw(t, "steps")
		for step := 0; step < steps; step++ {
			switch rapid.IntRange(0, 4).Draw(t, "op") {
			case 0:
				entities.AdoptLast(pick.Draw(t, "parent"), pick.Draw(t, "child"))
			case 1:
				entities.AdoptFirst(pick.Draw(t, "parent"), pick.Draw(t, "child"))
			case 2:
				entities.Reject(pick.Draw(t, "child"))
			case 3:
				entities.RejectAll(pick.Draw(t, "parent"))
			case 4:
				entities.AdoptAt(pick.Draw(t, "parent"), pick.Draw(t, "child"), rapid.IntRange(0, 4).Draw(t, "index"))
			}

			checkFamilyLinks(t, entities, buf)
		}
	})
}

func checkFamilyLinks(t *rapid.T, entities *Entities, all []Entity) {
	for _, entity := range all {
		datum, ok := entities.Get(entity)
		if !ok {
			t.Fatalf("entity %v died during family mutation", entity)
		}

		// No cycles.
		for _, ancestor := range entities.AncestorsOf(entity) {
			if ancestor.Index() == entity.Index() {
				t.Fatalf("%v is its own ancestor", entity)
			}
		}

		// The child list length matches the counter, every child points
		// back, and each child appears exactly once.
		seen := map[uint32]int{}
		count := 0
		countingChildren := entities.ChildrenOf(entity)
		for child := range countingChildren.All() {
			childDatum, ok := entities.Get(child)
			if !ok {
				t.Fatalf("child %v of %v is dead", child, entity)
			}
			if childDatum.Parent() != entity.Index() {
				t.Fatalf("child %v does not point back at %v", child, entity)
			}
			seen[child.Index()]++
			count++
		}
		if count != int(datum.ChildrenCount()) {
			t.Fatalf("%v has %d chained children but counter %d", entity, count, datum.ChildrenCount())
		}
		for index, times := range seen {
			if times != 1 {
				t.Fatalf("child %d appears %d times", index, times)
			}
		}

		// first/last agree with emptiness.
		empty := datum.ChildrenCount() == 0
		if empty != (datum.firstChild == none) || empty != (datum.lastChild == none) {
			t.Fatalf("%v first/last/count disagree", entity)
		}

		// Forward and backward iteration agree.
		children := entities.ChildrenOf(entity)
		var forward []Entity
		for child := range children.All() {
			forward = append(forward, child)
		}
		backward := entities.ChildrenOf(entity)
		var reversed []Entity
		for {
			child, ok := backward.NextBack()
			if !ok {
				break
			}
			reversed = append(reversed, child)
		}
		for i := range forward {
			if forward[i] != reversed[len(reversed)-1-i] {
				t.Fatalf("%v children iterate differently front and back", entity)
			}
		}
	}
}

// TestStorageInvariantsUnderRandomMutation drives random create and destroy
// batches through the deferred pipeline and checks the table/segment
// correspondence after every synchronization point.
func TestStorageInvariantsUnderRandomMutation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		w := NewWorld()
		mutator := NewMutator(w)
		create, err := NewCreate(w, mutator, List(Add(Position{}), Add(Health{})))
		if err != nil {
			t.Fatal(err)
		}
		injector, err := NewInjector(w, create, mutator)
		if err != nil {
			t.Fatal(err)
		}

		var alive []Entity
		steps := rapid.IntRange(1, 12).Draw(t, "steps")
		for step := 0; step < steps; step++ {
			err := injector.Run(w, func() error {
				switch {
				case len(alive) == 0 || rapid.Bool().Draw(t, "create"):
					n := rapid.IntRange(1, 6).Draw(t, "n")
					families, err := create.Clones(n, List(Add(Position{X: float64(step)}), Add(Health{Current: step})))
					if err != nil {
						return err
					}
					alive = append(alive, families.Entities()...)
				default:
					i := rapid.IntRange(0, len(alive)-1).Draw(t, "victim")
					mutator.Destroy(alive[i])
					alive = append(alive[:i], alive[i+1:]...)
				}
				return nil
			})
			if err != nil {
				t.Fatal(err)
			}

			if violations := checkWorldInvariants(w); len(violations) > 0 {
				t.Fatalf("invariants violated: %v", violations)
			}
			for _, entity := range alive {
				if !w.Entities().Has(entity) {
					t.Fatalf("live entity %v is gone", entity)
				}
			}
		}
	})
}
