package forge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedSegments(t *testing.T) (*World, *Segment, *Segment, *Segment) {
	t.Helper()
	w := NewWorld()
	pos := MetaOf[Position](w)
	vel := MetaOf[Velocity](w)
	health := MetaOf[Health](w)

	posOnly := w.GetOrAddSegment(pos)
	posVel := w.GetOrAddSegment(pos, vel)
	healthOnly := w.GetOrAddSegment(health)
	return w, posOnly, posVel, healthOnly
}

func TestQueryEvaluation(t *testing.T) {
	w, posOnly, posVel, healthOnly := seedSegments(t)
	pos, _ := GetMeta[Position](w)
	vel, _ := GetMeta[Velocity](w)
	health, _ := GetMeta[Health](w)

	tests := []struct {
		name    string
		node    QueryNode
		matches map[uint32]bool
	}{
		{
			name:    "and requires every meta",
			node:    newQuery().And(pos, vel),
			matches: map[uint32]bool{posVel.Index(): true},
		},
		{
			name:    "single meta matches supersets",
			node:    newQuery().And(pos),
			matches: map[uint32]bool{posOnly.Index(): true, posVel.Index(): true},
		},
		{
			name:    "or matches any meta",
			node:    newQuery().Or(vel, health),
			matches: map[uint32]bool{posVel.Index(): true, healthOnly.Index(): true},
		},
		{
			name:    "not excludes",
			node:    newQuery().Not(pos),
			matches: map[uint32]bool{healthOnly.Index(): true},
		},
		{
			name:    "meta slice flattens",
			node:    newQuery().And([]*Meta{pos, vel}),
			matches: map[uint32]bool{posVel.Index(): true},
		},
		{
			name:    "nested or inside and",
			node:    newQuery().And(pos, newQuery().Or(vel, health)),
			matches: map[uint32]bool{posVel.Index(): true},
		},
		{
			name:    "nested not inside and",
			node:    newQuery().And(pos, newQuery().Not(vel)),
			matches: map[uint32]bool{posOnly.Index(): true},
		},
		{
			name:    "not with a child node excludes its matches",
			node:    newQuery().Not(newQuery().And(pos, vel)),
			matches: map[uint32]bool{posOnly.Index(): true, healthOnly.Index(): true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, segment := range w.Segments() {
				assert.Equal(t, tt.matches[segment.Index()], tt.node.Evaluate(segment), "segment %d", segment.Index())
			}
		})
	}
}

func TestCursorIteratesCommittedRows(t *testing.T) {
	w, posOnly, posVel, _ := seedSegments(t)
	pos, _ := GetMeta[Position](w)

	_, _ = posOnly.Reserve(2)
	posOnly.Resolve()
	_, _ = posVel.Reserve(3)
	posVel.Resolve()

	cursor := Factory.NewCursor(Factory.NewQuery(w).And(pos), w)

	visited := 0
	for cursor.Next() {
		visited++
	}
	assert.Equal(t, 5, visited)

	// The sequence form visits the same rows.
	visited = 0
	for range cursor.Entities() {
		visited++
	}
	assert.Equal(t, 5, visited)
}

func TestCursorSkipsReservedRows(t *testing.T) {
	w, posOnly, _, _ := seedSegments(t)
	pos, _ := GetMeta[Position](w)

	_, _ = posOnly.Reserve(2)
	posOnly.Resolve()
	_, _ = posOnly.Reserve(2) // reserved but uncommitted

	cursor := Factory.NewCursor(Factory.NewQuery(w).And(pos), w)
	visited := 0
	for cursor.Next() {
		visited++
	}
	assert.Equal(t, 2, visited, "reserved rows are invisible until resolve")
}

func TestAccessorAgainstCursor(t *testing.T) {
	w := NewWorld()
	position := FactoryNewAccessor[Position](w)
	velocity := FactoryNewAccessor[Velocity](w)

	segment := w.GetOrAddSegment(position.Meta(), velocity.Meta())
	_, _ = segment.Reserve(2)
	segment.Resolve()

	store, err := segment.StoreFor(position.Meta())
	require.NoError(t, err)
	StoreSet(store, 0, Position{X: 1})
	StoreSet(store, 1, Position{X: 2})

	cursor := Factory.NewCursor(Factory.NewQuery(w).And(position.Meta()), w)
	total := 0.0
	for cursor.Next() {
		ok, value := position.GetFromCursorSafe(cursor)
		require.True(t, ok)
		total += value.X
	}
	assert.Equal(t, 3.0, total)

	slice, err := position.Slice(segment)
	require.NoError(t, err)
	assert.Len(t, slice, 2)

	_, err = velocity.Slice(w.GetOrAddSegment(position.Meta()))
	assert.ErrorAs(t, err, &MissingStoreError{})
}
